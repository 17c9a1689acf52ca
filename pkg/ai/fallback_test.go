package ai_test

import (
	"context"
	"errors"
	"testing"

	"billwatch-backend/pkg/ai"

	"github.com/stretchr/testify/require"
)

func TestFallbackOnConnectionError(t *testing.T) {
	primary := &scriptedEngine{err: errors.New("dial tcp 127.0.0.1:11434: connection refused")}
	secondary := &scriptedEngine{fragments: []string{"from ", "secondary"}}
	svc := ai.NewFallbackService(primary, secondary)

	reply, err := ai.Consume(context.Background(), svc, nil, []ai.Message{{Role: ai.RoleUser, Content: "x"}})

	require.NoError(t, err)
	require.Equal(t, "from secondary", reply)
	require.Equal(t, 1, secondary.calls)
}

func TestFallbackKeepsNonTransientError(t *testing.T) {
	primary := &scriptedEngine{err: errors.New("invalid request")}
	secondary := &scriptedEngine{fragments: []string{"unused"}}

	_, err := ai.Consume(context.Background(), ai.NewFallbackService(primary, secondary), nil, nil)

	require.ErrorContains(t, err, "invalid request")
	require.Zero(t, secondary.calls)
}

func TestFallbackNotUsedAfterPartialStream(t *testing.T) {
	primary := &scriptedEngine{fragments: []string{"{", "x"}, failAfter: 1, err: errors.New("connection reset by peer")}
	secondary := &scriptedEngine{fragments: []string{"unused"}}

	_, err := ai.Consume(context.Background(), ai.NewFallbackService(primary, secondary), nil, nil)

	require.Error(t, err)
	require.Zero(t, secondary.calls)
}
