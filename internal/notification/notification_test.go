package notification

import (
	"context"
	"errors"
	"testing"

	"billwatch-backend/internal/statement/usecase"
	"billwatch-backend/pkg/fcm"

	"github.com/stretchr/testify/require"
)

type countingScanner struct {
	due, success int
	dueErr       error
}

func (s *countingScanner) ScanDueEmails(ctx context.Context) (*usecase.RunReport, error) {
	s.due++
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	return &usecase.RunReport{ID: "r1", State: usecase.StateDone}, nil
}

func (s *countingScanner) ScanSuccessEmails(ctx context.Context) (*usecase.RunReport, error) {
	s.success++
	return nil, nil
}

func TestHandleMessageDeduplicatesHistory(t *testing.T) {
	scanner := &countingScanner{}
	s := newService(scanner, "gmail-push")
	ctx := context.Background()

	require.True(t, s.handleMessage(ctx, []byte(`{"emailAddress":"me@example.com","historyId":10}`)))
	require.False(t, s.handleMessage(ctx, []byte(`{"emailAddress":"me@example.com","historyId":10}`)))
	require.False(t, s.handleMessage(ctx, []byte(`{"emailAddress":"me@example.com","historyId":9}`)))
	require.True(t, s.handleMessage(ctx, []byte(`{"emailAddress":"me@example.com","historyId":11}`)))
	require.False(t, s.handleMessage(ctx, []byte(`not json`)))

	require.Equal(t, 2, scanner.due)
	require.Equal(t, 2, scanner.success)
	require.Equal(t, "gmail-push-sub", s.subName)
}

func TestHandleMessageRunsSuccessScanWhenDueScanFails(t *testing.T) {
	scanner := &countingScanner{dueErr: errors.New("search failed")}
	s := newService(scanner, "gmail-push")

	require.True(t, s.handleMessage(context.Background(), []byte(`{"emailAddress":"me@example.com","historyId":1}`)))
	require.Equal(t, 1, scanner.success)
}

type fakePush struct {
	calls  [][]string
	failed []string
	err    error
	last   fcm.NotificationData
}

func (f *fakePush) SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	f.calls = append(f.calls, tokens)
	f.last = n
	return f.failed, f.err
}

type memoryTokens struct {
	tokens []string
	err    error
}

func (m *memoryTokens) ListTokens(ctx context.Context) ([]string, error) {
	return append([]string(nil), m.tokens...), m.err
}

func (m *memoryTokens) DeleteTokens(ctx context.Context, tokens []string) error {
	var kept []string
	for _, t := range m.tokens {
		drop := false
		for _, d := range tokens {
			drop = drop || d == t
		}
		if !drop {
			kept = append(kept, t)
		}
	}
	m.tokens = kept
	return nil
}

func TestFCMNotifierDropsFailedTokens(t *testing.T) {
	push := &fakePush{failed: []string{"stale"}}
	store := &memoryTokens{tokens: []string{"good", "stale"}}
	n := NewFCMNotifier(push, store)

	n.Notify(context.Background(), "New bill due", "HDFC: 1234.00 due on 05-02-2025")
	require.Equal(t, "New bill due", push.last.Title)
	require.Equal(t, []string{"good"}, store.tokens)

	push.failed = nil
	n.Notify(context.Background(), "Payment due", "soon")
	require.Equal(t, []string{"good"}, push.calls[1])
}

func TestFCMNotifierWithoutTokens(t *testing.T) {
	push := &fakePush{}
	NewFCMNotifier(push, &memoryTokens{}).Notify(context.Background(), "t", "m")
	NewFCMNotifier(push, &memoryTokens{err: errors.New("db down")}).Notify(context.Background(), "t", "m")
	require.Empty(t, push.calls)
}

type fakeBroadcaster struct {
	events []string
	data   []interface{}
}

func (b *fakeBroadcaster) Broadcast(eventType string, data interface{}) int {
	b.events = append(b.events, eventType)
	b.data = append(b.data, data)
	return 1
}

type recordNotifier struct{ titles []string }

func (r *recordNotifier) Notify(ctx context.Context, title, message string) {
	r.titles = append(r.titles, title)
}

func TestMultiNotifierFansOut(t *testing.T) {
	b := &fakeBroadcaster{}
	rec := &recordNotifier{}
	multi := MultiNotifier{LogNotifier{}, NewSSENotifier(b), nil, rec}

	multi.Notify(context.Background(), "Error", "Could not load stored bills")

	require.Equal(t, []string{"notification"}, b.events)
	require.Equal(t, []string{"Error"}, rec.titles)
}
