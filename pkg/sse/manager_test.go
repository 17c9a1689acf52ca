package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"billwatch-backend/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func readEvent(t *testing.T, scanner *bufio.Scanner) (string, string) {
	t.Helper()
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && event != "":
			return event, data
		}
	}
	t.Fatalf("stream ended: %v", scanner.Err())
	return "", ""
}

func TestManagerDeliversToConnectedClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := sse.NewManager()
	connected := make(chan string, 1)
	disconnected := make(chan string, 1)
	m.SetHooks(
		func(id string) { connected <- id },
		func(id string) { disconnected <- id },
	)
	go m.Run()
	defer m.Stop()

	r := gin.New()
	r.GET("/events", func(c *gin.Context) { m.ServeHTTP(c, c.Query("id")) })
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?id=popup", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	select {
	case id := <-connected:
		require.Equal(t, "popup", id)
	case <-time.After(2 * time.Second):
		t.Fatal("client never registered")
	}
	require.Equal(t, 1, m.ClientCount())

	scanner := bufio.NewScanner(resp.Body)
	event, _ := readEvent(t, scanner)
	require.Equal(t, "connected", event)

	require.True(t, m.SendToUser("popup", "notification", gin.H{"title": "New bill due"}))
	require.False(t, m.SendToUser("someone-else", "notification", nil))

	event, data := readEvent(t, scanner)
	require.Equal(t, "notification", event)
	require.JSONEq(t, `{"title":"New bill due"}`, data)

	cancel()
	select {
	case id := <-disconnected:
		require.Equal(t, "popup", id)
	case <-time.After(2 * time.Second):
		t.Fatal("client never unregistered")
	}
	require.Zero(t, m.ClientCount())
}

func TestBroadcastWithoutClients(t *testing.T) {
	m := sse.NewManager()
	require.Zero(t, m.Broadcast("ping", nil))
}
