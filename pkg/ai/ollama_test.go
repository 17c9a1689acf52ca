package ai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"billwatch-backend/pkg/ai"

	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string       `json:"model"`
			Messages []ai.Message `json:"messages"`
			Stream   bool         `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Stream || req.Model != "llama3" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		for _, part := range []string{`{"Due Date":`, `"01-05-2025"}`} {
			b, _ := json.Marshal(map[string]interface{}{"message": map[string]string{"role": "assistant", "content": part}, "done": false})
			fmt.Fprintln(w, string(b))
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3:latest","model":"llama3:latest"}]}`)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"done":true}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaStreamChat(t *testing.T) {
	srv := newOllamaServer(t)
	svc := ai.NewOllamaService(srv.URL, "llama3")

	reply, err := ai.Consume(context.Background(), svc, nil, []ai.Message{{Role: ai.RoleUser, Content: "extract"}})

	require.NoError(t, err)
	require.Equal(t, `{"Due Date":"01-05-2025"}`, reply)
}

func TestOllamaReadyAndReload(t *testing.T) {
	srv := newOllamaServer(t)

	require.True(t, ai.NewOllamaService(srv.URL, "llama3").Ready(context.Background()))
	require.False(t, ai.NewOllamaService(srv.URL, "mistral").Ready(context.Background()))
	require.NoError(t, ai.NewOllamaService(srv.URL, "llama3").Reload(context.Background()))
}

func TestOllamaStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	err := ai.NewOllamaService(srv.URL, "llama3").StreamChat(context.Background(), nil, func(string) error { return nil })

	require.ErrorContains(t, err, "model not found")
}

func TestOllamaNotReadyWhenServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	require.False(t, ai.NewOllamaService(url, "llama3").Ready(context.Background()))
}
