package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatServiceComplete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"name": "DevCon"}`}},
			},
		})
	}))
	defer srv.Close()

	svc, err := NewChatService(ServiceConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)

	out, err := svc.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	require.Equal(t, `{"name": "DevCon"}`, out)
}

func TestChatServiceErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc, err := NewChatService(ServiceConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "s", "u")
	require.Error(t, err)
}

func TestChatServiceNoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	svc, err := NewChatService(ServiceConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "s", "u")
	require.Error(t, err)
}

func TestChatServiceRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewChatService(ServiceConfig{})
	require.Error(t, err)
}
