package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smstore/backend/internal/cache"
)

func modelServer(t *testing.T, handle func(messages []Message) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		var req struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": Message{Role: "assistant", Content: handle(req.Messages)}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(apiURL string) *Service {
	return NewService(cache.NewMemory(), "key-123", "test-model", apiURL, time.Hour, 150)
}

func TestReplySendsSystemPromptAndMessage(t *testing.T) {
	var seen []Message
	srv := modelServer(t, func(messages []Message) string {
		seen = messages
		return "We ship worldwide."
	})
	s := newTestService(srv.URL)

	reply := s.Reply(context.Background(), 42, "Do you ship to Norway?")
	assert.Equal(t, "We ship worldwide.", reply)

	require.Len(t, seen, 2)
	assert.Equal(t, "system", seen[0].Role)
	assert.Equal(t, "user", seen[1].Role)
	assert.Equal(t, "Do you ship to Norway?", seen[1].Content)
}

func TestReplyCarriesHistoryAcrossTurns(t *testing.T) {
	var seen []Message
	srv := modelServer(t, func(messages []Message) string {
		seen = messages
		return "answer"
	})
	s := newTestService(srv.URL)

	s.Reply(context.Background(), 42, "first")
	s.Reply(context.Background(), 42, "second")

	// system + prior user/assistant pair + new question
	require.Len(t, seen, 4)
	assert.Equal(t, "first", seen[1].Content)
	assert.Equal(t, "answer", seen[2].Content)
	assert.Equal(t, "second", seen[3].Content)
}

func TestReplyHistoryIsPerUser(t *testing.T) {
	var seen []Message
	srv := modelServer(t, func(messages []Message) string {
		seen = messages
		return "answer"
	})
	s := newTestService(srv.URL)

	s.Reply(context.Background(), 42, "first")
	s.Reply(context.Background(), 43, "other user")

	// A different user starts from an empty history.
	require.Len(t, seen, 2)
	assert.Equal(t, "other user", seen[1].Content)
}

func TestReplyTrimsHistory(t *testing.T) {
	var seen []Message
	srv := modelServer(t, func(messages []Message) string {
		seen = messages
		return "answer"
	})
	s := newTestService(srv.URL)

	for i := 0; i < 10; i++ {
		s.Reply(context.Background(), 42, "question")
	}

	// History is capped, so the request never grows past
	// system + maxHistoryTurns + the new question.
	assert.LessOrEqual(t, len(seen), maxHistoryTurns+2)
}

func TestReplyUpstreamFailureDegrades(t *testing.T) {
	s := newTestService("http://127.0.0.1:1")

	reply := s.Reply(context.Background(), 42, "hello")
	assert.Equal(t, "Sorry, I am currently unavailable.", reply)
}

func TestReplyModelErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "quota exceeded"},
		})
	}))
	defer srv.Close()
	s := newTestService(srv.URL)

	reply := s.Reply(context.Background(), 42, "hello")
	assert.Equal(t, "Sorry, I am currently unavailable.", reply)
}

func TestReplyEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()
	s := newTestService(srv.URL)

	reply := s.Reply(context.Background(), 42, "hello")
	assert.Equal(t, "I'm not sure how to answer that.", reply)
}
