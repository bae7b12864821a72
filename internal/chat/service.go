// Package chat proxies customer questions to OpenRouter, keeping a short
// rolling history per user in the cache so follow-up questions have
// context.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/smstore/backend/internal/cache"
)

const (
	historyKeyPrefix = "chat:history:"
	maxHistoryTurns  = 6
	systemPrompt     = "You are a helpful assistant for an e-commerce store. Answer questions about products concisely and helpfully."
)

// Message is one turn of conversation, in the shape OpenRouter expects.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Service calls the model API and persists history through the cache.
type Service struct {
	cache      cache.Cache
	apiKey     string
	model      string
	apiURL     string
	historyTTL time.Duration
	maxTokens  int
	http       *http.Client
}

func NewService(c cache.Cache, apiKey, model, apiURL string, historyTTL time.Duration, maxTokens int) *Service {
	return &Service{
		cache:      c,
		apiKey:     apiKey,
		model:      model,
		apiURL:     apiURL,
		historyTTL: historyTTL,
		maxTokens:  maxTokens,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Reply sends the user's message with their recent history and returns
// the assistant's answer. Cache failures degrade to an empty history;
// model failures return a canned apology rather than an error so the chat
// endpoint never 500s over an upstream hiccup.
func (s *Service) Reply(ctx context.Context, userID uint64, message string) string {
	history := s.loadHistory(ctx, userID)

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: message})

	reply, err := s.complete(ctx, messages)
	if err != nil {
		log.Printf("chat: completion failed: %v", err)
		return "Sorry, I am currently unavailable."
	}

	history = append(history,
		Message{Role: "user", Content: message},
		Message{Role: "assistant", Content: reply})
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	s.saveHistory(ctx, userID, history)
	return reply
}

func (s *Service) complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":      s.model,
		"messages":   messages,
		"max_tokens": s.maxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("model error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "I'm not sure how to answer that.", nil
	}
	return result.Choices[0].Message.Content, nil
}

func (s *Service) loadHistory(ctx context.Context, userID uint64) []Message {
	raw, ok, err := s.cache.Get(ctx, historyKey(userID))
	if err != nil {
		log.Printf("chat: history read failed: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	var history []Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil
	}
	return history
}

func (s *Service) saveHistory(ctx context.Context, userID uint64, history []Message) {
	raw, err := json.Marshal(history)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, historyKey(userID), string(raw), s.historyTTL); err != nil {
		log.Printf("chat: history write failed: %v", err)
	}
}

func historyKey(userID uint64) string {
	return fmt.Sprintf("%s%d", historyKeyPrefix, userID)
}
