package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/aiclient"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

func TestGenerate(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Net income rose [2].\n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(LLMConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())

	out, err := svc.Generate(context.Background(), "How did net income change?", driven.GenerateOptions{
		System:    "Use the excerpts.",
		MaxTokens: 400,
		StopWords: []string{"Sources:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Net income rose [2].", out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, message{Role: "system", Content: "Use the excerpts."}, got.Messages[0])
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, 400, got.MaxTokens)
	assert.Equal(t, []string{"Sources:"}, got.Stop)
}

func TestGenerate_NoSystem(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	svc, _ := NewLLMService(LLMConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := svc.Generate(context.Background(), "q", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Len(t, raw["messages"], 1)
	assert.NotContains(t, raw, "max_tokens")
	assert.NotContains(t, raw, "stop")
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		is     error
		text   string
	}{
		{"rate limited", http.StatusTooManyRequests, ``, domain.ErrRateLimited, "Too Many Requests"},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"invalid key","type":"auth"}}`, aiclient.ErrUnauthorized, "invalid key"},
		{"no choices", http.StatusOK, `{"choices":[]}`, nil, "no completion choices"},
		{"not json", http.StatusBadGateway, `<html>`, nil, "status 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc, _ := NewLLMService(LLMConfig{APIKey: "k", BaseURL: srv.URL, RetryDelay: time.Millisecond})
			_, err := svc.Generate(context.Background(), "q", driven.GenerateOptions{})
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Contains(t, err.Error(), tt.text)
		})
	}
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.Error(t, err)
}
