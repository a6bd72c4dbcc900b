package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, models []string, reply string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]any, 0, len(models))
		for _, m := range models {
			data = append(data, map[string]any{"id": m, "object": "model", "owned_by": "library"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "llama3.2:1b", req["model"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "llama3.2:1b",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaHealthAndComplete(t *testing.T) {
	srv := newOllamaServer(t, []string{"llama3.2:1b"}, "hello there")
	c := NewOllamaClient(Config{BaseURL: srv.URL}, zerolog.Nop())

	require.NoError(t, c.Health(context.Background()))

	out, err := c.Complete(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

func TestOllamaHealthMissingModel(t *testing.T) {
	srv := newOllamaServer(t, []string{"mistral:7b"}, "")
	c := NewOllamaClient(Config{BaseURL: srv.URL}, zerolog.Nop())

	err := c.Health(context.Background())
	assert.ErrorContains(t, err, "llama3.2:1b")
}

func TestOllamaHealthUnreachable(t *testing.T) {
	srv := newOllamaServer(t, nil, "")
	url := srv.URL
	srv.Close()

	c := NewOllamaClient(Config{BaseURL: url, HealthTimeout: time.Second}, zerolog.Nop())
	assert.Error(t, c.Health(context.Background()))
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"content":       []map[string]any{{"type": "text", "text": "{\"question_text\": \"x\"}"}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 4, "output_tokens": 6},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient(Config{BaseURL: srv.URL + "/", APIKey: "test-key", Model: "claude-test"}, zerolog.Nop())

	require.NoError(t, c.Health(context.Background()))
	out, err := c.Complete(context.Background(), "generate")
	require.NoError(t, err)
	assert.Equal(t, `{"question_text": "x"}`, out)
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(Config{Provider: ProviderMock}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)

	c, err = New(Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	_, err = New(Config{Provider: ProviderAnthropic}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Config{Provider: "gemini"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestMockClientProducesDistinctQuestions(t *testing.T) {
	m := NewMockClient()
	a, _ := m.Complete(context.Background(), "q")
	b, _ := m.Complete(context.Background(), "q")
	assert.NotEqual(t, a, b)

	title, _ := m.Complete(context.Background(), "reply with a 3-word title")
	assert.Equal(t, "Mock Study Guide", title)
}
