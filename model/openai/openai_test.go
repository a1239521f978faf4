package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/autopm/core"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.Model = "gpt-4o-mini"
		o.RequestOptions = []option.RequestOption{
			option.WithBaseURL(srv.URL + "/"),
			option.WithMaxRetries(0),
		}
	})
}

func TestModel_Complete(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"agent\":\"GPT4\",\"rationale\":\"clear\"}"}}]
		}`)
	})

	out, err := m.Complete(context.Background(), []core.Message{
		core.SystemMessage("route"),
		core.UserMessage("example"),
		core.AssistantMessage("answer"),
		core.UserMessage("task"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"agent":"GPT4","rationale":"clear"}`, out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	roles := make([]string, 0, len(msgs))
	for _, raw := range msgs {
		roles = append(roles, raw.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestModel_Complete_NoChoices(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`)
	})

	_, err := m.Complete(context.Background(), []core.Message{core.UserMessage("hi")})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestModel_Complete_APIError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	_, err := m.Complete(context.Background(), []core.Message{core.UserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "k"; o.Model = "gpt-4o" })
	info := m.Info()
	assert.Equal(t, "gpt-4o", info.Name)
	assert.Equal(t, "openai", info.Provider)
}

func TestBuildMessages_SkipsEmptyUserContent(t *testing.T) {
	out := buildMessages([]core.Message{core.UserMessage(""), core.UserMessage("x")})
	assert.Len(t, out, 1)
}
