package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"trade-assistant/internal/common/config"
	"trade-assistant/internal/common/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.GenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5000,
	}, logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotReq map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, `{"choices": [{"message": {"content": "YES"}}]}`)
	})

	reply, err := client.Complete(context.Background(), "system prompt", "user text")
	require.NoError(t, err)
	assert.Equal(t, "YES", reply)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotReq["model"])

	messages := gotReq["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletionFailed)
}

func TestCompleteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletionFailed)
}

func TestCompleteWithSchema(t *testing.T) {
	var gotReq map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, `{"choices": [{"message": {"tool_calls": [
			{"function": {"name": "extract", "arguments": "{\"code\": \"8471\"}"}}
		]}}]}`)
	})

	raw, err := client.CompleteWithSchema(context.Background(), "s", "u", FunctionSchema{
		Name:       "extract",
		Parameters: map[string]interface{}{"type": "object"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code": "8471"}`, string(raw))

	tools := gotReq["tools"].([]interface{})
	require.Len(t, tools, 1)
	choice := gotReq["tool_choice"].(map[string]interface{})
	assert.Equal(t, "function", choice["type"])
}

func TestCompleteWithSchemaNoToolCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices": [{"message": {"content": "plain text instead"}}]}`)
	})

	_, err := client.CompleteWithSchema(context.Background(), "s", "u", FunctionSchema{Name: "extract"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoToolCall)
}
