package llm

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		bw := bufio.NewWriter(w)
		for _, line := range lines {
			_, _ = bw.WriteString(line + "\n")
			_ = bw.Flush()
			flusher.Flush()
		}
	}))
}

func TestOpenAIClientStreamsContent(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "secret", Model: "test-model"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chunks, errCh := client.Stream(ctx, []Message{UserText("hi")}, nil)

	var text string
	for c := range chunks {
		if c.Type == ChunkContent {
			text += c.Part.Text
		}
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "hello", text)
}

func TestOpenAIClientStreamsToolCall(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"Shell","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"command\":"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"echo hi\"}"}}]}}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "secret", Model: "test-model"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chunks, errCh := client.Stream(ctx, []Message{UserText("run echo")}, []ToolDefinition{{Name: "Shell"}})

	var last *ToolCall
	var name, args string
	for c := range chunks {
		if c.Type == ChunkToolCall {
			last = c.ToolCall
			name += c.ToolCall.Name
			args += c.ToolCall.Arguments
		}
	}
	require.NoError(t, <-errCh)
	require.NotNil(t, last)
	assert.Equal(t, "call-1", last.ID)
	assert.Equal(t, "Shell", name)
	assert.Equal(t, `{"command":"echo hi"}`, args)
}

func TestOpenAIClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "secret", Model: "test-model"})
	chunks, errCh := client.Stream(context.Background(), []Message{UserText("hi")}, nil)
	for range chunks {
	}
	err := <-errCh
	require.Error(t, err)
}
