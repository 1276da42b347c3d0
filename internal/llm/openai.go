package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kagent-go/kagent/internal/errs"
)

// OpenAIConfig points an OpenAIClient at a chat/completions-compatible
// endpoint: the wire format most third-party providers (including the
// original's moonshot/kimi backend) speak.
type OpenAIConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int64
	CustomHeaders map[string]string
}

// OpenAIClient is a minimal chat/completions SSE streaming Client.
// Grounded on the request/response shape and SSE event loop of
// _examples/kadirpekel-hector/pkg/llms/openai.go, trimmed to this
// module's llm.Client contract (no Responses-API reasoning items, no
// built-in retry/backoff, which internal/scheduler already owns via
// errs.ChatProviderError.Retryable). The concrete provider wire
// protocol itself is outside this module's specified scope; this
// client exists only so cmd/kagent has something real to run against.
type OpenAIClient struct {
	cfg    OpenAIConfig
	client *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{cfg: cfg, client: &http.Client{Timeout: 5 * time.Minute}}
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatToolCallFunc `json:"function"`
}

type chatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int64        `json:"max_tokens,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string      `json:"content"`
			ToolCalls []chatDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type chatDelta struct {
	Index    int              `json:"index"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatToolCallFunc `json:"function"`
}

func toChatMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		cm := chatMessage{Role: string(m.Role), Content: m.Text(), ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatToolCallFunc{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func toChatTools(tools []ToolDefinition) []chatTool {
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// Stream implements Client.
func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		errCh <- c.stream(ctx, messages, tools, chunks)
	}()

	return chunks, errCh
}

func (c *OpenAIClient) stream(ctx context.Context, messages []Message, tools []ToolDefinition, chunks chan<- StreamChunk) error {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    toChatMessages(messages),
		Tools:       toChatTools(tools),
		Stream:      true,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return &errs.ChatProviderError{Kind: errs.KindOther, Err: err}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &errs.ChatProviderError{Kind: errs.KindOther, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range c.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &errs.ChatProviderError{Kind: errs.KindTimeout, Err: err}
		}
		return &errs.ChatProviderError{Kind: errs.KindConnection, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &errs.ChatProviderError{Kind: errs.KindStatus, Status: resp.StatusCode, Err: fmt.Errorf("%s", string(respBody))}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sawAny := false
	pendingToolCalls := map[int]*ToolCall{}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		if data == "" {
			continue
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				sawAny = true
				select {
				case chunks <- StreamChunk{Type: ChunkContent, Part: Part{Kind: PartText, Text: choice.Delta.Content}}:
				case <-ctx.Done():
					return &errs.ChatProviderError{Kind: errs.KindTimeout, Err: ctx.Err()}
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				sawAny = true
				call, ok := pendingToolCalls[tc.Index]
				if !ok {
					call = &ToolCall{}
					pendingToolCalls[tc.Index] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name += tc.Function.Name
				}
				call.Arguments += tc.Function.Arguments

				delta := ToolCall{ID: call.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
				select {
				case chunks <- StreamChunk{Type: ChunkToolCall, ToolCall: &delta}:
				case <-ctx.Done():
					return &errs.ChatProviderError{Kind: errs.KindTimeout, Err: ctx.Err()}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return &errs.ChatProviderError{Kind: errs.KindConnection, Err: err}
	}
	if !sawAny {
		return &errs.ChatProviderError{Kind: errs.KindEmptyResponse, Err: errors.New("stream produced no content or tool calls")}
	}

	select {
	case chunks <- StreamChunk{Type: ChunkDone}:
	case <-ctx.Done():
		return &errs.ChatProviderError{Kind: errs.KindTimeout, Err: ctx.Err()}
	}
	return nil
}
