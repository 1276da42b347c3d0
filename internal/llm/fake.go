package llm

import (
	"context"

	"github.com/kagent-go/kagent/internal/errs"
)

// ScriptedResponse is one canned reply for FakeClient, either a successful
// message or an error to surface for that call.
type ScriptedResponse struct {
	Chunks []StreamChunk
	Err    *errs.ChatProviderError
}

// FakeClient is a test double that returns scripted responses in order,
// one per call to Stream. Used by scheduler tests to drive scenarios
// S1-S6 from the specification without a real provider.
type FakeClient struct {
	responses []ScriptedResponse
	calls     int
}

// NewFakeClient builds a FakeClient that replays responses in order.
func NewFakeClient(responses ...ScriptedResponse) *FakeClient {
	return &FakeClient{responses: responses}
}

// Calls reports how many times Stream has been invoked.
func (f *FakeClient) Calls() int { return f.calls }

func (f *FakeClient) Stream(ctx context.Context, _ []Message, _ []ToolDefinition) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk)
	errCh := make(chan error, 1)

	if f.calls >= len(f.responses) {
		close(chunks)
		errCh <- &errs.ChatProviderError{Kind: errs.KindOther, Err: errNoMoreScriptedResponses}
		return chunks, errCh
	}
	resp := f.responses[f.calls]
	f.calls++

	go func() {
		defer close(chunks)
		for _, c := range resp.Chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if resp.Err != nil {
			errCh <- resp.Err
			return
		}
		errCh <- nil
	}()

	return chunks, errCh
}

var errNoMoreScriptedResponses = errNoMoreScripted{}

type errNoMoreScripted struct{}

func (errNoMoreScripted) Error() string { return "fake client: no more scripted responses" }
