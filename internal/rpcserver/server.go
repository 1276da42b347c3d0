package rpcserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kagent-go/kagent/internal/approval"
	"github.com/kagent-go/kagent/internal/errs"
	"github.com/kagent-go/kagent/internal/soul"
	"github.com/kagent-go/kagent/internal/wire"
)

// protocolVersion is the value the server accepts from a client's
// initialize call, mirroring wire.ProtocolVersion.
const protocolVersion = wire.ProtocolVersion

// Server drives a soul.Soul from JSON-RPC requests read one per line
// from in, writing responses and notifications one per line to out. It
// has no precedent server.rs to port: the loop shape (scan a line,
// dispatch the decoded request in its own goroutine so a concurrent
// cancel/approve can still be read and handled while a prompt call is
// in flight) is an idiomatic adaptation of the stdin line-reading idiom
// cmd/hector/chat_direct.go uses for its interactive chat loop.
type Server struct {
	soul     *soul.Soul
	approval *approval.Approval

	in  *bufio.Scanner
	out io.Writer

	writeMu sync.Mutex

	mu          sync.Mutex
	initialized bool
	cancelTurn  context.CancelFunc
}

// New builds a Server around soul, which must already have its toolset
// and labor market wired up. appr is the same approval coordinator the
// soul's runtime carries, used to resolve approve calls.
func New(s *soul.Soul, appr *approval.Approval, in io.Reader, out io.Writer) *Server {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Server{soul: s, approval: appr, in: scanner, out: out}
}

// Serve reads lines from stdin until EOF or a scanner error; ctx is not
// checked while reading, and its error is returned only once reading has
// stopped. Each request is dispatched in its own goroutine so a
// long-running prompt doesn't block a concurrent cancel or approve.
func (srv *Server) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for srv.in.Scan() {
		line := srv.in.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var msg InboundMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			srv.writeError(nil, CodeParseError, "invalid json: "+err.Error(), nil)
			continue
		}
		if msg.Method == "" {
			continue
		}

		wg.Add(1)
		go func(msg InboundMessage) {
			defer wg.Done()
			srv.dispatch(ctx, msg)
		}(msg)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return srv.in.Err()
}

func (srv *Server) dispatch(ctx context.Context, msg InboundMessage) {
	switch msg.Method {
	case "initialize":
		srv.handleInitialize(msg)
	case "prompt":
		srv.handlePrompt(ctx, msg)
	case "cancel":
		srv.handleCancel(msg)
	case "approve":
		srv.handleApprove(msg)
	case "info":
		srv.handleInfo(msg)
	default:
		srv.writeError(msg.ID, CodeMethodNotFound, fmt.Sprintf("unknown method %q", msg.Method), nil)
	}
}

func (srv *Server) handleInitialize(msg InboundMessage) {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			srv.writeError(msg.ID, CodeInvalidParams, err.Error(), nil)
			return
		}
	}

	srv.mu.Lock()
	srv.initialized = true
	srv.mu.Unlock()

	srv.writeResult(msg.ID, map[string]any{
		"protocol_version": protocolVersion,
		"agent":            srv.soul.Name(),
		"model":            srv.soul.ModelName(),
	})
}

func (srv *Server) handlePrompt(ctx context.Context, msg InboundMessage) {
	srv.mu.Lock()
	if !srv.initialized {
		srv.mu.Unlock()
		srv.writeError(msg.ID, CodeInvalidState, "server not initialized", nil)
		return
	}
	if srv.cancelTurn != nil {
		srv.mu.Unlock()
		srv.writeError(msg.ID, CodeInvalidState, "a turn is already in progress", nil)
		return
	}
	srv.mu.Unlock()

	var params PromptParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		srv.writeError(msg.ID, CodeInvalidParams, err.Error(), nil)
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	srv.mu.Lock()
	srv.cancelTurn = cancel
	srv.mu.Unlock()
	defer func() {
		cancel()
		srv.mu.Lock()
		srv.cancelTurn = nil
		srv.mu.Unlock()
	}()

	err := srv.soul.Run(turnCtx, params.UserInput, srv.onEvent)
	srv.respondPromptResult(msg.ID, err)
}

func (srv *Server) respondPromptResult(id *string, err error) {
	switch {
	case err == nil:
		srv.writeResult(id, map[string]any{"status": StatusFinished})
	case errors.Is(err, errs.ErrRunCancelled):
		srv.writeResult(id, map[string]any{"status": StatusCancelled})
	case errors.Is(err, errs.ErrMaxStepsReached):
		srv.writeResult(id, map[string]any{"status": StatusMaxStepsReached})
	case errors.Is(err, errs.ErrLLMNotSet):
		srv.writeError(id, CodeLLMNotSet, err.Error(), nil)
	case errors.Is(err, errs.ErrLLMNotSupported):
		srv.writeError(id, CodeLLMNotSupported, err.Error(), nil)
	default:
		var cpe *errs.ChatProviderError
		if errors.As(err, &cpe) {
			srv.writeError(id, CodeChatProviderError, cpe.Error(), map[string]any{"kind": cpe.Kind.String(), "status": cpe.Status})
			return
		}
		srv.writeError(id, CodeInternalError, err.Error(), nil)
	}
}

func (srv *Server) handleCancel(msg InboundMessage) {
	srv.mu.Lock()
	cancel := srv.cancelTurn
	srv.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if msg.ID != nil {
		srv.writeResult(msg.ID, map[string]any{"cancelled": cancel != nil})
	}
}

func (srv *Server) handleApprove(msg InboundMessage) {
	var params ApproveParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		srv.writeError(msg.ID, CodeInvalidParams, err.Error(), nil)
		return
	}

	kind := wire.ApprovalResponseKind(params.Response)
	switch kind {
	case wire.Approve, wire.ApproveForSession, wire.Reject:
	default:
		srv.writeError(msg.ID, CodeInvalidParams, fmt.Sprintf("unknown approval response %q", params.Response), nil)
		return
	}

	if err := srv.approval.ResolveRequest(params.RequestID, kind); err != nil {
		srv.writeError(msg.ID, CodeInvalidState, err.Error(), nil)
		return
	}
	if msg.ID != nil {
		srv.writeResult(msg.ID, map[string]any{"ok": true})
	}
}

func (srv *Server) handleInfo(msg InboundMessage) {
	status := srv.soul.Status()
	srv.writeResult(msg.ID, map[string]any{
		"agent":         srv.soul.Name(),
		"model":         srv.soul.ModelName(),
		"context_usage": status.ContextUsage,
		"yolo":          status.YOLOEnabled,
	})
}

// onEvent forwards a wire event to the client: approval requests need a
// correlation id so the client can answer them with approve, everything
// else is a plain fire-and-forget event notification.
func (srv *Server) onEvent(msg wire.Message) {
	if msg.Type == wire.TypeApprovalRequest {
		var payload wire.ApprovalRequestPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			srv.write(newRequestMessage(payload.ID, msg))
			return
		}
	}
	srv.write(newEventMessage(msg))
}

func (srv *Server) writeResult(id *string, result any) {
	if id == nil {
		return
	}
	srv.write(SuccessResponse{JSONRPC: "2.0", ID: *id, Result: result})
}

func (srv *Server) writeError(id *string, code int64, message string, data any) {
	srv.write(ErrorResponse{JSONRPC: "2.0", ID: id, Error: ErrorObject{Code: code, Message: message, Data: data}})
}

func (srv *Server) write(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("rpcserver: marshal outbound message", "error", err)
		return
	}

	srv.writeMu.Lock()
	defer srv.writeMu.Unlock()
	if _, err := srv.out.Write(append(b, '\n')); err != nil {
		slog.Error("rpcserver: write outbound message", "error", err)
	}
}
