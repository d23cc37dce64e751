package tool

import (
	"context"
	"log/slog"

	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

// Response is the single top-level JSON object every tool call returns,
// per spec.md §6.1: success plus a kind-specific payload, or success
// plus an error.
type Response struct {
	Success bool           `json:"success"`
	Payload any            `json:"payload,omitempty"`
	Error   *ErrorPayload  `json:"error,omitempty"`
}

// ErrorPayload is the wire shape of a failed call.
type ErrorPayload struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Dispatcher binds a Registry to a Runtime's AppContext for handling
// calls. One Dispatcher per AppContext; both transports construct one
// over the AppContext they were handed at startup.
type Dispatcher struct {
	reg *Registry
	ac  *runtime.AppContext
}

// NewDispatcher builds a Dispatcher wired to reg and ac.
func NewDispatcher(reg *Registry, ac *runtime.AppContext) *Dispatcher {
	return &Dispatcher{reg: reg, ac: ac}
}

// Call looks up (toolName, action) and runs it, converting any error
// into the wire error shape. A handler panic is not recovered here: it
// propagates out of Call, so it surfaces as a transport-level
// 500/crash rather than a silently swallowed bug (see DESIGN.md "Tool
// dispatcher" entry).
func (d *Dispatcher) Call(ctx context.Context, toolName, action string, req Request) Response {
	h, ok := d.reg.Get(toolName, action)
	if !ok {
		return errorResponse(apperror.New(apperror.CodeMissingField, "unknown tool action", "tool", toolName, "action", action))
	}

	payload, err := h(ctx, d.ac, req)
	if err != nil {
		d.ac.Logger.Error("tool call failed", slog.String("tool", toolName), slog.String("action", action), slog.String("error", err.Error()))
		return errorResponse(err)
	}
	return Response{Success: true, Payload: payload}
}

func errorResponse(err error) Response {
	var appErr *apperror.Error
	if apperror.As(err, &appErr) {
		return Response{Success: false, Error: &ErrorPayload{
			Code:    int(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Context,
		}}
	}
	// Never leak a raw Go/SQL error string to a caller.
	return Response{Success: false, Error: &ErrorPayload{
		Code:    int(apperror.CodeInternal),
		Message: "internal error",
	}}
}
