// Package jsonrpc runs the tool protocol over standard input/output: one
// JSON request object per line in, one JSON response object per line
// out. Grounded on the teacher's cmd/server/main.go startup shape
// (structured logger, signal-driven shutdown) adapted from an HTTP
// listener to a stdin/stdout read loop, since spec.md §6.3's `serve`
// subcommand runs this mode by default.
package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/logging"
	"github.com/agent-memory/agent-memory/internal/tool"
)

// DefaultMaxRequestBytes bounds a single request line, per spec.md
// §6.3's "standard input may be bounded by a maximum buffer size to
// prevent denial of service."
const DefaultMaxRequestBytes = 1 << 20 // 1 MiB

// wireRequest is the line-delimited request shape.
type wireRequest struct {
	Tool          string          `json:"tool"`
	Action        string          `json:"action"`
	Actor         string          `json:"actor"`
	Scope         *wireScope      `json:"scope,omitempty"`
	Params        json.RawMessage `json:"params,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

type wireScope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// wireResponse wraps tool.Response with the correlation id the caller
// sent, so a pipelined caller can match responses to requests without
// requiring strict request/response ordering.
type wireResponse struct {
	tool.Response
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Server runs the read-eval-print loop over r/w until r is exhausted or
// ctx is cancelled.
type Server struct {
	Dispatcher      *tool.Dispatcher
	Logger          *slog.Logger
	MaxRequestBytes int
}

// NewServer builds a Server. maxRequestBytes <= 0 uses
// DefaultMaxRequestBytes.
func NewServer(d *tool.Dispatcher, logger *slog.Logger, maxRequestBytes int) *Server {
	if maxRequestBytes <= 0 {
		maxRequestBytes = DefaultMaxRequestBytes
	}
	return &Server{Dispatcher: d, Logger: logger, MaxRequestBytes: maxRequestBytes}
}

// Serve reads one JSON request per line from r and writes one JSON
// response per line to w, until r returns io.EOF or ctx is cancelled.
// A malformed line yields an error response and the loop continues; it
// never aborts the whole session over one bad line.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), s.MaxRequestBytes)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp, correlationID := s.handle(ctx, line)
		if err := enc.Encode(wireResponse{Response: resp, CorrelationID: correlationID}); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.Logger.Error("jsonrpc: request exceeded max buffer size")
		}
		return err
	}
	return nil
}

func (s *Server) handle(ctx context.Context, line []byte) (tool.Response, string) {
	var req wireRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return tool.Response{Success: false, Error: &tool.ErrorPayload{Code: 1000, Message: "malformed request"}}, ""
	}

	if req.CorrelationID == "" {
		req.CorrelationID = logging.NewCorrelationID()
	}
	ctx = logging.WithCorrelationID(ctx, req.CorrelationID)

	scope := domain.Global
	if req.Scope != nil {
		scope = domain.ScopeRef{Kind: domain.ScopeKind(req.Scope.Type), ID: req.Scope.ID}
	}

	resp := s.Dispatcher.Call(ctx, req.Tool, req.Action, tool.Request{
		Actor:  req.Actor,
		Scope:  scope,
		Params: req.Params,
	})
	return resp, req.CorrelationID
}
