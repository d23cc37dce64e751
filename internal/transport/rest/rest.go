// Package rest runs the tool protocol over HTTP, `serve --rest` in
// spec.md §6.3, as POST /tools/{tool}/{action}. Grounded on the
// teacher's cmd/server/main.go (gorilla/mux router, /healthz,
// Prometheus /metrics, graceful shutdown) with the alert-history
// domain routes replaced by the flat tool dispatch table.
package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/logging"
	"github.com/agent-memory/agent-memory/internal/runtime"
	"github.com/agent-memory/agent-memory/internal/tool"
)

const maxBodyBytes = 4 << 20 // 4 MiB

// Server is the HTTP surface over a Dispatcher.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type callBody struct {
	Actor         string          `json:"actor"`
	Scope         *wireScope      `json:"scope,omitempty"`
	Params        json.RawMessage `json:"params,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

type wireScope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// NewServer builds the router and wraps it in an *http.Server bound to
// addr. rt is used for /healthz and to wire the watch websocket into
// the event bus; d serves every /tools/{tool}/{action} call.
func NewServer(addr string, d *tool.Dispatcher, rt *runtime.Runtime) *Server {
	hub := newWatchHub(rt.Logger)
	unsub, err := rt.Events.Subscribe(context.Background(), hub.handleEvent)
	if err != nil {
		rt.Logger.Error("rest: failed to subscribe watch hub", slog.String("error", err.Error()))
	} else {
		rt.TrackUnsubscribe(unsub)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthHandler(rt)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/watch", hub.ServeHTTP).Methods(http.MethodGet)
	r.HandleFunc("/tools/{tool}/{action}", callHandler(d, rt.Logger)).Methods(http.MethodPost)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: rt.Logger,
	}
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("rest: listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(rt *runtime.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rt.Storage.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"healthy":false}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"healthy":true}`))
	}
}

func callHandler(d *tool.Dispatcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, tool.Response{Success: false, Error: &tool.ErrorPayload{Code: 1000, Message: "failed to read request body"}})
			return
		}
		if len(body) > maxBodyBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, tool.Response{Success: false, Error: &tool.ErrorPayload{Code: 1002, Message: "request body too large"}})
			return
		}

		var cb callBody
		if len(body) > 0 {
			if err := json.Unmarshal(body, &cb); err != nil {
				writeJSON(w, http.StatusBadRequest, tool.Response{Success: false, Error: &tool.ErrorPayload{Code: 1001, Message: "malformed request body"}})
				return
			}
		}

		ctx := r.Context()
		correlationID := cb.CorrelationID
		if correlationID == "" {
			correlationID = logging.NewCorrelationID()
		}
		ctx = logging.WithCorrelationID(ctx, correlationID)

		scope := domain.Global
		if cb.Scope != nil {
			scope = domain.ScopeRef{Kind: domain.ScopeKind(cb.Scope.Type), ID: cb.Scope.ID}
		}

		resp := d.Call(ctx, vars["tool"], vars["action"], tool.Request{
			Actor:  cb.Actor,
			Scope:  scope,
			Params: cb.Params,
		})

		status := http.StatusOK
		if !resp.Success {
			status = statusForError(resp.Error)
		}
		w.Header().Set("X-Correlation-Id", correlationID)
		writeJSON(w, status, resp)
	}
}

func statusForError(e *tool.ErrorPayload) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Code / 1000 {
	case 1:
		return http.StatusBadRequest
	case 2:
		return http.StatusConflict
	case 3:
		return http.StatusLocked
	case 6:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
