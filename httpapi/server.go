// Package httpapi exposes sessions and their events over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
)

// Sessions is what the API drives; *workflow.Controller implements it.
type Sessions interface {
	Start(ctx context.Context, role monitoring.Role) (workflow.Snapshot, error)
	Snapshot(ctx context.Context, sessionID string) (workflow.Snapshot, error)
	Handle(ctx context.Context, sessionID string, evt workflow.Event) (workflow.Result, error)
	End(ctx context.Context, sessionID string) error
}

// DefaultMaxBody bounds request bodies; uploads travel base64 encoded.
const DefaultMaxBody int64 = 32 << 20

type options struct {
	logger         logging.Logger
	maxBody        int64
	requestTimeout time.Duration
}

type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.Normalize(l)
	}
}

func WithMaxBody(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBody = n
		}
	}
}

// WithRequestTimeout bounds each request, backend calls included.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

type api struct {
	sessions Sessions
	logger   logging.Logger
	maxBody  int64
}

// NewRouter mounts the session routes.
func NewRouter(sessions Sessions, opts ...Option) http.Handler {
	o := options{
		logger:         logging.Nop{},
		maxBody:        DefaultMaxBody,
		requestTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	a := &api{sessions: sessions, logger: o.logger, maxBody: o.maxBody}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(o.requestTimeout))

	r.Get("/healthz", a.health)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Delete("/", a.deleteSession)
			r.Post("/events", a.postEvent)
		})
	})
	return r
}

// NewServer wraps handler in an http.Server listening on addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	Role string `json:"role"`
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	role, err := monitoring.ParseRole(req.Role)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := a.sessions.Start(r.Context(), role)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+snap.SessionID)
	writeJSON(w, http.StatusCreated, snap)
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.sessions.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.End(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postEvent reads {"event": name, ...fields} and runs one handling pass.
func (a *api) postEvent(w http.ResponseWriter, r *http.Request) {
	body, err := a.readBody(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		a.fail(w, r, monitoring.InvalidValue("body", err.Error()))
		return
	}
	if strings.TrimSpace(envelope.Event) == "" {
		a.fail(w, r, monitoring.MissingField("event"))
		return
	}
	evt, err := workflow.DecodeEvent(envelope.Event, body)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.sessions.Handle(r.Context(), chi.URLParam(r, "sessionID"), evt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody))
	if err != nil {
		return nil, monitoring.InvalidValue("body", "request body exceeds "+humanize.IBytes(uint64(a.maxBody)))
	}
	return body, nil
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := a.readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return monitoring.InvalidValue("body", err.Error())
	}
	return nil
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := flow.HTTPStatusForError(err)
	logger := logging.WithFields(a.logger.WithContext(r.Context()), map[string]any{
		"request_id": middleware.GetReqID(r.Context()),
		"status":     status,
		"code":       monitoring.Code(err),
	})
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debug("%s %s refused: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]any{"error": flow.ErrorEnvelopeFor(err)})
}

func (a *api) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithFields(a.logger.WithContext(r.Context()), map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
			"remote":     r.RemoteAddr,
		}).Info("%s %s %d %s in %s", r.Method, r.URL.Path, ww.Status(),
			humanize.Bytes(uint64(ww.BytesWritten())), time.Since(started).Round(time.Microsecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
