package monitor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/tldetector/internal/db"
	"github.com/banshee-data/tldetector/internal/httputil"
	"github.com/banshee-data/tldetector/internal/monitoring"
)

// WebServer serves the monitoring HTTP interface.
type WebServer struct {
	address string
	source  StatusSource
	history *DecisionHistory
	db      *db.DB
	server  *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Source  StatusSource
	History *DecisionHistory
	DB      *db.DB // optional; enables /api/sessions and the /debug/ admin routes
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		address: config.Address,
		source:  config.Source,
		history: config.History,
		db:      config.DB,
	}
	if ws.history == nil {
		ws.history = NewDecisionHistory(0)
	}

	handler, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the route multiplexer, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/decisions", ws.handleDecisions)
	mux.HandleFunc("/api/sessions", ws.handleSessions)
	mux.HandleFunc("/debug/decisions", ws.handleDecisionChart)

	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if ws.source == nil || !ws.source.Ready() {
		httputil.HealthStatus(w, false, "waiting for pose and route")
		return
	}
	httputil.HealthStatus(w, true, "ok")
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.source == nil {
		httputil.InternalServerError(w, "no detector attached")
		return
	}
	httputil.WriteJSONOK(w, BuildStatus(ws.source))
}

// handleDecisions returns the newest decisions held in memory.
// Query params:
//   - limit (optional; default 100, max the history size)
func (ws *WebServer) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, ok := parseLimit(w, r, 100)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, ws.history.Recent(limit))
}

// handleSessions lists recorded sessions, or the decisions of one session
// when session_id is given.
func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.NotFound(w, "decision log disabled")
		return
	}
	limit, ok := parseLimit(w, r, 100)
	if !ok {
		return
	}

	if id := r.URL.Query().Get("session_id"); id != "" {
		if _, err := ws.db.GetSession(r.Context(), id); err != nil {
			if errors.Is(err, db.ErrSessionNotFound) {
				httputil.NotFound(w, err.Error())
				return
			}
			httputil.InternalServerError(w, err.Error())
			return
		}
		decisions, err := ws.db.Decisions(r.Context(), id, limit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, decisions)
		return
	}

	sessions, err := ws.db.ListSessions(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		httputil.BadRequest(w, "invalid 'limit' parameter")
		return 0, false
	}
	return v, true
}
