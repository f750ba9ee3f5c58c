package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sdibella/simwatch/internal/session"
	"github.com/sdibella/simwatch/internal/sim"
	"github.com/sdibella/simwatch/internal/simapi"
)

//go:embed web/templates/*
var templateFS embed.FS

// Server exposes the observer's current session over HTTP.
type Server struct {
	obs       *session.Observer
	templates *template.Template
	mux       *http.ServeMux
}

func NewServer(obs *session.Observer) (*Server, error) {
	funcMap := template.FuncMap{
		"signed": func(v float64) string { return fmt.Sprintf("%+.2f", v) },
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "web/templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{obs: obs, templates: tmpl, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/equity", s.handleEquity)
	s.mux.HandleFunc("GET /api/trades", s.handleTrades)
	s.mux.HandleFunc("GET /api/positions", s.handlePositions)
	s.mux.HandleFunc("GET /api/performance", s.handlePerformance)
	s.mux.HandleFunc("POST /api/observe", s.handleObserve)
	s.mux.HandleFunc("POST /api/pause", s.handleControl(func(ctx context.Context, sess *session.Session) error {
		return sess.Pause(ctx)
	}))
	s.mux.HandleFunc("POST /api/resume", s.handleControl(func(ctx context.Context, sess *session.Session) error {
		return sess.Resume(ctx)
	}))
	s.mux.HandleFunc("POST /api/stop", s.handleControl(func(ctx context.Context, sess *session.Session) error {
		return sess.Stop(ctx)
	}))
	s.mux.HandleFunc("POST /api/speed", s.handleSpeed)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("dashboard starting", "addr", "http://"+addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return nil
}

// current returns the observed session, answering 404 when there is none.
func (s *Server) current(w http.ResponseWriter) (*session.Session, bool) {
	sess := s.obs.Current()
	if sess == nil {
		http.Error(w, "no simulation observed", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, NewSummary(sess.View()))
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, EquityCurve(sess.View().State.Series, MaxEquityPoints))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	limit := MaxTrades
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, RecentTrades(sess.View().State.Trades, limit))
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	positions := sess.View().State.Positions
	if positions == nil {
		positions = []sim.Position{}
	}
	writeJSON(w, positions)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, ComputePerformance(sess.View().State.Trades))
}

// handleObserve switches to the simulation named by ?id=. The new session
// outlives the request.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := simapi.ValidateID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, _ := s.obs.Observe(context.WithoutCancel(r.Context()), id)
	slog.Info("observing simulation", "id", id, "session", sess.ID())

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"session_id": sess.ID(), "simulation_id": id})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	speed, err := strconv.ParseFloat(r.URL.Query().Get("speed"), 64)
	if err != nil {
		http.Error(w, "invalid speed", http.StatusBadRequest)
		return
	}
	s.handleControl(func(ctx context.Context, sess *session.Session) error {
		return sess.SetSpeed(ctx, speed)
	})(w, r)
}

func (s *Server) handleControl(fn func(context.Context, *session.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.current(w)
		if !ok {
			return
		}
		if err := fn(r.Context(), sess); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, session.ErrClosed) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var data *Summary
	if sess := s.obs.Current(); sess != nil {
		sum := NewSummary(sess.View())
		data = &sum
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("failed to render index template", "err", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
