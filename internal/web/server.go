// Package web provides the HTTP status page and on-screen counter controls.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/volume-counter/internal/logic"
	"github.com/sweeney/volume-counter/internal/status"
)

// Controller applies a counter change requested through the on-screen controls.
type Controller interface {
	Control(dir logic.Direction) (int64, error)
}

// Server serves the status page, controls and metrics over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	control    Controller
}

// New creates a Server that reads state from tracker and mutates the
// counter through control.
func New(addr string, tracker *status.Tracker, control Controller) *Server {
	s := &Server{tracker: tracker, control: control}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/api/increment", s.handleControl(logic.DirectionIncrease))
	mux.HandleFunc("/api/decrement", s.handleControl(logic.DirectionDecrease))
	mux.HandleFunc("/api/reset", s.handleControl(logic.DirectionReset))
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// ValueJSON is the response body of the control endpoints.
type ValueJSON struct {
	Value int64 `json:"value"`
}

func (s *Server) handleControl(dir logic.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		v, err := s.control.Control(dir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Plain HTML forms come back to the page
		if r.FormValue("return") == "html" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ValueJSON{Value: v})
	}
}
