// Package api provides the local HTTP control API and websocket status feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/nqd1/MacroRecorder/internal/config"
	"github.com/nqd1/MacroRecorder/internal/controller"
	"github.com/nqd1/MacroRecorder/internal/protocol"
)

// Controller is the part of the application the API drives
type Controller interface {
	Status() controller.Status
	Logs() []string
	StartRecording() error
	TogglePause() error
	Stop() error
	Save(path string) error
	Load(path string) (int, error)
	StartPlayback() error
	SetSpeed(speed float64)
	Subscribe(fn func(controller.Notification))
}

// Server provides HTTP API for remote control
type Server struct {
	configMgr *config.Manager
	ctrl      Controller
	token     string
	wsMgr     *WSManager

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a new API server and subscribes it to controller updates
func NewServer(configMgr *config.Manager, ctrl Controller) *Server {
	s := &Server{
		configMgr: configMgr,
		ctrl:      ctrl,
		token:     configMgr.Get().General.APIToken,
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()
	ctrl.Subscribe(s.wsMgr.publish)
	return s
}

// Handler returns the routed handler with auth and panic recovery applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/record", s.handleCommand(protocol.ActionRecord))
	mux.HandleFunc("/api/pause", s.handleCommand(protocol.ActionPause))
	mux.HandleFunc("/api/stop", s.handleCommand(protocol.ActionStop))
	mux.HandleFunc("/api/play", s.handleCommand(protocol.ActionPlay))
	mux.HandleFunc("/api/save", s.handleCommand(protocol.ActionSave))
	mux.HandleFunc("/api/load", s.handleCommand(protocol.ActionLoad))
	mux.HandleFunc("/api/speed", s.handleCommand(protocol.ActionSpeed))
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves the API on the loopback interface. It blocks until Shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		return err
	}
	log.Printf("API: listening on %s", addr)

	srv := &http.Server{Handler: s.Handler()}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and the websocket hub
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: recovered panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleLogs handles GET /api/logs?n=<lines>
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lines := s.ctrl.Logs()
	if v := r.URL.Query().Get("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid n parameter", http.StatusBadRequest)
			return
		}
		if n < len(lines) {
			lines = lines[len(lines)-n:]
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"lines": lines})
}

// handleCommand handles POST /api/<action>. Save and load take ?path=,
// speed takes ?value=.
func (s *Server) handleCommand(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		cmd := protocol.CommandPayload{Action: action, Path: r.URL.Query().Get("path")}
		if action == protocol.ActionSpeed {
			v, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
			if err != nil {
				http.Error(w, "Invalid value parameter", http.StatusBadRequest)
				return
			}
			cmd.Speed = v
		}

		result, err := s.execute(cmd)
		if err != nil {
			log.Printf("API: %s failed: %v", action, err)
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// execute runs one command against the controller and returns the new status
func (s *Server) execute(cmd protocol.CommandPayload) (map[string]interface{}, error) {
	result := map[string]interface{}{"status": "ok"}

	var err error
	switch cmd.Action {
	case protocol.ActionRecord:
		err = s.ctrl.StartRecording()
	case protocol.ActionPause:
		err = s.ctrl.TogglePause()
	case protocol.ActionStop:
		err = s.ctrl.Stop()
	case protocol.ActionPlay:
		err = s.ctrl.StartPlayback()
	case protocol.ActionSave:
		err = s.ctrl.Save(cmd.Path)
	case protocol.ActionLoad:
		var n int
		n, err = s.ctrl.Load(cmd.Path)
		result["events"] = n
	case protocol.ActionSpeed:
		if cmd.Speed <= 0 {
			return nil, errInvalidSpeed
		}
		s.ctrl.SetSpeed(cmd.Speed)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
	}
	if err != nil {
		return nil, err
	}

	result["state"] = s.ctrl.Status().State
	return result, nil
}

var (
	errUnknownAction = errors.New("unknown action")
	errInvalidSpeed  = errors.New("speed must be positive")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, controller.ErrNothingLoaded),
		errors.Is(err, errUnknownAction),
		errors.Is(err, errInvalidSpeed):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func statusPayload(st controller.Status) protocol.StatusPayload {
	return protocol.StatusPayload{
		State:          st.State,
		EventsRecorded: st.EventsRecorded,
		EventsPlayed:   st.EventsPlayed,
		TotalEvents:    st.TotalEvents,
		RecordingTime:  st.RecordingTime,
		Speed:          st.Speed,
		File:           st.File,
		Session:        st.Session,
	}
}
