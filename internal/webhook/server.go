package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/loungeremote/internal/gateway"
	"github.com/user/loungeremote/internal/state"
	"github.com/user/loungeremote/pkg/lounge"
)

const writeWait = 10 * time.Second

// Server is the HTTP front end: health, metrics, status, commands, routine
// webhooks, history and a websocket event stream.
type Server struct {
	gw       *gateway.Gateway
	routines *state.RoutineStore
	history  *state.HistoryStore
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// NewServer creates a Server. history may be nil; gatherer defaults to
// prometheus.DefaultGatherer.
func NewServer(gw *gateway.Gateway, routines *state.RoutineStore, history *state.HistoryStore, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		gw:       gw,
		routines: routines,
		history:  history,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/command", s.handleCommand)
	s.mux.HandleFunc("POST /webhook/{name}", s.handleRoutine)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected := 0
	remotes := s.gw.Remotes()
	for _, rm := range remotes {
		if rm.Client().Connected() {
			connected++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"screens":   len(remotes),
		"connected": connected,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if ref := r.URL.Query().Get("screen"); ref != "" {
		rm, err := s.gw.Remote(ref)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rm.Status())
		return
	}

	remotes := s.gw.Remotes()
	result := make([]gateway.Status, 0, len(remotes))
	for _, rm := range remotes {
		result = append(result, rm.Status())
	}
	writeJSON(w, http.StatusOK, result)
}

// commandRequest is the JSON body for POST /api/command.
type commandRequest struct {
	Screen  string   `json:"screen"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	cmd, err := gateway.ParseCommand(req.Command, req.Args)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rm, err := s.gw.Remote(req.Screen)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := s.gw.Execute(r.Context(), rm.ScreenID(), cmd); err != nil {
		slog.Error("api command failed", "screen_id", rm.ScreenID(), "command", cmd.Name(), "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "command": cmd.Name(), "screen_id": rm.ScreenID()})
}

func (s *Server) handleRoutine(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	routine, err := s.routines.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}
	if !routine.Enabled {
		writeError(w, http.StatusForbidden, "routine is disabled")
		return
	}

	job, err := s.gw.RunRoutine(routine, "webhook")
	if err != nil {
		slog.Error("webhook routine failed", "routine", name, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "screen_id": job.ScreenID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history not configured")
		return
	}
	rm, err := s.gw.Remote(r.URL.Query().Get("screen"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.history.Tail(r.Context(), rm.ScreenID(), limit)
	if err != nil {
		slog.Error("tail history failed", "screen_id", rm.ScreenID(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []*state.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// streamMessage is one websocket message on /api/events.
type streamMessage struct {
	Type   string       `json:"type"`
	Event  lounge.Event `json:"event,omitempty"`
	Missed uint64       `json:"missed,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rm, err := s.gw.Remote(r.URL.Query().Get("screen"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := rm.Subscribe()
	defer sub.Close()

	// A read error means the peer went away; closing the subscription
	// unblocks Recv below.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for {
		ev, err := sub.Recv(r.Context())
		var msg streamMessage
		var lagged *lounge.LaggedError
		switch {
		case err == nil:
			msg = streamMessage{Type: string(ev.Type()), Event: ev}
		case errors.As(err, &lagged):
			msg = streamMessage{Type: "lagged", Missed: lagged.Missed}
		default:
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Debug("websocket write failed", "error", err)
			return
		}
	}
}
