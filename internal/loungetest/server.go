// Package loungetest provides an in-memory lounge server for tests of code
// built on pkg/lounge.
package loungetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/user/loungeremote/pkg/lounge"
)

// Screen is the screen every Server pretends to be.
var Screen = lounge.Screen{Name: "Living Room", ScreenID: "screen-1", LoungeToken: "token-1"}

// Server answers bind, long-poll, command and pairing requests. Events pushed
// with PushEvent are streamed to the open long poll.
type Server struct {
	*httptest.Server

	t      testing.TB
	mu     sync.Mutex
	binds  int
	terms  int
	tokens int
	cmds   []url.Values
	status []int
	frames chan string
	kick   chan struct{}
	polls  []int
	aid    int
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{t: t, frames: make(chan string, 64), kick: make(chan struct{}, 1), aid: 2}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/lounge/bc/bind", s.handleBind)
	mux.HandleFunc("GET /api/lounge/bc/bind", s.handlePoll)
	mux.HandleFunc("POST /api/lounge/pairing/get_lounge_token_batch", s.handleTokenBatch)
	mux.HandleFunc("POST /api/lounge/pairing/get_screen_availability", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"screens":[{"status":"online"}]}`)
	})
	mux.HandleFunc("POST /api/lounge/pairing/get_screen", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"screen":{"name":%q,"screenId":%q,"loungeToken":%q}}`, Screen.Name, Screen.ScreenID, Screen.LoungeToken)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Client returns a client for Screen pointed at s with short delays.
func (s *Server) Client(opts ...lounge.Option) *lounge.Client {
	base := []lounge.Option{
		lounge.WithBaseURL(s.URL),
		lounge.WithDeviceID("test-device"),
		lounge.WithBackoff(lounge.Backoff{InitialDelay: 10 * time.Millisecond, Multiplier: 1, MaxDelay: 10 * time.Millisecond}),
		lounge.WithStreamRestartDelay(10 * time.Millisecond),
		lounge.WithSettleDelay(0),
	}
	return lounge.NewClient(Screen, "test remote", append(base, opts...)...)
}

// FailCommands makes the next commands answer with the given statuses.
func (s *Server) FailCommands(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status, statuses...)
}

// PushEvent streams one event to the open long poll.
func (s *Server) PushEvent(name, payload string) {
	s.mu.Lock()
	s.aid++
	aid := s.aid
	s.mu.Unlock()
	s.frames <- fmt.Sprintf(`[[%d,[%q,%s]]]`, aid, name, payload)
}

// EndSession closes the open long poll and answers the next one with status,
// as the server does when it drops a session (400, 401 or 410).
func (s *Server) EndSession(status int) {
	s.mu.Lock()
	s.polls = append(s.polls, status)
	s.mu.Unlock()
	s.kick <- struct{}{}
}

// Binds returns the number of session binds.
func (s *Server) Binds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binds
}

// Terminates returns the number of terminate requests.
func (s *Server) Terminates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terms
}

// TokenRefreshes returns the number of token batch requests.
func (s *Server) TokenRefreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Commands returns the wire names of received commands in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.cmds))
	for i, c := range s.cmds {
		names[i] = c.Get("req0__sc")
	}
	return names
}

// Command returns the form of the i-th received command.
func (s *Server) Command(i int) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.cmds) {
		return nil
	}
	return s.cmds[i]
}

// WaitCommands waits until at least n commands have arrived.
func (s *Server) WaitCommands(n int, timeout time.Duration) []string {
	s.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := s.Commands(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatalf("timed out waiting for %d commands, got %v", n, s.Commands())
	return nil
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.t.Errorf("parse form: %v", err)
	}

	s.mu.Lock()
	switch {
	case r.URL.Query().Get("CVER") == "1":
		s.binds++
		s.mu.Unlock()
		w.Write(lounge.EncodeFrame(`[[0,["c","SID1","",8]],[1,["S","GS1"]],[2,["loungeStatus",{"devices":"[]","queueId":"Q"}]]]`))
		return
	case r.PostForm.Get("TYPE") == "terminate":
		s.terms++
		s.mu.Unlock()
		return
	}

	s.cmds = append(s.cmds, r.PostForm)
	status := http.StatusOK
	if len(s.status) > 0 {
		status = s.status[0]
		s.status = s.status[1:]
	}
	s.mu.Unlock()
	w.WriteHeader(status)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if len(s.polls) > 0 {
		status := s.polls[0]
		s.polls = s.polls[1:]
		s.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	flusher.Flush()
	for {
		select {
		case frame := <-s.frames:
			w.Write(lounge.EncodeFrame(frame))
			flusher.Flush()
		case <-s.kick:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleTokenBatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokens++
	n := s.tokens
	s.mu.Unlock()
	fmt.Fprintf(w, `{"screens":[{"screenId":%q,"loungeToken":"token-%d","expiration":0}]}`, r.FormValue("screen_ids"), n+1)
}
