package lounge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeLounge is an in-memory lounge server.
type fakeLounge struct {
	t *testing.T

	mu               sync.Mutex
	bindStatus       int
	bindBody         func(w http.ResponseWriter)
	binds            []url.Values
	commandStatuses  []int
	commands         []url.Values
	terminates       int
	polls            []url.Values
	poll             func(w http.ResponseWriter, r *http.Request, n int)
	tokenCalls       int
	nextToken        string
	expiredTokens    map[string]bool
	availability     string
	availabilityHits int
}

func newFakeLounge(t *testing.T) (*fakeLounge, *httptest.Server) {
	f := &fakeLounge{
		t:             t,
		bindStatus:    http.StatusOK,
		nextToken:     "fresh-token",
		expiredTokens: map[string]bool{},
		availability:  "online",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/lounge/bc/bind", f.handleBindPost)
	mux.HandleFunc("GET /api/lounge/bc/bind", f.handlePoll)
	mux.HandleFunc("POST /api/lounge/pairing/get_lounge_token_batch", f.handleTokenBatch)
	mux.HandleFunc("POST /api/lounge/pairing/get_screen_availability", f.handleAvailability)
	mux.HandleFunc("POST /api/lounge/pairing/get_screen", f.handleGetScreen)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func defaultBindBody(w http.ResponseWriter) {
	w.Write(EncodeFrame(`[[0,["c","SID1","",8]],[1,["S","GS1"]],[2,["loungeStatus",{"devices":"[]","queueId":"Q"}]]]`))
}

func (f *fakeLounge) handleBindPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}
	q := r.URL.Query()

	f.mu.Lock()
	switch {
	case q.Get("CVER") == "1":
		f.binds = append(f.binds, r.PostForm)
		status, body := f.bindStatus, f.bindBody
		if f.expiredTokens[r.PostForm.Get("loungeIdToken")] {
			status = http.StatusUnauthorized
		}
		f.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		if body == nil {
			body = defaultBindBody
		}
		body(w)
		return
	case r.PostForm.Get("TYPE") == "terminate":
		f.terminates++
		f.mu.Unlock()
		return
	}

	rec := url.Values{}
	for k, v := range q {
		rec[k] = v
	}
	for k, v := range r.PostForm {
		rec[k] = v
	}
	f.commands = append(f.commands, rec)
	status := http.StatusOK
	if len(f.commandStatuses) > 0 {
		status = f.commandStatuses[0]
		f.commandStatuses = f.commandStatuses[1:]
	}
	f.mu.Unlock()
	w.WriteHeader(status)
}

func (f *fakeLounge) handlePoll(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.polls = append(f.polls, r.URL.Query())
	n := len(f.polls)
	poll := f.poll
	f.mu.Unlock()

	if poll != nil {
		poll(w, r, n)
		return
	}
	hang(w, r)
}

// hang answers 200 and holds the stream open until the client goes away.
func hang(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.(http.Flusher).Flush()
	<-r.Context().Done()
}

func (f *fakeLounge) handleTokenBatch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenCalls++
	token := f.nextToken
	f.mu.Unlock()
	fmt.Fprintf(w, `{"screens":[{"screenId":%q,"loungeToken":%q,"expiration":0}]}`, r.FormValue("screen_ids"), token)
}

func (f *fakeLounge) handleAvailability(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.availabilityHits++
	expired := f.expiredTokens[r.FormValue("lounge_token")]
	status := f.availability
	f.mu.Unlock()
	if expired {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	fmt.Fprintf(w, `{"screens":[{"loungeToken":"x","status":%q}]}`, status)
}

func (f *fakeLounge) handleGetScreen(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("pairing_code") != "123456789012" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fmt.Fprint(w, `{"screen":{"screenId":"screen-1","loungeToken":"tok-1","name":"Living Room TV"}}`)
}

func (f *fakeLounge) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.polls)
}

func (f *fakeLounge) lastPoll() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.polls) == 0 {
		return nil
	}
	return f.polls[len(f.polls)-1]
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBaseURL(srv.URL),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBackoff(Backoff{InitialDelay: 10 * time.Millisecond, Multiplier: 1}),
		WithStreamRestartDelay(10 * time.Millisecond),
		WithSettleDelay(0),
		WithDeviceID("device-1"),
	}
	c := NewClient(Screen{ScreenID: "screen-1", LoungeToken: "tok-1"}, "Test Remote", append(base, opts...)...)
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func recvType(t *testing.T, s *Subscription, want EventType) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		e, err := s.Recv(ctx)
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if e.Type() == want {
			return e
		}
	}
}

func TestConnectEstablishesSession(t *testing.T) {
	f, srv := newFakeLounge(t)
	c := newTestClient(t, srv)
	sub := c.Subscribe()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !c.Connected() {
		t.Fatal("expected connected")
	}

	ls := recvType(t, sub, EventLoungeStatus).(LoungeStatus)
	if ls.QueueID != "Q" {
		t.Errorf("expected queue Q, got %q", ls.QueueID)
	}
	recvType(t, sub, EventSessionEstablished)

	f.mu.Lock()
	bind := f.binds[0]
	f.mu.Unlock()
	for k, v := range map[string]string{
		"id":            "device-1",
		"name":          "Test Remote",
		"device":        "REMOTE_CONTROL",
		"loungeIdToken": "tok-1",
		"method":        "setPlaylist",
		"magnaKey":      "cloudPairedDevice",
		"theme":         "cl",
	} {
		if got := bind.Get(k); got != v {
			t.Errorf("bind field %s: expected %q, got %q", k, v, got)
		}
	}

	waitFor(t, "first long poll", func() bool { return f.pollCount() > 0 })
	poll := f.lastPoll()
	if poll.Get("SID") != "SID1" || poll.Get("gsessionid") != "GS1" {
		t.Errorf("expected session ids in poll, got %v", poll)
	}
	if poll.Get("AID") != "2" || poll.Get("RID") != "rpc" || poll.Get("TYPE") != "xmlhttp" {
		t.Errorf("unexpected poll query %v", poll)
	}
}

func TestConnectMarkersSplitAcrossChunks(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.bindBody = func(w http.ResponseWriter) {
		frame := EncodeFrame(`[[0,["c","SPLITSID","",8]],[1,["S","SPLITGS"]]]`)
		half := len(frame) / 2
		w.Write(frame[:half])
		w.(http.Flusher).Flush()
		time.Sleep(10 * time.Millisecond)
		w.Write(frame[half:])
	}
	c := newTestClient(t, srv)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "long poll", func() bool { return f.pollCount() > 0 })
	if got := f.lastPoll().Get("SID"); got != "SPLITSID" {
		t.Errorf("expected SPLITSID, got %q", got)
	}
}

func TestConnectMissingMarkers(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.bindBody = func(w http.ResponseWriter) {
		w.Write(EncodeFrame(`[[0,["c","SID","",8]]]`))
	}
	c := newTestClient(t, srv)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if c.Connected() {
		t.Error("expected not connected")
	}
}

func TestConnectBindFailure(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.bindStatus = http.StatusInternalServerError
	c := newTestClient(t, srv)

	if err := c.Connect(context.Background()); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Errorf("expected disconnected state, got %s", c.State())
	}
}

func TestConnectRefreshesExpiredToken(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.expiredTokens["tok-1"] = true

	var refreshed []string
	c := newTestClient(t, srv, WithTokenRefreshListener(TokenRefreshFunc(func(screenID, token string) {
		refreshed = append(refreshed, screenID+"="+token)
	})))

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Token() != "fresh-token" {
		t.Errorf("expected refreshed token, got %q", c.Token())
	}
	if len(refreshed) != 1 || refreshed[0] != "screen-1=fresh-token" {
		t.Errorf("expected one listener call, got %v", refreshed)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.binds) != 2 || f.binds[1].Get("loungeIdToken") != "fresh-token" {
		t.Errorf("expected retry with fresh token, got %v", f.binds)
	}
}

func TestCommandCountersMonotonic(t *testing.T) {
	f, srv := newFakeLounge(t)
	c := newTestClient(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		if err := c.SendCommand(context.Background(), Play{}); err != nil {
			t.Fatal(err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) != n {
		t.Fatalf("expected %d commands, got %d", n, len(f.commands))
	}
	lastRID, lastOfs := int64(1), int64(-1)
	for i, cmd := range f.commands {
		rid, _ := strconv.ParseInt(cmd.Get("RID"), 10, 64)
		ofs, _ := strconv.ParseInt(cmd.Get("ofs"), 10, 64)
		if rid <= lastRID {
			t.Errorf("command %d: RID %d not greater than %d", i, rid, lastRID)
		}
		if ofs <= lastOfs {
			t.Errorf("command %d: ofs %d not greater than %d", i, ofs, lastOfs)
		}
		lastRID, lastOfs = rid, ofs
		if cmd.Get("SID") != "SID1" || cmd.Get("gsessionid") != "GS1" || cmd.Get("req0__sc") != "play" {
			t.Errorf("command %d: unexpected fields %v", i, cmd)
		}
	}
	if f.commands[0].Get("RID") != "2" || f.commands[0].Get("ofs") != "0" {
		t.Errorf("expected first command RID 2 ofs 0, got %v", f.commands[0])
	}
}

func TestCommandStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          ErrSessionExpired,
		http.StatusUnauthorized:        ErrTokenExpired,
		http.StatusGone:                ErrConnectionClosed,
		http.StatusInternalServerError: ErrInvalidResponse,
	}
	for status, want := range cases {
		f, srv := newFakeLounge(t)
		f.commandStatuses = []int{status}
		c := newTestClient(t, srv)
		if err := c.Connect(context.Background()); err != nil {
			t.Fatal(err)
		}

		err := c.sendCommand(context.Background(), Pause{})
		if !errors.Is(err, want) {
			t.Errorf("status %d: expected %v, got %v", status, want, err)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != status {
			t.Errorf("status %d: expected StatusError, got %v", status, err)
		}
	}
}

func TestCommandRefreshOnce(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.commandStatuses = []int{http.StatusUnauthorized, http.StatusUnauthorized}

	listenerCalls := 0
	c := newTestClient(t, srv, WithTokenRefreshListener(TokenRefreshFunc(func(string, string) { listenerCalls++ })))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := c.SendCommand(context.Background(), Next{})
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCalls != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", f.tokenCalls)
	}
	if len(f.commands) != 2 {
		t.Errorf("expected exactly 2 command attempts, got %d", len(f.commands))
	}
	if listenerCalls != 1 {
		t.Errorf("expected 1 listener call, got %d", listenerCalls)
	}
	if got := f.commands[1].Get("loungeIdToken"); got != "fresh-token" {
		t.Errorf("expected retry with fresh token, got %q", got)
	}
}

func TestCommandRefreshThenSuccess(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.commandStatuses = []int{http.StatusUnauthorized}
	c := newTestClient(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.SendCommand(context.Background(), SeekTo{NewTime: 42}); err != nil {
		t.Fatalf("expected success after refresh, got %v", err)
	}
}

func TestCommandOtherErrorNoRefresh(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.commandStatuses = []int{http.StatusBadRequest}
	c := newTestClient(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.SendCommand(context.Background(), Play{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCalls != 0 {
		t.Errorf("expected no refresh, got %d", f.tokenCalls)
	}
}

func TestSendCommandNotConnected(t *testing.T) {
	_, srv := newFakeLounge(t)
	c := newTestClient(t, srv)

	if err := c.SendCommand(context.Background(), Play{}); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestLongPollStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:   ErrSessionExpired,
		http.StatusUnauthorized: ErrTokenExpired,
		http.StatusGone:         ErrConnectionClosed,
	}
	for status, want := range cases {
		f, srv := newFakeLounge(t)
		f.poll = func(w http.ResponseWriter, r *http.Request, n int) {
			w.WriteHeader(status)
		}
		c := newTestClient(t, srv)
		sub := c.Subscribe()
		if err := c.Connect(context.Background()); err != nil {
			t.Fatal(err)
		}

		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("status %d: poll loop did not stop", status)
		}
		if err := c.Err(); !errors.Is(err, want) {
			t.Errorf("status %d: expected %v, got %v", status, want, err)
		}
		if c.Connected() {
			t.Errorf("status %d: expected disconnected", status)
		}
		if c.State() != StateFailed {
			t.Errorf("status %d: expected failed state, got %s", status, c.State())
		}
		recvType(t, sub, EventScreenDisconnected)
		if n := f.pollCount(); n != 1 {
			t.Errorf("status %d: expected 1 poll, got %d", status, n)
		}
	}
}

func TestLongPollRetriesTransientFailure(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.poll = func(w http.ResponseWriter, r *http.Request, n int) {
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		hang(w, r)
	}
	c := newTestClient(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "third poll", func() bool { return f.pollCount() >= 3 })
	if !c.Connected() {
		t.Error("transient failures must not end the session")
	}
	waitFor(t, "connected state", func() bool { return c.State() == StateConnected })
}

func TestLongPollStreamsEventsAndReissues(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.poll = func(w http.ResponseWriter, r *http.Request, n int) {
		if n > 1 {
			hang(w, r)
			return
		}
		frame := EncodeFrame(`[[7,["nowPlaying",{"videoId":"v1","currentTime":"3","duration":"60","state":"1","cpn":"C"}]]]`)
		w.Write(frame[:5])
		w.(http.Flusher).Flush()
		w.Write(frame[5:])
		w.Write(EncodeFrame(`[[8,["noop"]]]`))
	}
	c := newTestClient(t, srv)
	sub := c.Subscribe()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	np := recvType(t, sub, EventNowPlaying).(NowPlaying)
	if np.VideoID != "v1" {
		t.Errorf("expected v1, got %q", np.VideoID)
	}
	s := recvType(t, sub, EventPlaybackSession).(PlaybackSession)
	if s.CurrentTime != 3 || s.Duration != 60 {
		t.Errorf("unexpected session %+v", s)
	}

	waitFor(t, "second poll", func() bool { return f.pollCount() >= 2 })
	if got := f.lastPoll().Get("AID"); got != "8" {
		t.Errorf("expected AID 8 on re-issued poll, got %q", got)
	}
	if got := f.lastPoll().Get("SID"); got != "SID1" {
		t.Errorf("expected same session on re-issued poll, got %q", got)
	}
}

func TestLongPollFramingErrorRetries(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.poll = func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 1 {
			w.Write([]byte("zz\n[]"))
			return
		}
		hang(w, r)
	}
	c := newTestClient(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "second poll", func() bool { return f.pollCount() >= 2 })
	if !c.Connected() {
		t.Error("framing errors must not end the session")
	}
}

func TestDisconnect(t *testing.T) {
	f, srv := newFakeLounge(t)
	c := newTestClient(t, srv)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "long poll", func() bool { return f.pollCount() > 0 })

	if err := c.Disconnect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Connected() || c.State() != StateDisconnected {
		t.Errorf("expected disconnected, got %s", c.State())
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop still running after disconnect")
	}
	if !errors.Is(c.Err(), ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed, got %v", c.Err())
	}

	f.mu.Lock()
	terminates := f.terminates
	f.mu.Unlock()
	if terminates != 1 {
		t.Errorf("expected 1 terminate, got %d", terminates)
	}

	if err := c.Disconnect(context.Background()); err != nil {
		t.Errorf("second disconnect should be a no-op, got %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminates != 1 {
		t.Errorf("expected no second terminate, got %d", f.terminates)
	}
}

func TestReconnectReusesDeviceID(t *testing.T) {
	f, srv := newFakeLounge(t)
	c := newTestClient(t, srv, WithDeviceID(""))
	for i := 0; i < 2; i++ {
		if err := c.Connect(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := c.SendCommand(context.Background(), Play{}); err != nil {
			t.Fatal(err)
		}
		if err := c.Disconnect(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.binds[0].Get("id") == "" || f.binds[0].Get("id") != f.binds[1].Get("id") {
		t.Errorf("expected stable device id, got %q and %q", f.binds[0].Get("id"), f.binds[1].Get("id"))
	}
	if f.commands[1].Get("RID") != "2" || f.commands[1].Get("ofs") != "0" {
		t.Errorf("expected counters reset on reconnect, got %v", f.commands[1])
	}
}

func TestCheckAvailability(t *testing.T) {
	f, srv := newFakeLounge(t)
	c := newTestClient(t, srv)

	ok, err := c.CheckAvailability(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected online, got %v (%v)", ok, err)
	}

	f.mu.Lock()
	f.availability = "offline"
	f.mu.Unlock()
	if ok, err := c.CheckAvailability(context.Background()); err != nil || ok {
		t.Errorf("expected offline, got %v (%v)", ok, err)
	}
}

func TestCheckAvailabilityRefreshes(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.expiredTokens["tok-1"] = true
	c := newTestClient(t, srv)

	ok, err := c.CheckAvailability(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected online after refresh, got %v (%v)", ok, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCalls != 1 || f.availabilityHits != 2 {
		t.Errorf("expected 1 refresh and 2 checks, got %d and %d", f.tokenCalls, f.availabilityHits)
	}
}

func TestCheckScreenAvailabilityExpired(t *testing.T) {
	f, srv := newFakeLounge(t)
	f.expiredTokens["old"] = true

	_, err := CheckScreenAvailability(context.Background(), "old", WithBaseURL(srv.URL))
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestPairWithCode(t *testing.T) {
	_, srv := newFakeLounge(t)

	screen, err := PairWithCode(context.Background(), "123456789012", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if screen.ScreenID != "screen-1" || screen.LoungeToken != "tok-1" || screen.Name != "Living Room TV" {
		t.Errorf("unexpected screen %+v", screen)
	}

	if _, err := PairWithCode(context.Background(), "000", WithBaseURL(srv.URL)); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse for bad code, got %v", err)
	}
}

func TestRefreshLoungeToken(t *testing.T) {
	_, srv := newFakeLounge(t)

	screen, err := RefreshLoungeToken(context.Background(), "screen-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if screen.ScreenID != "screen-1" || screen.LoungeToken != "fresh-token" {
		t.Errorf("unexpected screen %+v", screen)
	}
}

func TestTransportError(t *testing.T) {
	c := NewClient(Screen{ScreenID: "s", LoungeToken: "t"}, "remote",
		WithBaseURL("http://127.0.0.1:1"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := c.Connect(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}
