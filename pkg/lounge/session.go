package lounge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Bind request constants.
const (
	appID         = "youtube-desktop"
	mdxVersion    = "3"
	protoVersion  = "8"
	capabilities  = "que,dsdtr,atp"
	deviceContext = "user_agent=dunno&window_width_points=&window_height_points=&os_name=android&ms="
	deviceType    = "REMOTE_CONTROL"

	markerSID        = `["c","`
	markerGSessionID = `["S","`

	disconnectReason = "MDX_SESSION_DISCONNECT_REASON_DISCONNECTED_BY_USER"
)

// sessionState is guarded by Client.mu.
type sessionState struct {
	sid        string
	gsessionID string
	aid        int64
	hasAID     bool
	// rid is the last request id used; the bind request is RID 1.
	rid    int64
	offset int64
}

func newSessionState() sessionState {
	return sessionState{rid: 1}
}

func (s *sessionState) nextRID() int64 {
	s.rid++
	return s.rid
}

func (s *sessionState) nextOffset() int64 {
	o := s.offset
	s.offset++
	return o
}

// pollRun is one long-poll goroutine.
type pollRun struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Connect binds a new session and starts the long-poll loop. An expired
// token is refreshed once.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "lounge.connect")
	_, err := withRefresh(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.connect(ctx)
	})
	endSpan(span, err)
	return err
}

func (c *Client) connect(ctx context.Context) error {
	c.markDisconnected(StateConnecting)
	c.stopRun()

	c.mu.Lock()
	c.session = newSessionState()
	c.state = StateConnecting
	token := c.token
	c.mu.Unlock()
	c.processor.Reset()

	query := url.Values{
		"RID":                 {"1"},
		"VER":                 {protoVersion},
		"CVER":                {"1"},
		"auth_failure_option": {"send_error"},
	}
	form := url.Values{
		"app":           {appID},
		"mdx-version":   {mdxVersion},
		"name":          {c.deviceName},
		"id":            {c.deviceID},
		"device":        {deviceType},
		"capabilities":  {capabilities},
		"method":        {"setPlaylist"},
		"magnaKey":      {"cloudPairedDevice"},
		"ui":            {"false"},
		"deviceContext": {deviceContext},
		"os_name":       {"android"},
		"theme":         {"cl"},
		"loungeIdToken": {token},
	}

	status, body, err := c.api.postForm(ctx, "bind", pathBind, query, form)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}
	if !isSuccess(status) {
		c.setState(StateDisconnected)
		if status == http.StatusUnauthorized {
			return &StatusError{Op: "bind", StatusCode: status, Err: ErrTokenExpired}
		}
		return &StatusError{Op: "bind", StatusCode: status, Err: ErrInvalidResponse}
	}

	sid, gsessionID, err := extractSessionIDs(string(body))
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &pollRun{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.session.sid = sid
	c.session.gsessionID = gsessionID
	c.connected = true
	c.state = StateConnected
	c.run = run
	c.mu.Unlock()
	c.metrics.setConnected(1)
	c.logger.Info("lounge session established", "device_id", c.deviceID)

	c.ingest(body)
	c.events.publish(SessionEstablished{})

	go c.pollLoop(runCtx, run)
	return nil
}

// extractSessionIDs finds the first SID and GSESSIONID markers anywhere in a
// bind response body.
func extractSessionIDs(body string) (sid, gsessionID string, err error) {
	sid, ok := extractMarker(body, markerSID)
	if !ok {
		return "", "", fmt.Errorf("bind: %w: no session id in response", ErrInvalidResponse)
	}
	gsessionID, ok = extractMarker(body, markerGSessionID)
	if !ok {
		return "", "", fmt.Errorf("bind: %w: no gsessionid in response", ErrInvalidResponse)
	}
	return sid, gsessionID, nil
}

func extractMarker(body, marker string) (string, bool) {
	i := strings.Index(body, marker)
	if i < 0 {
		return "", false
	}
	rest := body[i+len(marker):]
	j := strings.IndexByte(rest, '"')
	if j <= 0 {
		return "", false
	}
	return rest[:j], true
}

// ingest processes the frames of the bind response body.
func (c *Client) ingest(body []byte) {
	dec := NewFrameDecoder()
	dec.Write(body)
	for {
		frame, ok, err := dec.Next()
		if err != nil {
			c.logger.Warn("ignoring malformed bind response frames", "error", err)
			return
		}
		if !ok {
			return
		}
		c.handleFrame(frame)
	}
}

// handleFrame runs one frame through the processor and publishes its events.
// Only the goroutine that owns the processor may call it.
func (c *Client) handleFrame(frame string) {
	c.metrics.frame()
	res, err := c.processor.Process(frame)
	if err != nil {
		c.logger.Warn("dropping undecodable frame", "error", err)
		return
	}
	if res.HasAID {
		c.mu.Lock()
		c.session.aid = res.AID
		c.session.hasAID = true
		c.mu.Unlock()
	}
	for _, e := range res.Events {
		c.events.publish(e)
	}
}

func (c *Client) pollLoop(ctx context.Context, run *pollRun) {
	defer close(run.done)

	var terminal error
	attempt := 0
	for {
		if !c.Connected() || ctx.Err() != nil {
			terminal = ErrConnectionClosed
			break
		}

		streamed, err := c.pollOnce(ctx)
		if streamed {
			attempt = 0
		}
		if ctx.Err() != nil {
			terminal = ErrConnectionClosed
			break
		}

		delay := c.opts.streamRestartDelay
		if err == nil {
			c.metrics.longPoll("ok")
		} else {
			c.metrics.longPoll(resultLabel(err))
			if sessionFatal(err) {
				c.logger.Warn("lounge session ended by server", "error", err)
				if c.markDisconnected(StateFailed) {
					c.events.publish(ScreenDisconnected{})
				}
				terminal = err
				break
			}
			attempt++
			delay = c.opts.backoff.Delay(attempt)
			c.logger.Warn("long poll failed, retrying", "attempt", attempt, "delay", delay, "error", err)
			c.setStateIfConnected(StateWaitingToReconnect)
		}

		if sleep(ctx, delay) != nil {
			terminal = ErrConnectionClosed
			break
		}
		if err != nil {
			c.setStateIfConnected(StateConnecting)
		}
	}

	c.mu.Lock()
	run.err = terminal
	c.mu.Unlock()
	c.logger.Debug("long poll loop stopped", "reason", terminal)
}

// pollOnce issues one long-poll request and streams its frames. streamed is
// true once the server answered 2xx.
func (c *Client) pollOnce(ctx context.Context) (streamed bool, err error) {
	c.mu.Lock()
	query := url.Values{
		"name":          {c.deviceName},
		"loungeIdToken": {c.token},
		"SID":           {c.session.sid},
		"gsessionid":    {c.session.gsessionID},
		"device":        {deviceType},
		"app":           {appID},
		"VER":           {protoVersion},
		"v":             {"2"},
		"RID":           {"rpc"},
		"CI":            {"0"},
		"TYPE":          {"xmlhttp"},
	}
	if c.session.hasAID {
		query.Set("AID", strconv.FormatInt(c.session.aid, 10))
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api.url(pathBind, query), nil)
	if err != nil {
		return false, fmt.Errorf("long poll: build request: %w", err)
	}
	resp, err := c.opts.longPollClient.Do(req)
	if err != nil {
		return false, transportError("long poll", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return false, classifyStatus("long poll", resp.StatusCode)
	}
	c.setStateIfConnected(StateConnected)

	dec := NewFrameDecoder()
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				frame, ok, ferr := dec.Next()
				if ferr != nil {
					return true, fmt.Errorf("long poll: %w", ferr)
				}
				if !ok {
					break
				}
				c.handleFrame(frame)
			}
		}
		if errors.Is(rerr, io.EOF) {
			if n := dec.Buffered(); n > 0 {
				c.logger.Debug("long poll stream ended mid-frame", "buffered", n)
			}
			return true, nil
		}
		if rerr != nil {
			return true, transportError("long poll read", rerr)
		}
	}
}

// sessionFatal reports whether a long-poll error ends the session.
func sessionFatal(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrConnectionClosed)
}

// SendCommand sends cmd to the screen. An expired token is refreshed once.
func (c *Client) SendCommand(ctx context.Context, cmd Command) error {
	ctx, span := c.startSpan(ctx, "lounge.command", attribute.String("lounge.command", cmd.Name()))
	_, err := withRefresh(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.sendCommand(ctx, cmd)
	})
	endSpan(span, err)
	return err
}

func (c *Client) sendCommand(ctx context.Context, cmd Command) (err error) {
	defer func() { c.metrics.command(cmd.Name(), err) }()

	if err := c.cmdSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.cmdSem.Release(1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return fmt.Errorf("command %s: %w", cmd.Name(), ErrConnectionClosed)
	}
	if c.session.sid == "" || c.session.gsessionID == "" {
		c.mu.Unlock()
		return fmt.Errorf("command %s: %w", cmd.Name(), ErrSessionExpired)
	}
	rid := c.session.nextRID()
	offset := c.session.nextOffset()
	query := c.commandQueryLocked(rid)
	c.mu.Unlock()

	c.logger.Debug("sending command", "command", cmd.Name(), "rid", rid, "ofs", offset)
	status, _, err := c.api.postForm(ctx, "command "+cmd.Name(), pathBind, query, encodeCommand(cmd, offset))
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return classifyStatus("command "+cmd.Name(), status)
	}
	return nil
}

// commandQueryLocked must be called with c.mu held.
func (c *Client) commandQueryLocked(rid int64) url.Values {
	return url.Values{
		"name":          {c.deviceName},
		"loungeIdToken": {c.token},
		"SID":           {c.session.sid},
		"gsessionid":    {c.session.gsessionID},
		"VER":           {protoVersion},
		"v":             {"2"},
		"RID":           {strconv.FormatInt(rid, 10)},
	}
}

// Disconnect terminates the session. It is a no-op when not connected.
// The terminate request is best effort.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	rid := c.session.nextRID()
	query := c.commandQueryLocked(rid)
	c.mu.Unlock()

	ctx, span := c.startSpan(ctx, "lounge.disconnect")
	defer span.End()

	form := url.Values{
		"ui":                     {""},
		"TYPE":                   {"terminate"},
		"clientDisconnectReason": {disconnectReason},
	}
	status, _, err := c.api.postForm(ctx, "terminate", pathBind, query, form)
	switch {
	case err != nil:
		c.logger.Warn("terminate request failed", "error", err)
	case !isSuccess(status):
		c.logger.Warn("terminate request rejected", "status", status)
	}

	_ = sleep(ctx, c.opts.settleDelay)
	c.markDisconnected(StateStopping)
	c.stopRun()
	c.setState(StateDisconnected)
	c.logger.Info("lounge session disconnected")
	return nil
}

// markDisconnected clears the connected flag and sets state. It reports
// whether the client was connected.
func (c *Client) markDisconnected(state ConnState) bool {
	c.mu.Lock()
	was := c.connected
	c.connected = false
	c.state = state
	c.mu.Unlock()
	if was {
		c.metrics.setConnected(-1)
	}
	return was
}

func (c *Client) setStateIfConnected(s ConnState) {
	c.mu.Lock()
	if c.connected {
		c.state = s
	}
	c.mu.Unlock()
}

// stopRun cancels the current poll loop and waits for it to exit.
func (c *Client) stopRun() {
	c.mu.Lock()
	run := c.run
	c.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	<-run.done
}
