package lounge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	pathGetScreen          = "/api/lounge/pairing/get_screen"
	pathTokenBatch         = "/api/lounge/pairing/get_lounge_token_batch"
	pathScreenAvailability = "/api/lounge/pairing/get_screen_availability"
	pathBind               = "/api/lounge/bc/bind"

	// maxResponseBody caps non-streaming responses.
	maxResponseBody = 1 << 20
)

// api issues the short, non-streaming requests.
type api struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func newAPI(o options) *api {
	return &api{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		client:  o.httpClient,
		logger:  o.logger,
	}
}

func (a *api) url(path string, query url.Values) string {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// postForm POSTs form to path and returns the status and body. Only transport
// failures are errors; the caller classifies the status.
func (a *api) postForm(ctx context.Context, op, path string, query, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url(path, query), strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, transportError(op, err)
	}
	return resp.StatusCode, body, nil
}

func (a *api) pair(ctx context.Context, code string) (Screen, error) {
	form := url.Values{"pairing_code": {code}}
	status, body, err := a.postForm(ctx, "pair", pathGetScreen, nil, form)
	if err != nil {
		return Screen{}, err
	}
	if !isSuccess(status) {
		return Screen{}, &StatusError{Op: "pair", StatusCode: status, Err: ErrInvalidResponse}
	}

	var resp struct {
		Screen Screen `json:"screen"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Screen{}, fmt.Errorf("pair: %w: %v", ErrDecode, err)
	}
	if resp.Screen.ScreenID == "" || resp.Screen.LoungeToken == "" {
		return Screen{}, fmt.Errorf("pair: %w: screen missing id or token", ErrInvalidResponse)
	}
	return resp.Screen, nil
}

func (a *api) tokenBatch(ctx context.Context, screenID string) (Screen, error) {
	form := url.Values{"screen_ids": {screenID}}
	status, body, err := a.postForm(ctx, "refresh token", pathTokenBatch, nil, form)
	if err != nil {
		return Screen{}, err
	}
	if !isSuccess(status) {
		return Screen{}, &StatusError{Op: "refresh token", StatusCode: status, Err: ErrInvalidResponse}
	}

	var resp struct {
		Screens []Screen `json:"screens"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Screen{}, fmt.Errorf("refresh token: %w: %v", ErrDecode, err)
	}
	if len(resp.Screens) == 0 || resp.Screens[0].LoungeToken == "" {
		return Screen{}, fmt.Errorf("refresh token: %w: no screens returned", ErrInvalidResponse)
	}
	screen := resp.Screens[0]
	if screen.ScreenID == "" {
		screen.ScreenID = screenID
	}
	return screen, nil
}

func (a *api) screenAvailability(ctx context.Context, token string) (bool, error) {
	form := url.Values{"lounge_token": {token}}
	status, body, err := a.postForm(ctx, "availability", pathScreenAvailability, nil, form)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return false, &StatusError{Op: "availability", StatusCode: status, Err: ErrTokenExpired}
	case !isSuccess(status):
		return false, &StatusError{Op: "availability", StatusCode: status, Err: ErrInvalidResponse}
	}

	var resp struct {
		Screens []struct {
			Status string `json:"status"`
		} `json:"screens"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("availability: %w: %v", ErrDecode, err)
	}
	if len(resp.Screens) == 0 {
		return false, nil
	}
	return resp.Screens[0].Status == "online", nil
}

// PairWithCode exchanges the code shown on the TV for a Screen.
func PairWithCode(ctx context.Context, code string, opts ...Option) (Screen, error) {
	o := buildOptions(opts)
	return newAPI(o).pair(ctx, code)
}

// RefreshLoungeToken requests a fresh token for screenID.
func RefreshLoungeToken(ctx context.Context, screenID string, opts ...Option) (Screen, error) {
	o := buildOptions(opts)
	return newAPI(o).tokenBatch(ctx, screenID)
}

// CheckScreenAvailability reports whether the screen behind token is online.
// An expired token yields ErrTokenExpired; use Client.CheckAvailability to
// refresh automatically.
func CheckScreenAvailability(ctx context.Context, token string, opts ...Option) (bool, error) {
	o := buildOptions(opts)
	return newAPI(o).screenAvailability(ctx, token)
}
