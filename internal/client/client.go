// Package client is a small Go client for the live polls HTTP API and its
// realtime channel. It backs the pollctl command.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tbourn/go-live-polls/internal/domain"
	"github.com/tbourn/go-live-polls/internal/http/handlers"
	"github.com/tbourn/go-live-polls/internal/http/middleware"
	"github.com/tbourn/go-live-polls/internal/realtime"
	"github.com/tbourn/go-live-polls/internal/services"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// ErrJoinRejected is returned by Watch when the server refuses the join.
var ErrJoinRejected = errors.New("join rejected")

// Client talks to one server.
type Client struct {
	BaseURL string // e.g. http://localhost:8080
	APIBase string // e.g. /api
	HTTP    *http.Client
}

// New returns a Client with a 15s HTTP timeout.
func New(baseURL, apiBase string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIBase: "/" + strings.Trim(apiBase, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) apiURL(p string) string {
	if c.APIBase == "/" {
		return c.BaseURL + p
	}
	return c.BaseURL + c.APIBase + p
}

// CreatePoll creates a poll. A non-empty idemKey makes retries safe; replayed
// reports whether the server returned an earlier result for the key.
func (c *Client) CreatePoll(ctx context.Context, in handlers.CreatePollRequest, idemKey string) (id string, replayed bool, err error) {
	hdr := http.Header{}
	if idemKey != "" {
		hdr.Set(middleware.HeaderIdempotencyKey, idemKey)
	}
	var out handlers.CreatePollResponse
	resp, err := c.do(ctx, http.MethodPost, c.apiURL("/polls"), hdr, in, &out)
	if err != nil {
		return "", false, err
	}
	return out.ID, resp.Header.Get("Idempotency-Replayed") == "true", nil
}

// GetPoll returns a poll with its current tally.
func (c *Client) GetPoll(ctx context.Context, id string) (*services.PollView, error) {
	var out services.PollView
	if _, err := c.do(ctx, http.MethodGet, c.apiURL("/polls/"+url.PathEscape(id)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Vote casts one vote and returns the resulting tally.
func (c *Client) Vote(ctx context.Context, pollID string, optionID int64, voterToken string) ([]domain.OptionTally, error) {
	var out handlers.VoteResponse
	body := handlers.VoteRequest{OptionID: optionID, VoterHash: voterToken}
	if _, err := c.do(ctx, http.MethodPost, c.apiURL("/polls/"+url.PathEscape(pollID)+"/vote"), nil, body, &out); err != nil {
		return nil, err
	}
	return out.Options, nil
}

// DeletePoll removes a poll and its votes.
func (c *Client) DeletePoll(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.apiURL("/polls/"+url.PathEscape(id)), nil, nil, nil)
	return err
}

// ListByCreator returns the dashboard rows for email.
func (c *Client) ListByCreator(ctx context.Context, email string) ([]domain.PollSummary, error) {
	var out []domain.PollSummary
	u := c.apiURL("/polls/user") + "?" + url.Values{"email": {email}}.Encode()
	if _, err := c.do(ctx, http.MethodGet, u, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, u string, hdr http.Header, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range hdr {
		req.Header[k] = vs
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var env handlers.ErrorResponse
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if json.Unmarshal(raw, &env) == nil && env.Code != "" {
			apiErr.Code, apiErr.Message, apiErr.RequestID = env.Code, env.Message, env.RequestID
		}
		return resp, apiErr
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

// WatchURL returns the WebSocket endpoint for the server.
func (c *Client) WatchURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Watch joins pollID on the realtime channel and calls fn for every tally
// update until ctx is done, fn returns an error, or the connection drops.
func (c *Client) Watch(ctx context.Context, pollID string, fn func(domain.PollUpdate) error) error {
	conn, _, err := websocket.Dial(ctx, c.WatchURL(), nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	join := map[string]any{"event": realtime.EventJoinPoll, "data": pollID}
	if err := wsjson.Write(ctx, conn, join); err != nil {
		return err
	}

	for {
		var msg realtime.Inbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return err
		}
		switch msg.Event {
		case realtime.EventJoinRejected:
			var rej realtime.JoinRejected
			_ = json.Unmarshal(msg.Data, &rej)
			return fmt.Errorf("%w: %s (%s)", ErrJoinRejected, rej.Reason, rej.Code)
		case realtime.EventPollUpdate:
			var u domain.PollUpdate
			if err := json.Unmarshal(msg.Data, &u); err != nil {
				return fmt.Errorf("decode poll_update: %w", err)
			}
			if u.ID != pollID {
				continue
			}
			if err := fn(u); err != nil {
				return err
			}
		}
	}
}
