package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// HandlerOptions configures the WebSocket endpoint.
type HandlerOptions struct {
	// AllowedOrigins are host patterns passed to websocket.AcceptOptions.
	// Empty means same-origin only; "*" allows any origin.
	AllowedOrigins []string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadLimit      int64
}

// Handler upgrades HTTP requests to WebSocket connections bound to a Hub.
type Handler struct {
	Hub  *Hub
	Opts HandlerOptions
}

// NewHandler returns a Handler with defaults filled in.
func NewHandler(h *Hub, opts HandlerOptions) *Handler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 4 << 10
	}
	return &Handler{Hub: h, Opts: opts}
}

// ServeHTTP runs one connection: a read goroutine dispatches client events
// while this goroutine writes queued frames and keepalive pings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.Opts.AllowedOrigins}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		// Accept already wrote the HTTP error response.
		return
	}
	conn.SetReadLimit(h.Opts.ReadLimit)

	client, err := h.Hub.Register()
	if err != nil {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.Hub.Unregister(client)
	client.Log.Debug().Str("remote", r.RemoteAddr).Msg("realtime connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		readErr <- h.readLoop(ctx, conn, client)
	}()

	ping := time.NewTicker(h.Opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case err := <-readErr:
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				client.Log.Debug().Err(err).Msg("realtime read ended")
			}
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-client.Done():
			_ = conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case frame := <-client.Send():
			if err := h.write(ctx, conn, frame); err != nil {
				client.Log.Debug().Err(err).Msg("realtime write failed")
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, h.Opts.WriteTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "ping_timeout")
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	wctx, cancel := context.WithTimeout(ctx, h.Opts.WriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, frame)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, c *Client) error {
	for {
		var msg Inbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		h.dispatch(ctx, c, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *Client, msg Inbound) {
	switch strings.TrimSpace(msg.Event) {
	case EventJoinPoll:
		pollID, err := pollIDFromData(msg.Data)
		if err != nil {
			h.Hub.Reply(c, EventJoinRejected, JoinRejected{Code: CodeValidation, Reason: "Invalid poll id"})
			return
		}
		if err := h.Hub.Join(ctx, c, pollID); err != nil {
			code, reason := rejection(err)
			if code == CodeInternal {
				c.Log.Error().Err(err).Str("poll_id", pollID).Msg("join lookup failed")
			}
			h.Hub.Reply(c, EventJoinRejected, JoinRejected{PollID: pollID, Code: code, Reason: reason})
			return
		}
		h.Hub.Reply(c, EventJoined, Joined{PollID: pollID})

	case EventLeavePoll:
		pollID, err := pollIDFromData(msg.Data)
		if err != nil {
			h.Hub.Reply(c, EventError, ErrorData{Code: CodeValidation, Reason: "Invalid poll id"})
			return
		}
		h.Hub.Leave(c, pollID)
		h.Hub.Reply(c, EventLeft, Joined{PollID: pollID})

	default:
		h.Hub.Reply(c, EventError, ErrorData{Code: CodeValidation, Reason: "Unknown event"})
	}
}

// rejection maps a Join error to its wire code and client-facing reason.
func rejection(err error) (code, reason string) {
	switch {
	case errors.Is(err, ErrInvalidPollID):
		return CodeValidation, "Invalid poll id"
	case errors.Is(err, ErrPollNotFound):
		return CodeNotFound, "Poll not found"
	case errors.Is(err, ErrJoinQuotaExceeded):
		return CodeQuotaExceeded, "Too many rooms joined"
	default:
		return CodeInternal, "Unable to join poll"
	}
}
