// Package realtime fans poll updates out to connected clients.
//
// A Hub keeps an explicit connection registry and a topic per poll. Clients
// are registered when their connection opens and unregistered when it closes;
// unregistering drops every topic membership. Publishing never blocks: each
// subscriber has a bounded send buffer and an update that does not fit is
// dropped for that subscriber only. Delivery is at-most-once with no replay,
// and every poll_update carries the full tally so a later update supersedes
// any lost one.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-live-polls/internal/domain"
)

// Defaults for NewHub.
const (
	DefaultMaxTopicsPerConn = 50
	DefaultSendBuffer       = 16
	MaxPollIDLen            = 64
)

// Join errors.
var (
	ErrInvalidPollID     = errors.New("invalid poll id")
	ErrPollNotFound      = errors.New("poll not found")
	ErrJoinQuotaExceeded = errors.New("too many rooms joined")
	ErrClientClosed      = errors.New("client closed")
)

// PollLookup reports whether a poll exists.
type PollLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Client is one registered connection.
type Client struct {
	ID   string
	Log  zerolog.Logger
	send chan []byte
	done chan struct{}
}

// Send returns the client's outbound frame queue.
func (c *Client) Send() <-chan []byte { return c.send }

// Done is closed when the client is unregistered or the hub shuts down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Options tunes a Hub.
type Options struct {
	MaxTopicsPerConn int
	SendBuffer       int
	Log              zerolog.Logger
}

// Hub is the process-wide topic registry. It is safe for concurrent use.
type Hub struct {
	lookup    PollLookup
	maxTopics int
	sendBuf   int
	log       zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	topics  map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	closed  bool
}

// NewHub returns a Hub that validates joins against lookup.
func NewHub(lookup PollLookup, opts Options) *Hub {
	if opts.MaxTopicsPerConn <= 0 {
		opts.MaxTopicsPerConn = DefaultMaxTopicsPerConn
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	return &Hub{
		lookup:    lookup,
		maxTopics: opts.MaxTopicsPerConn,
		sendBuf:   opts.SendBuffer,
		log:       opts.Log,
		clients:   make(map[string]*Client),
		topics:    make(map[string]map[*Client]struct{}),
		joined:    make(map[*Client]map[string]struct{}),
	}
}

// Register creates and registers a new client. It fails once the hub is
// closed.
func (h *Hub) Register() (*Client, error) {
	id := uuid.NewString()
	c := &Client{
		ID:   id,
		Log:  h.log.With().Str("conn_id", id).Logger(),
		send: make(chan []byte, h.sendBuf),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClientClosed
	}
	h.clients[id] = c
	h.joined[c] = make(map[string]struct{})
	connections.Inc()
	return c, nil
}

// Unregister removes c and all of its topic memberships. It is idempotent.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	for pollID := range h.joined[c] {
		h.leaveLocked(c, pollID)
	}
	delete(h.joined, c)
	delete(h.clients, c.ID)
	close(c.done)
	connections.Dec()
}

// Join subscribes c to pollID's topic. The poll must exist and the client
// must be under its topic quota; re-joining a topic it is already in is
// accepted without consuming quota.
func (h *Hub) Join(ctx context.Context, c *Client, pollID string) error {
	if pollID == "" || len(pollID) > MaxPollIDLen {
		joins.WithLabelValues("invalid").Inc()
		return ErrInvalidPollID
	}

	h.mu.RLock()
	_, already := h.joined[c][pollID]
	h.mu.RUnlock()
	if already {
		joins.WithLabelValues("accepted").Inc()
		return nil
	}

	ok, err := h.lookup.Exists(ctx, pollID)
	if err != nil {
		joins.WithLabelValues("error").Inc()
		return err
	}
	if !ok {
		joins.WithLabelValues("not_found").Inc()
		return ErrPollNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, registered := h.joined[c]
	if !registered {
		return ErrClientClosed
	}
	if _, ok := rooms[pollID]; ok {
		joins.WithLabelValues("accepted").Inc()
		return nil
	}
	if len(rooms) >= h.maxTopics {
		joins.WithLabelValues("quota").Inc()
		return ErrJoinQuotaExceeded
	}
	rooms[pollID] = struct{}{}
	subs := h.topics[pollID]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.topics[pollID] = subs
	}
	subs[c] = struct{}{}
	joins.WithLabelValues("accepted").Inc()
	return nil
}

// Leave unsubscribes c from pollID. Leaving a topic the client is not in is
// a no-op.
func (h *Hub) Leave(c *Client, pollID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, pollID)
}

func (h *Hub) leaveLocked(c *Client, pollID string) {
	delete(h.joined[c], pollID)
	if subs, ok := h.topics[pollID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, pollID)
		}
	}
}

// Publish encodes the event once and enqueues it to every subscriber of
// pollID without blocking. It returns how many subscribers received it.
func (h *Hub) Publish(pollID, event string, data any) int {
	frame, err := json.Marshal(Outbound{Event: event, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode realtime event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.topics[pollID] {
		if c.enqueue(frame) {
			n++
		}
	}
	return n
}

// PublishPollUpdate pushes a poll_update to the poll's topic.
func (h *Hub) PublishPollUpdate(u domain.PollUpdate) {
	h.Publish(u.ID, EventPollUpdate, u)
}

// Reply sends an event to a single client without blocking.
func (h *Hub) Reply(c *Client, event string, data any) bool {
	frame, err := json.Marshal(Outbound{Event: event, Data: data})
	if err != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.ID]; !ok {
		return false
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		published.Inc()
		return true
	default:
		dropped.Inc()
		c.Log.Debug().Msg("send buffer full, update dropped")
		return false
	}
}

// Subscribers returns the number of clients in pollID's topic.
func (h *Hub) Subscribers(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[pollID])
}

// Topics returns the number of topics c is in.
func (h *Hub) Topics(c *Client) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.joined[c])
}

// Connections returns the number of registered clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unregisters every client and refuses new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		h.removeLocked(c)
	}
}
