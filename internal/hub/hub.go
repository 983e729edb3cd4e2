// Package hub fans device snapshots out to real-time subscribers over
// Server-Sent Events and WebSocket.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
	"lanwatch/internal/metrics"
)

const (
	// EventUpdate names every snapshot push
	EventUpdate = "update"

	defaultQueueSize = 16
	defaultKeepalive = 30 * time.Second
)

// SnapshotSource provides the full current device list
type SnapshotSource interface {
	ListDevices(ctx context.Context) ([]domain.Device, error)
}

// Snapshot is the payload of an update push
type Snapshot struct {
	Devices []domain.Device `json:"devices"`
}

// Message is one encoded snapshot queued for a client
type Message struct {
	Event string
	Seq   uint64
	Data  []byte
}

// Option configures a Hub
type Option func(*Hub)

// WithQueueSize bounds the number of undelivered snapshots per client
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithKeepalive sets the SSE keepalive and WebSocket ping interval
func WithKeepalive(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.keepalive = d
		}
	}
}

// WithLogger sets the hub logger
func WithLogger(log zerolog.Logger) Option {
	return func(h *Hub) {
		h.log = log
	}
}

// Hub manages subscriber connections. Subscribe and Publish are serialized
// so every client sees its connect snapshot first and later snapshots in the
// order they were taken.
type Hub struct {
	source    SnapshotSource
	queueSize int
	keepalive time.Duration
	log       zerolog.Logger

	publishMu sync.Mutex
	seq       uint64

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// New creates a hub reading snapshots from source
func New(source SnapshotSource, opts ...Option) *Hub {
	h := &Hub{
		source:    source,
		queueSize: defaultQueueSize,
		keepalive: defaultKeepalive,
		log:       zerolog.Nop(),
		clients:   make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new client whose queue already holds the current
// snapshot
func (h *Hub) Subscribe(ctx context.Context) (*Client, error) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	msg, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	c := newClient(h.queueSize)
	c.enqueue(msg)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.HubSubscribers.Inc()
	h.log.Info().Str("client", c.id).Int("total", total).Msg("Client connected")
	return c, nil
}

// Unsubscribe removes c and releases its waiters
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	metrics.HubSubscribers.Dec()
	h.log.Info().Str("client", c.id).Int("total", total).Msg("Client disconnected")
}

// Publish takes a fresh snapshot and queues it for every client
func (h *Hub) Publish(ctx context.Context) error {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	msg, err := h.snapshot(ctx)
	if err != nil {
		metrics.BroadcastCounter.WithLabelValues("error").Inc()
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.enqueue(msg) {
			metrics.HubDroppedCount.Inc()
			h.log.Debug().Str("client", c.id).Msg("Client queue full, dropped oldest snapshot")
		}
	}
	metrics.BroadcastCounter.WithLabelValues("ok").Inc()
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unsubscribe(c)
	}
}

// snapshot must be called with publishMu held
func (h *Hub) snapshot(ctx context.Context) (Message, error) {
	devices, err := h.source.ListDevices(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if devices == nil {
		devices = []domain.Device{}
	}
	domain.SortByLastSeen(devices)

	data, err := json.Marshal(Snapshot{Devices: devices})
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	h.seq++
	return Message{Event: EventUpdate, Seq: h.seq, Data: data}, nil
}

// Client is one subscriber's bounded snapshot queue
type Client struct {
	id    string
	limit int

	mu    sync.Mutex
	queue []Message

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(limit int) *Client {
	return &Client{
		id:    uuid.NewString(),
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// ID identifies the client in logs
func (c *Client) ID() string {
	return c.id
}

// Ready is signalled when messages are waiting
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when the hub drops the client
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Drain returns and clears the queued messages, oldest first
func (c *Client) Drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.queue
	c.queue = nil
	return msgs
}

// enqueue appends msg, dropping the oldest queued message when full.
// Reports whether a message was dropped.
func (c *Client) enqueue(msg Message) bool {
	c.mu.Lock()
	dropped := false
	if len(c.queue) >= c.limit {
		c.queue = c.queue[1:]
		dropped = true
	}
	c.queue = append(c.queue, msg)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return dropped
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
