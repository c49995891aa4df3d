// Package events fans download updates out to websocket clients. A single
// Hub owns every connection; with Redis configured the payload additionally
// crosses node boundaries through a pub/sub channel, and without it Publish
// degrades to a local broadcast so single-node deployments lose nothing.
// There is no replay: a client sees only what happens while it is connected.
package events

import (
	"context"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/vibarr/vibarr/metrics"
	"github.com/vibarr/vibarr/models"
)

// Channel is the Redis pub/sub channel carrying download events.
const Channel = "download_updates"

type Hub struct {
	logger *log.Logger
	rdb    *redis.Client // nil on single-node deployments

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates a hub. rdb may be nil.
func NewHub(rdb *redis.Client, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "events", ReportTimestamp: true})
	}
	return &Hub{
		logger: logger,
		rdb:    rdb,
		conns:  make(map[*websocket.Conn]bool),
	}
}

// Register adds a connection to the broadcast set.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = true
	count := len(h.conns)
	h.mu.Unlock()
	metrics.WebsocketClients.Set(float64(count))
	h.logger.Debug("websocket client connected", "clients", count)
}

// Unregister drops a connection without closing it; the caller owns the
// close.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	count := len(h.conns)
	h.mu.Unlock()
	metrics.WebsocketClients.Set(float64(count))
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast writes payload to every connection. Connections that fail the
// write are closed and pruned in the same critical section, so a dead client
// is gone before the next broadcast.
func (h *Hub) Broadcast(payload string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []*websocket.Conn
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		conn.Close()
		delete(h.conns, conn)
	}
	if len(dead) > 0 {
		h.logger.Debug("pruned dead websocket clients", "count", len(dead))
	}
	metrics.WebsocketClients.Set(float64(len(h.conns)))
}

// Publish sends payload to every node's clients. Without Redis, or when the
// publish fails, the local clients still get it.
func (h *Hub) Publish(ctx context.Context, payload string) {
	metrics.EventsPublished.Inc()
	if h.rdb == nil {
		h.Broadcast(payload)
		return
	}
	if err := h.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		h.logger.Error("redis publish failed, broadcasting locally", "err", err)
		h.Broadcast(payload)
	}
}

// PublishEvent encodes and publishes one download event.
func (h *Hub) PublishEvent(ctx context.Context, event models.DownloadEvent) {
	h.Publish(ctx, event.Encode())
}

// Run subscribes to the Redis channel and re-broadcasts everything received
// until ctx is done. It returns immediately when no Redis is configured.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	sub := h.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	h.logger.Info("subscribed to download events", "channel", Channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast(msg.Payload)
		}
	}
}
