// Package websocket delivers live events to members over long-lived
// websocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"askingwho-backend/application/ports"
)

// MaxConnectionsPerUser bounds the live channels a single member may hold
const MaxConnectionsPerUser = 10

// Envelope is the frame exchanged in both directions
type Envelope struct {
	Event  string      `json:"event"`
	UserID string      `json:"userId,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Recorder receives live channel metrics
type Recorder interface {
	LivePush(event string, err error)
	SetLiveConnections(n int)
}

// Hub tracks the joined connections of every member and fans events out to them
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Client]struct{} // userID -> joined clients
	total       int
	recorder    Recorder
	logger      *zap.Logger
}

var _ ports.LivePublisher = (*Hub)(nil)

// NewHub creates a new hub. recorder may be nil.
func NewHub(recorder Recorder, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*Client]struct{}),
		recorder:    recorder,
		logger:      logger,
	}
}

// Publish pushes an event to every joined connection of userID. Members
// without a connection are skipped silently.
func (h *Hub) Publish(ctx context.Context, userID, event string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.connections[userID]))
	for c := range h.connections[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		h.logger.Debug("No live connections for user",
			zap.String("userID", userID),
			zap.String("event", event),
		)
		return nil
	}

	var dropped int
	for _, c := range clients {
		if !c.enqueue(data) {
			dropped++
			h.logger.Warn("Closing slow client",
				zap.String("userID", userID),
				zap.String("connectionID", c.id),
			)
			go c.close()
		}
	}

	var pushErr error
	if dropped > 0 {
		pushErr = fmt.Errorf("%d of %d connections dropped the %s event", dropped, len(clients), event)
	}
	if h.recorder != nil {
		h.recorder.LivePush(event, pushErr)
	}
	return pushErr
}

// join registers c on userID's channel
func (h *Hub) join(c *Client, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[userID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.connections[userID] = set
	}
	if _, ok := set[c]; ok {
		return nil
	}
	if len(set) >= MaxConnectionsPerUser {
		return fmt.Errorf("connection limit of %d reached", MaxConnectionsPerUser)
	}
	set[c] = struct{}{}
	h.total++
	h.record()

	h.logger.Info("Client joined",
		zap.String("userID", userID),
		zap.String("connectionID", c.id),
		zap.Int("userConnections", len(set)),
	)
	return nil
}

// leave removes c from userID's channel
func (h *Hub) leave(c *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.connections[userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.connections, userID)
	}
	h.total--
	h.record()

	h.logger.Info("Client left",
		zap.String("userID", userID),
		zap.String("connectionID", c.id),
		zap.Int("remainingConnections", len(set)),
	)
}

func (h *Hub) record() {
	if h.recorder != nil {
		h.recorder.SetLiveConnections(h.total)
	}
}

// ConnectionCount returns the joined connections of userID
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.connections {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
	h.logger.Info("Hub closed", zap.Int("connections", len(all)))
}
