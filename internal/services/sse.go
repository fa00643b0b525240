package services

import (
	"sync"
	"time"
)

// MeetingEvent is pushed to a connected user when a meeting they take part in changes
type MeetingEvent struct {
	Type      string    `json:"type"` // meeting:invited, meeting:updated, ...
	MeetingID uint      `json:"meeting_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	ActorID   uint      `json:"actor_id,omitempty"`
	Status    string    `json:"status,omitempty"`
}

type sseClient struct {
	userID uint
	ch     chan MeetingEvent
}

// SSEHub fans meeting events out to the streams of their recipients
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe registers a stream for userID and returns its event channel
func (h *SSEHub) Subscribe(clientID string, userID uint) <-chan MeetingEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Buffered so a slow reader never blocks publishers
	ch := make(chan MeetingEvent, 100)
	h.clients[clientID] = &sseClient{userID: userID, ch: ch}
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish sends event to every stream opened by userID
func (h *SSEHub) Publish(userID uint, event MeetingEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.userID != userID {
			continue
		}
		// Non-blocking send - drop event if client buffer is full
		select {
		case c.ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
