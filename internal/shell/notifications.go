package shell

import (
	"sync"
	"time"

	"inventory_reports/internal/delivery"
	"inventory_reports/internal/shell/transport"
	"inventory_reports/platform/logger"
)

const defaultNotificationCapacity = 50

// Notifications keeps the most recent user facing messages for the display.
type Notifications struct {
	mu     sync.Mutex
	items  []transport.NotificationResponse
	nextID uint64
	cap    int
	log    *logger.Logger
}

// NewNotifications creates a buffer holding up to capacity messages.
func NewNotifications(capacity int, log *logger.Logger) *Notifications {
	if capacity <= 0 {
		capacity = defaultNotificationCapacity
	}
	return &Notifications{cap: capacity, nextID: 1, log: log}
}

// Notify implements delivery.Notifier.
func (n *Notifications) Notify(level delivery.Level, message string) {
	n.mu.Lock()
	n.items = append(n.items, transport.NotificationResponse{
		ID:      n.nextID,
		Level:   level,
		Message: message,
		At:      time.Now().UTC(),
	})
	n.nextID++
	if len(n.items) > n.cap {
		n.items = n.items[len(n.items)-n.cap:]
	}
	n.mu.Unlock()

	n.log.Info("notification", "level", string(level), "message", message)
}

// Since returns messages with an id greater than after, oldest first.
func (n *Notifications) Since(after uint64) []transport.NotificationResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]transport.NotificationResponse, 0, len(n.items))
	for _, it := range n.items {
		if it.ID > after {
			out = append(out, it)
		}
	}
	return out
}

// Clear drops every message.
func (n *Notifications) Clear() {
	n.mu.Lock()
	n.items = nil
	n.mu.Unlock()
}
