// Package notify carries notification events in real time: a Subscriber
// reads them from the fleet topic and a Hub relays them to browsers.
package notify

import (
	"context"
	"time"

	"github.com/JonMunkholm/fleetdesk/internal/fleet"
)

// Event types.
const (
	EventNotification = "NOTIFICATION"
	EventHeartbeat    = "HEARTBEAT"
)

// Event is one JSON frame of the notification topic.
type Event struct {
	Type         string              `json:"type"`
	Notification *fleet.Notification `json:"notification,omitempty"`
	Timestamp    time.Time           `json:"timestamp,omitzero"`
}

// Handler receives decoded events.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) { f(ctx, ev) }
