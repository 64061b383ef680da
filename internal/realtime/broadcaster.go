package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joshua-takyi/eventhub/internal/metrics"
	"github.com/joshua-takyi/eventhub/internal/models"
)

// Message kinds pushed to clients.
const (
	KindEventCreated   = "eventCreated"
	KindEventUpdated   = "eventUpdated"
	KindEventDeleted   = "eventDeleted"
	KindAttendeeUpdate = "attendeeUpdate"
)

const fanoutTimeout = 2 * time.Second

// Fanout carries a message to every instance, including this one. Subscribed reports
// whether this instance is currently receiving fan-out messages.
type Fanout interface {
	Publish(ctx context.Context, channel string, msg WSMessage) error
	Subscribed() bool
}

// Broadcaster maps event mutations onto channels: lifecycle changes go to the global
// channel, attendee changes only to the event's room.
type Broadcaster struct {
	hub    *Hub
	fanout Fanout
	logger *slog.Logger
}

// NewBroadcaster delivers through fanout while it is subscribed and straight to hub
// otherwise.
func NewBroadcaster(hub *Hub, fanout Fanout, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{hub: hub, fanout: fanout, logger: logger}
}

func (b *Broadcaster) EventCreated(event *models.ResolvedEvent) {
	b.publish(GlobalChannel, KindEventCreated, event)
}

func (b *Broadcaster) EventUpdated(event *models.ResolvedEvent) {
	b.publish(GlobalChannel, KindEventUpdated, event)
}

func (b *Broadcaster) EventDeleted(eventID string) {
	b.publish(GlobalChannel, KindEventDeleted, eventID)
}

func (b *Broadcaster) AttendeesChanged(event *models.ResolvedEvent) {
	b.publish(RoomChannel(event.ID), KindAttendeeUpdate, event)
}

func (b *Broadcaster) publish(channel, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("Failed to encode broadcast", "kind", kind, "error", err)
		return
	}
	msg := WSMessage{Event: kind, Data: data}

	scope := "room"
	if channel == GlobalChannel {
		scope = "global"
	}
	metrics.BroadcastsTotal.WithLabelValues(kind, scope).Inc()

	if b.fanout == nil {
		b.hub.Deliver(channel, msg)
		return
	}
	// without our own subscription, local clients would never see the publish
	local := !b.fanout.Subscribed()
	if local {
		b.hub.Deliver(channel, msg)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
		defer cancel()
		if err := b.fanout.Publish(ctx, channel, msg); err != nil {
			metrics.FanoutErrors.Inc()
			b.logger.Warn("Fan-out publish failed", "channel", channel, "kind", kind, "error", err)
			if !local {
				b.hub.Deliver(channel, msg)
			}
		}
	}()
}
