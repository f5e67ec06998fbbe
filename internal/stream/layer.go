package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
)

// Feed is the change-subscription primitive of the real-time store: publish
// fans an event out to a set of channels, subscribe yields the events
// published to one channel until the closer runs.
type Feed interface {
	Publish(ctx context.Context, channels []string, ev Event) error
	Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error)
}

// TripSource supplies the trip snapshot for a new subscription.
type TripSource interface {
	GetByID(ctx context.Context, id string) (*domain.Trip, error)
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error)
	ListActiveByAdminID(ctx context.Context, adminID string) ([]*domain.Trip, error)
}

// NotificationSource supplies the notification snapshot for a new
// subscription.
type NotificationSource interface {
	ListByRecipient(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
}

const snapshotNotificationLimit = 50

// Layer maintains live, push-based views of trip and notification state.
//
// A subscription delivers an initial full snapshot for its filter followed by
// incremental changes until cancelled. Changes to a single entity arrive in
// commit order because each entity is published by its mutating call after
// the write lands; there is no ordering guarantee across entities. Delivery
// is at-least-once.
//
// The layer never expires subscriptions: subscribers are expected to cancel
// on their own teardown, and a leaked subscription is a client bug, not a
// server timeout.
type Layer struct {
	feed          Feed
	trips         TripSource
	notifications NotificationSource
	buffer        int
	log           zerolog.Logger
}

// NewLayer creates a new subscription layer.
func NewLayer(feed Feed, trips TripSource, notifications NotificationSource, buffer int, log zerolog.Logger) *Layer {
	if buffer <= 0 {
		buffer = 64
	}
	return &Layer{
		feed:          feed,
		trips:         trips,
		notifications: notifications,
		buffer:        buffer,
		log:           log,
	}
}

// Subscription is one cancellable handle onto the change stream.
type Subscription struct {
	// C yields the snapshot followed by incremental changes. It is closed
	// after Cancel, or when the subscribing context ends.
	C      <-chan Event
	cancel context.CancelFunc
}

// Cancel tears the subscription down. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
}

// NewSubscription builds a subscription around an existing channel. Intended
// for fakes in tests; production subscriptions come from Layer.Subscribe.
func NewSubscription(c <-chan Event, cancel context.CancelFunc) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Subscribe opens a live view scoped by the filter. The feed subscription is
// established before the snapshot is read, so a change committed during the
// snapshot read is delivered at least once (possibly twice).
func (l *Layer) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	if !f.Valid() {
		return nil, ErrInvalidFilter
	}

	subCtx, cancel := context.WithCancel(ctx)

	live, closer, err := l.feed.Subscribe(subCtx, f.Channel())
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Event, l.buffer)

	go func() {
		defer close(out)
		defer closer()

		for _, ev := range l.snapshot(subCtx, f) {
			select {
			case out <- ev:
			case <-subCtx.Done():
				return
			}
		}

		for {
			select {
			case ev, ok := <-live:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-subCtx.Done():
					return
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{C: out, cancel: cancel}, nil
}

// snapshot reads the filter's current state. A snapshot read failure is not
// fatal to the subscription: the subscriber still gets live changes and can
// re-sync from them.
func (l *Layer) snapshot(ctx context.Context, f Filter) []Event {
	var trips []*domain.Trip
	var notifications []*domain.Notification
	var err error

	switch f.Kind {
	case FilterTrip:
		var trip *domain.Trip
		if trip, err = l.trips.GetByID(ctx, f.Value); trip != nil {
			trips = append(trips, trip)
		}
	case FilterDriver:
		var trip *domain.Trip
		if trip, err = l.trips.GetActiveByDriverID(ctx, f.Value); trip != nil {
			trips = append(trips, trip)
		}
	case FilterAdmin:
		trips, err = l.trips.ListActiveByAdminID(ctx, f.Value)
	case FilterRecipient:
		notifications, err = l.notifications.ListByRecipient(ctx, f.Value, snapshotNotificationLimit)
	}

	if err != nil {
		l.log.Warn().Err(err).Str("filter", f.Channel()).Msg("subscription snapshot read failed; streaming changes only")
	}

	version := time.Now().UnixNano()
	events := make([]Event, 0, len(trips)+len(notifications))
	for _, trip := range trips {
		events = append(events, Event{
			Collection: CollectionTrips,
			Op:         OpSnapshot,
			ID:         trip.ID,
			Version:    version,
			Trip:       trip,
		})
	}
	for _, n := range notifications {
		events = append(events, Event{
			Collection:   CollectionNotifications,
			Op:           OpSnapshot,
			ID:           n.ID,
			Version:      version,
			Notification: n,
		})
	}

	return events
}

// TripChanged publishes a committed trip mutation to every channel scoped to
// it. Publish failures are logged, not surfaced: the store write is
// authoritative and subscribers re-sync from snapshots.
func (l *Layer) TripChanged(ctx context.Context, t *domain.Trip, op Op) {
	ev := Event{
		Collection: CollectionTrips,
		Op:         op,
		ID:         t.ID,
		Version:    time.Now().UnixNano(),
		Trip:       t,
	}

	if err := l.feed.Publish(ctx, TripChannels(t), ev); err != nil {
		l.log.Warn().Err(err).Str("trip_id", t.ID).Msg("failed to publish trip change")
	}
}

// NotificationChanged publishes a committed notification mutation to its
// recipient's channel.
func (l *Layer) NotificationChanged(ctx context.Context, n *domain.Notification, op Op) {
	ev := Event{
		Collection:   CollectionNotifications,
		Op:           op,
		ID:           n.ID,
		Version:      time.Now().UnixNano(),
		Notification: n,
	}

	channels := []string{ByRecipient(n.RecipientUserID).Channel()}
	if err := l.feed.Publish(ctx, channels, ev); err != nil {
		l.log.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to publish notification change")
	}
}
