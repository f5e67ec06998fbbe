package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"schooltrack/internal/domain"
)

// memoryFeed is an in-process Feed for tests.
type memoryFeed struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

func newMemoryFeed() *memoryFeed {
	return &memoryFeed{subs: make(map[string][]chan Event)}
}

func (f *memoryFeed) Publish(ctx context.Context, channels []string, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, channel := range channels {
		for _, ch := range f.subs[channel] {
			ch <- ev
		}
	}
	return nil
}

func (f *memoryFeed) Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error) {
	ch := make(chan Event, 32)
	f.mu.Lock()
	f.subs[channel] = append(f.subs[channel], ch)
	f.mu.Unlock()

	var once sync.Once
	closer := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			remaining := f.subs[channel][:0]
			for _, sub := range f.subs[channel] {
				if sub != ch {
					remaining = append(remaining, sub)
				}
			}
			f.subs[channel] = remaining
			close(ch)
		})
	}
	return ch, closer, nil
}

type fakeTripSource struct {
	byID     map[string]*domain.Trip
	byDriver map[string]*domain.Trip
	byAdmin  map[string][]*domain.Trip
	err      error
}

func (s *fakeTripSource) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byID[id], nil
}

func (s *fakeTripSource) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byDriver[driverID], nil
}

func (s *fakeTripSource) ListActiveByAdminID(ctx context.Context, adminID string) ([]*domain.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byAdmin[adminID], nil
}

type fakeNotificationSource struct {
	byRecipient map[string][]*domain.Notification
}

func (s *fakeNotificationSource) ListByRecipient(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	return s.byRecipient[userID], nil
}

func receiveEvent(t *testing.T, c <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-c:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func newTestLayer(trips *fakeTripSource, notifications *fakeNotificationSource) (*Layer, *memoryFeed) {
	feed := newMemoryFeed()
	if trips == nil {
		trips = &fakeTripSource{}
	}
	if notifications == nil {
		notifications = &fakeNotificationSource{}
	}
	return NewLayer(feed, trips, notifications, 32, zerolog.Nop()), feed
}

func TestSubscribe_InvalidFilter(t *testing.T) {
	t.Parallel()

	layer, _ := newTestLayer(nil, nil)

	_, err := layer.Subscribe(context.Background(), Filter{Kind: "bogus", Value: "x"})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}

	_, err = layer.Subscribe(context.Background(), Filter{Kind: FilterTrip, Value: ""})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for empty value, got %v", err)
	}
}

func TestSubscribe_SnapshotThenLiveChanges(t *testing.T) {
	t.Parallel()

	trip := &domain.Trip{ID: "trip-1", DriverID: "driver-1", Status: domain.TripStatusInProgress}
	layer, _ := newTestLayer(&fakeTripSource{byDriver: map[string]*domain.Trip{"driver-1": trip}}, nil)

	sub, err := layer.Subscribe(context.Background(), ByDriver("driver-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Cancel()

	first := receiveEvent(t, sub.C)
	if first.Op != OpSnapshot {
		t.Errorf("expected snapshot first, got %s", first.Op)
	}
	if first.Trip == nil || first.Trip.ID != "trip-1" {
		t.Errorf("expected trip-1 in snapshot, got %+v", first.Trip)
	}

	updated := &domain.Trip{ID: "trip-1", DriverID: "driver-1", Status: domain.TripStatusCompleted}
	layer.TripChanged(context.Background(), updated, OpUpdated)

	second := receiveEvent(t, sub.C)
	if second.Op != OpUpdated {
		t.Errorf("expected live update, got %s", second.Op)
	}
	if second.Trip.Status != domain.TripStatusCompleted {
		t.Errorf("expected COMPLETED in update, got %s", second.Trip.Status)
	}
}

func TestSubscribe_RecipientSnapshot(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationSource{byRecipient: map[string][]*domain.Notification{
		"parent-1": {
			{ID: "n-1", RecipientUserID: "parent-1"},
			{ID: "n-2", RecipientUserID: "parent-1"},
		},
	}}
	layer, _ := newTestLayer(nil, notifications)

	sub, err := layer.Subscribe(context.Background(), ByRecipient("parent-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Cancel()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := receiveEvent(t, sub.C)
		if ev.Op != OpSnapshot || ev.Collection != CollectionNotifications {
			t.Errorf("expected notification snapshot, got %s/%s", ev.Collection, ev.Op)
		}
		seen[ev.ID] = true
	}
	if !seen["n-1"] || !seen["n-2"] {
		t.Errorf("expected both notifications in snapshot, saw %v", seen)
	}
}

func TestSubscribe_SnapshotFailureStillStreamsLive(t *testing.T) {
	t.Parallel()

	layer, _ := newTestLayer(&fakeTripSource{err: errors.New("store down")}, nil)

	sub, err := layer.Subscribe(context.Background(), ByDriver("driver-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Cancel()

	trip := &domain.Trip{ID: "trip-1", DriverID: "driver-1", Status: domain.TripStatusInProgress}
	layer.TripChanged(context.Background(), trip, OpCreated)

	ev := receiveEvent(t, sub.C)
	if ev.Op != OpCreated || ev.ID != "trip-1" {
		t.Errorf("expected live created event, got %s/%s", ev.Op, ev.ID)
	}
}

func TestTripChanged_FansOutToAllScopes(t *testing.T) {
	t.Parallel()

	trip := &domain.Trip{ID: "trip-1", DriverID: "driver-1", AdminID: "admin-1", Status: domain.TripStatusInProgress}
	layer, _ := newTestLayer(nil, nil)

	byTrip, err := layer.Subscribe(context.Background(), ByTrip("trip-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer byTrip.Cancel()

	byAdmin, err := layer.Subscribe(context.Background(), ByAdmin("admin-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer byAdmin.Cancel()

	layer.TripChanged(context.Background(), trip, OpUpdated)

	if ev := receiveEvent(t, byTrip.C); ev.ID != "trip-1" {
		t.Errorf("trip scope missed the change, got %q", ev.ID)
	}
	if ev := receiveEvent(t, byAdmin.C); ev.ID != "trip-1" {
		t.Errorf("admin scope missed the change, got %q", ev.ID)
	}
}

func TestSubscription_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	layer, _ := newTestLayer(nil, nil)

	sub, err := layer.Subscribe(context.Background(), ByDriver("driver-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub.Cancel()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("expected no events after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestTripChannels_AdminOnlyWhenOwned(t *testing.T) {
	t.Parallel()

	owned := &domain.Trip{ID: "trip-1", DriverID: "driver-1", AdminID: "admin-1"}
	if got := len(TripChannels(owned)); got != 3 {
		t.Errorf("expected 3 channels for owned trip, got %d", got)
	}

	unowned := &domain.Trip{ID: "trip-1", DriverID: "driver-1"}
	if got := len(TripChannels(unowned)); got != 2 {
		t.Errorf("expected 2 channels for unowned trip, got %d", got)
	}
}
