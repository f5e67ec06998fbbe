package service

import (
	"context"
	"time"

	"schooltrack/internal/domain"
	"schooltrack/internal/stream"
)

// sampler is one trip's location sampling loop handle.
type sampler struct {
	tripID string
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *TripService) startSampler(trip *domain.Trip, route *domain.Route) {
	ctx, cancel := context.WithCancel(context.Background())
	smp := &sampler{tripID: trip.ID, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.samplers[trip.ID] = smp
	s.mu.Unlock()

	go s.runSampler(ctx, smp, trip, route)
}

// stopSampler cancels a trip's sampling loop and waits for it to drain.
// No-op when the trip has no running loop.
func (s *TripService) stopSampler(tripID string) {
	s.mu.Lock()
	smp, ok := s.samplers[tripID]
	delete(s.samplers, tripID)
	s.mu.Unlock()

	if !ok {
		return
	}
	smp.cancel()
	<-smp.done
}

// runSampler drives one trip's sampling: every interval it reads the device's
// latest fix, writes it to the trip, pushes the change, and kicks a throttled
// weather refresh. Consecutive failures raise a staleness event and
// eventually the stall callback. The loop also watches its own trip's change
// stream and exits as soon as the trip reaches a terminal state, covering
// terminal writes that did not come through this process.
func (s *TripService) runSampler(ctx context.Context, smp *sampler, trip *domain.Trip, route *domain.Route) {
	defer close(smp.done)
	defer func() {
		s.mu.Lock()
		if s.samplers[smp.tripID] == smp {
			delete(s.samplers, smp.tripID)
		}
		s.mu.Unlock()
	}()

	if sub, err := s.streams.Subscribe(ctx, stream.ByTrip(trip.ID)); err != nil {
		s.log.Warn().Err(err).Str("trip_id", trip.ID).Msg("sampler could not watch trip stream")
	} else {
		defer sub.Cancel()
		go func() {
			for ev := range sub.C {
				if ev.Trip != nil && ev.Trip.Status.Terminal() {
					smp.cancel()
					return
				}
			}
		}()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var (
		failures    int
		stalled     bool
		approached  bool
		lastSuccess = s.now()
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ok := s.sampleOnce(ctx, trip, route, &failures, &approached)
		if ok {
			stalled = false
			lastSuccess = s.now()
			continue
		}
		if failures == 0 {
			// The trip reached a terminal state; the loop is done.
			return
		}

		if failures == s.cfg.StaleThreshold {
			s.events.Emit(ctx, Event{Type: EventLocationStale, Trip: trip})
		}
		if !stalled && s.onStall != nil && s.now().Sub(lastSuccess) >= s.cfg.StallAfter {
			stalled = true
			go s.onStall(trip.ID)
		}
	}
}

// sampleOnce runs a single tick. Returns true on a successful sample; on
// failure *failures is incremented, except when the trip turned terminal, in
// which case *failures is reset to signal the loop to exit.
func (s *TripService) sampleOnce(ctx context.Context, trip *domain.Trip, route *domain.Route, failures *int, approached *bool) bool {
	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	pt, _, err := s.positions.Latest(tickCtx, trip.DriverID)
	if err != nil {
		*failures++
		s.log.Warn().Err(err).
			Str("trip_id", trip.ID).
			Int("consecutive_failures", *failures).
			Msg("position sample failed")
		return false
	}

	now := s.now()
	applied, err := s.trips.UpdateLocation(tickCtx, trip.ID, pt, now)
	if err != nil {
		*failures++
		s.log.Warn().Err(err).Str("trip_id", trip.ID).Msg("location write failed")
		return false
	}
	if !applied {
		*failures = 0
		return false
	}

	*failures = 0

	// Re-read so subscribers see current boarding sets alongside the new
	// location, not the copy this loop started with. The fallback works on
	// a copy; the trip the caller of StartTrip holds stays untouched.
	current, err := s.trips.GetByID(tickCtx, trip.ID)
	if err != nil {
		stale := *trip
		stale.CurrentLocation = &pt
		stale.LocationUpdatedAt = now
		current = &stale
	}

	s.publisher.TripChanged(tickCtx, current, stream.OpUpdated)

	go s.weather.MaybeRefresh(context.WithoutCancel(ctx), trip.ID, pt)

	if !*approached && s.nearWaitingStop(current, route, pt) {
		*approached = true
		s.events.Emit(tickCtx, Event{Type: EventBusApproaching, Trip: current})
	}

	return true
}

// nearWaitingStop reports whether the bus is within the approach radius of a
// stop whose student has not boarded yet.
func (s *TripService) nearWaitingStop(trip *domain.Trip, route *domain.Route, pt domain.GeoPoint) bool {
	moved := make(map[string]bool, len(trip.StudentsOnboard)+len(trip.StudentsExited))
	for _, id := range trip.StudentsOnboard {
		moved[id] = true
	}
	for _, id := range trip.StudentsExited {
		moved[id] = true
	}

	for _, stop := range route.Stops {
		if moved[stop.StudentID] {
			continue
		}
		if domain.DistanceKm(pt, stop.Location) <= s.cfg.ApproachRadiusKm {
			return true
		}
	}
	return false
}
