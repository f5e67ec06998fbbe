// Package resilience provides the read-through accessor the core uses for
// reads that must degrade gracefully when the store is unreachable: a
// successful primary read refreshes a last-known snapshot, and a failed one
// is served from that snapshot instead of propagating the outage.
package resilience

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNoSnapshot is returned by snapshot stores when no last-known value
// exists for a key.
var ErrNoSnapshot = errors.New("no snapshot for key")

// SnapshotStore holds last-known values keyed by an accessor-chosen key.
// Implementations must round-trip values through JSON.
type SnapshotStore interface {
	Put(ctx context.Context, key string, v any) error
	Get(ctx context.Context, key string, out any) error
}

// Accessor wires a snapshot store to a set of authoritative errors: a
// primary read failing with one of those errors (e.g. "not found") is a real
// answer, not an outage, and never falls back.
type Accessor struct {
	snapshots     SnapshotStore
	authoritative []error
	log           zerolog.Logger
}

// NewAccessor creates an accessor over the given snapshot store.
func NewAccessor(snapshots SnapshotStore, log zerolog.Logger, authoritative ...error) *Accessor {
	return &Accessor{snapshots: snapshots, authoritative: authoritative, log: log}
}

// Read runs the primary read and falls back to the last-known snapshot for
// key when the primary fails with a non-authoritative error. On primary
// success the snapshot is refreshed best-effort.
func Read[T any](ctx context.Context, a *Accessor, key string, primary func(context.Context) (T, error)) (T, error) {
	v, err := primary(ctx)
	if err == nil {
		if putErr := a.snapshots.Put(ctx, key, v); putErr != nil {
			a.log.Debug().Err(putErr).Str("key", key).Msg("snapshot refresh failed")
		}
		return v, nil
	}

	for _, sentinel := range a.authoritative {
		if errors.Is(err, sentinel) {
			return v, err
		}
	}

	var cached T
	if getErr := a.snapshots.Get(ctx, key, &cached); getErr != nil {
		// No snapshot to serve; the primary failure stands.
		return v, err
	}

	a.log.Warn().Err(err).Str("key", key).Msg("store unreachable; serving last-known snapshot")
	return cached, nil
}
