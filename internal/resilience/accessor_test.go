package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")
var errStoreDown = errors.New("store unreachable")

type record struct {
	Name string `json:"name"`
}

func TestRead_PrimarySuccessRefreshesSnapshot(t *testing.T) {
	t.Parallel()

	snapshots := NewMemorySnapshots()
	accessor := NewAccessor(snapshots, zerolog.Nop(), errNotFound)

	got, err := Read(context.Background(), accessor, "r:1", func(ctx context.Context) (record, error) {
		return record{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)

	// The outage path now serves the refreshed value.
	got, err = Read(context.Background(), accessor, "r:1", func(ctx context.Context) (record, error) {
		return record{}, errStoreDown
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
}

func TestRead_AuthoritativeErrorNeverFallsBack(t *testing.T) {
	t.Parallel()

	snapshots := NewMemorySnapshots()
	require.NoError(t, snapshots.Seed("r:1", record{Name: "stale"}))
	accessor := NewAccessor(snapshots, zerolog.Nop(), errNotFound)

	_, err := Read(context.Background(), accessor, "r:1", func(ctx context.Context) (record, error) {
		return record{}, errNotFound
	})
	assert.ErrorIs(t, err, errNotFound, "a real miss is an answer, not an outage")
}

func TestRead_NoSnapshotReturnsPrimaryError(t *testing.T) {
	t.Parallel()

	accessor := NewAccessor(NewMemorySnapshots(), zerolog.Nop(), errNotFound)

	_, err := Read(context.Background(), accessor, "r:unknown", func(ctx context.Context) (record, error) {
		return record{}, errStoreDown
	})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRead_SeededFallback(t *testing.T) {
	t.Parallel()

	snapshots := NewMemorySnapshots()
	require.NoError(t, snapshots.Seed("r:1", record{Name: "seeded"}))
	accessor := NewAccessor(snapshots, zerolog.Nop(), errNotFound)

	got, err := Read(context.Background(), accessor, "r:1", func(ctx context.Context) (record, error) {
		return record{}, errStoreDown
	})
	require.NoError(t, err)
	assert.Equal(t, "seeded", got.Name)
}

func TestMemorySnapshots_MissingKey(t *testing.T) {
	t.Parallel()

	snapshots := NewMemorySnapshots()

	var out record
	err := snapshots.Get(context.Background(), "absent", &out)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
