package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"schooltrack/internal/domain"
)

const (
	positionKeyPrefix = "position:driver:"
	positionGeoKey    = "drivers:positions"

	// A fix older than this is treated as absent: the sampler should fail
	// the tick rather than keep re-writing a dead device's last report.
	positionTTL = 5 * time.Minute
)

// ErrNoFix is returned when a driver has no recent position report.
var ErrNoFix = errors.New("no recent position fix")

// PositionStore holds the latest GPS fix reported by each driver's device.
// Driver devices push fixes through the API; the per-trip sampler reads the
// latest one on each tick.
type PositionStore struct {
	client *redis.Client
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(client *redis.Client) *PositionStore {
	return &PositionStore{client: client}
}

type deviceFix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ReportedAt time.Time `json:"reported_at"`
}

// Report stores a driver's latest fix and refreshes the fleet geo index.
func (s *PositionStore) Report(ctx context.Context, driverID string, pt domain.GeoPoint, at time.Time) error {
	data, err := json.Marshal(deviceFix{
		Latitude:   pt.Latitude,
		Longitude:  pt.Longitude,
		ReportedAt: at,
	})
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, positionKeyPrefix+driverID, data, positionTTL)
	pipe.GeoAdd(ctx, positionGeoKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: pt.Longitude,
		Latitude:  pt.Latitude,
	})

	_, err = pipe.Exec(ctx)
	return err
}

// Latest returns the driver's most recent fix. Returns ErrNoFix when the
// device has not reported within the fix TTL.
func (s *PositionStore) Latest(ctx context.Context, driverID string) (domain.GeoPoint, time.Time, error) {
	data, err := s.client.Get(ctx, positionKeyPrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.GeoPoint{}, time.Time{}, ErrNoFix
		}
		return domain.GeoPoint{}, time.Time{}, err
	}

	var fix deviceFix
	if err := json.Unmarshal(data, &fix); err != nil {
		return domain.GeoPoint{}, time.Time{}, err
	}

	return domain.GeoPoint{Latitude: fix.Latitude, Longitude: fix.Longitude}, fix.ReportedAt, nil
}

// Remove drops a driver from the fleet geo index.
func (s *PositionStore) Remove(ctx context.Context, driverID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, positionKeyPrefix+driverID)
	pipe.ZRem(ctx, positionGeoKey, driverID)

	_, err := pipe.Exec(ctx)
	return err
}
