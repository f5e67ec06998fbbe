// Package weather attaches throttled weather observations to active trips.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"schooltrack/internal/config"
	"schooltrack/internal/domain"
)

// Client fetches road weather observations from the XWeather roadweather
// endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a weather client from configuration.
func NewClient(cfg config.WeatherConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type observationResponse struct {
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
	WindSpeed   float64 `json:"windSpeed"`
	Humidity    float64 `json:"humidity"`
}

// Current returns the weather observed at the given point. The snapshot's
// UpdatedAt is left zero; the caller stamps it when attaching to a trip.
func (c *Client) Current(ctx context.Context, pt domain.GeoPoint) (domain.WeatherSnapshot, error) {
	url := fmt.Sprintf("%s/%.2f,%.2f", c.baseURL, pt.Latitude, pt.Longitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("building weather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.WeatherSnapshot{}, fmt.Errorf("weather provider returned status %d", resp.StatusCode)
	}

	var obs observationResponse
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("decoding weather response: %w", err)
	}

	condition := NormalizeCondition(obs.Conditions)
	description := obs.Conditions
	if description == "" {
		description = "Clear sky"
	}

	return domain.WeatherSnapshot{
		Temperature: obs.Temperature,
		Condition:   condition,
		Description: description,
		Icon:        conditionIcon(condition),
		WindSpeed:   obs.WindSpeed,
		Humidity:    obs.Humidity,
	}, nil
}

// NormalizeCondition folds the provider's free-form condition string onto the
// fixed condition codes carried on trips.
func NormalizeCondition(condition string) string {
	condition = strings.ToLower(condition)

	switch {
	case strings.Contains(condition, "rain") || strings.Contains(condition, "shower"):
		return domain.WeatherRain
	case strings.Contains(condition, "snow") || strings.Contains(condition, "flurries"):
		return domain.WeatherSnow
	case strings.Contains(condition, "cloud"):
		return domain.WeatherClouds
	case strings.Contains(condition, "thunder") || strings.Contains(condition, "storm"):
		return domain.WeatherThunderstorm
	case strings.Contains(condition, "fog") || strings.Contains(condition, "mist") || strings.Contains(condition, "haze"):
		return domain.WeatherMist
	default:
		return domain.WeatherClear
	}
}

func conditionIcon(condition string) string {
	switch condition {
	case domain.WeatherClouds:
		return "03d"
	case domain.WeatherRain:
		return "09d"
	case domain.WeatherThunderstorm:
		return "11d"
	case domain.WeatherSnow:
		return "13d"
	case domain.WeatherMist:
		return "50d"
	default:
		return "01d"
	}
}
