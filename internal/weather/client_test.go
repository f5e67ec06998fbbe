package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schooltrack/internal/config"
	"schooltrack/internal/domain"
)

func TestClient_Current(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temperature": 4.2, "conditions": "Light Snow", "windSpeed": 18.5, "humidity": 91}`))
	}))
	defer server.Close()

	client := NewClient(config.WeatherConfig{BaseURL: server.URL})

	snapshot, err := client.Current(context.Background(), domain.GeoPoint{Latitude: 40.7128, Longitude: -74.006})
	require.NoError(t, err)

	assert.Equal(t, "/40.71,-74.01", requestedPath)
	assert.Equal(t, 4.2, snapshot.Temperature)
	assert.Equal(t, domain.WeatherSnow, snapshot.Condition)
	assert.Equal(t, "Light Snow", snapshot.Description)
	assert.Equal(t, "13d", snapshot.Icon)
	assert.Equal(t, 18.5, snapshot.WindSpeed)
	assert.Equal(t, 91.0, snapshot.Humidity)
	assert.True(t, snapshot.UpdatedAt.IsZero(), "the caller stamps the snapshot")
}

func TestClient_CurrentProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.WeatherConfig{BaseURL: server.URL})

	_, err := client.Current(context.Background(), domain.GeoPoint{Latitude: 40, Longitude: -74})
	assert.Error(t, err)
}

func TestNormalizeCondition(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Light Rain", domain.WeatherRain},
		{"Scattered Showers", domain.WeatherRain},
		// "shower" wins over "snow"; mixed phrases classify as rain.
		{"Heavy Snow Showers", domain.WeatherRain},
		{"Snow Flurries", domain.WeatherSnow},
		{"Partly Cloudy", domain.WeatherClouds},
		{"Thunderstorms", domain.WeatherThunderstorm},
		{"Patchy Fog", domain.WeatherMist},
		{"Haze", domain.WeatherMist},
		{"Sunny", domain.WeatherClear},
		{"Fair", domain.WeatherClear},
		{"", domain.WeatherClear},
		{"Something Unrecognised", domain.WeatherClear},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeCondition(tc.raw), "condition %q", tc.raw)
	}
}
