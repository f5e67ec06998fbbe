package domain

import "time"

// Weather condition codes, normalised from the provider's free-form
// condition strings.
const (
	WeatherClear        = "clear"
	WeatherClouds       = "clouds"
	WeatherRain         = "rain"
	WeatherSnow         = "snow"
	WeatherThunderstorm = "thunderstorm"
	WeatherMist         = "mist"
)

// WeatherSnapshot is the weather observed at a trip's current location.
// It is embedded on the trip and replaced wholesale on refresh.
type WeatherSnapshot struct {
	Temperature float64   `json:"temperature"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	WindSpeed   float64   `json:"wind_speed"`
	Humidity    float64   `json:"humidity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Severe reports whether the conditions warrant alerting the owning admin.
func (w WeatherSnapshot) Severe() bool {
	return w.Condition == WeatherThunderstorm || w.Condition == WeatherSnow
}
