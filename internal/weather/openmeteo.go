// Package weather provides the best-effort ambient temperature lookup
// attached to each reading. A failed lookup never fails the row.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultEndpoint is the Open-Meteo forecast API.
	DefaultEndpoint = "https://api.open-meteo.com/v1/forecast"

	requestTimeout = 3 * time.Second
	userAgent      = "thermal-ingest"
)

// Provider abstracts the hourly ambient-temperature source.
type Provider interface {
	// TemperatureAt returns the ambient temperature for the hour containing t.
	TemperatureAt(ctx context.Context, t time.Time) (float64, error)
}

// OpenMeteo fetches hourly temperatures for a fixed site from Open-Meteo.
type OpenMeteo struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string
	lat      float64
	lon      float64
}

// Config holds the configuration for an OpenMeteo provider.
type Config struct {
	Logger *slog.Logger
	// Latitude and Longitude locate the monitored site.
	Latitude  float64
	Longitude float64
	// Endpoint overrides the API base URL, for testing.
	Endpoint string
}

// NewOpenMeteo creates a provider for the configured site.
func NewOpenMeteo(cfg *Config) (*OpenMeteo, error) {
	if cfg == nil {
		return nil, errors.New("weather config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &OpenMeteo{
		logger:   cfg.Logger,
		client:   &http.Client{Timeout: requestTimeout},
		endpoint: endpoint,
		lat:      cfg.Latitude,
		lon:      cfg.Longitude,
	}, nil
}

type forecastResponse struct {
	Hourly struct {
		Temperature2m []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// TemperatureAt fetches the hourly series for t's date and returns the
// value at t's hour. No interpolation is applied: 11:43 reads the 11:00
// sample.
func (p *OpenMeteo) TemperatureAt(ctx context.Context, t time.Time) (float64, error) {
	date := t.Format("2006-01-02")

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", p.lat))
	params.Set("longitude", fmt.Sprintf("%.4f", p.lon))
	params.Set("hourly", "temperature_2m")
	params.Set("start_date", date)
	params.Set("end_date", date)
	params.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("weather request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("weather fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("weather fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("weather read: %w", err)
	}

	var forecast forecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return 0, fmt.Errorf("weather parse: %w", err)
	}

	hour := t.Hour()
	temps := forecast.Hourly.Temperature2m
	if hour < 0 || hour >= len(temps) {
		return 0, fmt.Errorf("weather: no sample for hour %d", hour)
	}
	return temps[hour], nil
}
