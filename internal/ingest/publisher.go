package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"procodus.dev/thermal-ingest/pkg/mq"
)

// publishTimeout bounds one announcement; the pipeline never waits on the
// broker longer than this.
const publishTimeout = 2 * time.Second

// ReadingEvent is the JSON payload announced for every uploaded reading.
// Downstream consumers (alerting, dashboards) subscribe to the queue
// instead of polling the store.
type ReadingEvent struct {
	AssetName    string   `json:"asset_name"`
	Timestamp    string   `json:"timestamp"`
	CameraSerial int      `json:"camera_serial"`
	MaxTempC     float64  `json:"max_temp_c"`
	MinTempC     float64  `json:"min_temp_c"`
	AvgTempC     float64  `json:"avg_temp_c"`
	DeltaTempC   float64  `json:"delta_temp_c"`
	WeatherTemp  *float64 `json:"weather_temp,omitempty"`
}

// ReadingPublisher announces uploaded readings on a message queue.
// Announcements are fire-and-forget: a broker outage is logged and
// otherwise ignored, since the store is the source of truth.
type ReadingPublisher struct {
	logger *slog.Logger
	client mq.ClientInterface
}

// NewReadingPublisher creates a publisher over client.
func NewReadingPublisher(client mq.ClientInterface, logger *slog.Logger) (*ReadingPublisher, error) {
	if client == nil {
		return nil, errors.New("mq client cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &ReadingPublisher{logger: logger, client: client}, nil
}

// Announce implements Announcer.
func (p *ReadingPublisher) Announce(ctx context.Context, readings []*ThermalReading) {
	for _, r := range readings {
		event := ReadingEvent{
			AssetName:    r.AssetName,
			Timestamp:    r.Timestamp.Format(TimestampFormat),
			CameraSerial: r.CameraSerial,
			MaxTempC:     r.MaxTempC,
			MinTempC:     r.MinTempC,
			AvgTempC:     r.AvgTempC,
			DeltaTempC:   r.DeltaTempC,
			WeatherTemp:  r.WeatherTemp,
		}

		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to marshal reading event", "error", err)
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		if err := p.client.UnsafePush(pushCtx, payload); err != nil {
			p.logger.Warn("failed to announce reading",
				"asset", r.AssetName,
				"error", err,
			)
		}
		cancel()
	}
}

// Close shuts down the underlying client.
func (p *ReadingPublisher) Close() error {
	return p.client.Close()
}
