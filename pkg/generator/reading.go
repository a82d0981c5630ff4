// Package generator produces synthetic thermal readings for local
// development and load testing.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"procodus.dev/thermal-ingest/internal/ingest"
)

// ThermalCamera describes a fake camera emitting readings.
type ThermalCamera struct {
	AssetName string
	Serial    int    `fake:"{number:100000,999999}"`
	Site      string `fake:"{city}"`
	Model     string `fake:"{appversion}"`
}

// ThermalDataGenerator produces correlated readings for one camera.
type ThermalDataGenerator struct {
	camera       *ThermalCamera
	baselineTemp float64
	noise        float64
}

// NewThermalCamera creates a fake camera. The asset name carries the
// given prefix so seeded rows can be purged later.
func NewThermalCamera(prefix string) *ThermalCamera {
	var camera ThermalCamera
	err := gofakeit.Struct(&camera)
	if err != nil {
		return nil
	}
	camera.AssetName = fmt.Sprintf("%s%06d", prefix, gofakeit.Number(0, 999999))
	return &camera
}

// NewThermalGenerator creates a generator for camera.
func NewThermalGenerator(camera *ThermalCamera) *ThermalDataGenerator {
	return &ThermalDataGenerator{
		camera:       camera,
		baselineTemp: 25.0 + rand.Float64()*30, // 25-55°C equipment surface
		noise:        rand.Float64() * 3,
	}
}

// GenerateSurfaceTemp returns a plausible hottest-point temperature with
// a daily cycle and occasional fault spikes.
func (g *ThermalDataGenerator) GenerateSurfaceTemp(t time.Time) float64 {
	hour := float64(t.Hour())

	// Daily cycle (peak around 2-3 PM)
	dailyCycle := 6 * math.Sin((hour-6)*math.Pi/12)

	// Random noise
	noise := (rand.Float64() - 0.5) * g.noise

	// Occasional overheating faults (5% chance)
	anomaly := 0.0
	if rand.Float64() < 0.05 {
		anomaly = rand.Float64() * 40 // Up to +40°C hotspot
	}

	return g.baselineTemp + dailyCycle + noise + anomaly
}

// GenerateReading produces one synthetic reading for time t.
func (g *ThermalDataGenerator) GenerateReading(t time.Time) *ingest.ThermalReading {
	maxTemp := g.GenerateSurfaceTemp(t)
	spread := 5 + rand.Float64()*15
	minTemp := maxTemp - spread
	avgTemp := minTemp + spread*(0.3+rand.Float64()*0.4)
	centerTemp := avgTemp + (rand.Float64()-0.5)*spread*0.5
	ambient := 15.0 + rand.Float64()*20

	return &ingest.ThermalReading{
		Timestamp:    t,
		Filename:     fmt.Sprintf("FLIR%04d.jpg", gofakeit.Number(0, 9999)),
		AssetName:    g.camera.AssetName,
		CameraSerial: g.camera.Serial,
		MaxTempC:     thermalRound(maxTemp),
		MinTempC:     thermalRound(minTemp),
		AvgTempC:     thermalRound(avgTemp),
		CenterTempC:  thermalRound(centerTemp),
		DeltaTempC:   thermalRound(maxTemp - minTemp),
		Emissivity:   0.95,
		Distance:     thermalRound(0.5 + rand.Float64()*4.5),
		WeatherTemp:  &ambient,
	}
}

func thermalRound(v float64) float64 {
	return math.Round(v*10) / 10
}
