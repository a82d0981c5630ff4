// Package ingest implements the deduplicating thermal-image ingestion
// pipeline: it scans a watched directory for camera snapshots, extracts
// per-image temperature statistics and metadata, filters out captures the
// store already knows, uploads new rows in chunks, and archives processed
// files only after a confirmed write.
package ingest

import (
	"time"
)

// ThermalReading represents one ingested thermal capture stored in the
// database. The (AssetName, Timestamp, CameraSerial) triple is the
// deduplication signature; existing rows double as the signature set.
type ThermalReading struct {
	// Timestamp is the capture's literal wall clock. The column is naive
	// on purpose: the driver drops the zone on write and relabels rows
	// UTC on read, leaving the wall clock intact for signature matching.
	Timestamp    time.Time `gorm:"type:timestamp;index:idx_asset_timestamp;index:idx_timestamp;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	Filename     string    `gorm:"size:255;not null"`
	AssetName    string    `gorm:"size:255;index:idx_asset_timestamp;not null"`
	CameraSerial int       `gorm:"not null"`
	MaxTempC     float64   `gorm:"not null"`
	MinTempC     float64   `gorm:"not null"`
	AvgTempC     float64   `gorm:"not null"`
	CenterTempC  float64   `gorm:"not null"`
	DeltaTempC   float64   `gorm:"not null"`
	Emissivity   float64   `gorm:"not null"`
	Distance     float64   `gorm:"not null"`
	WeatherTemp  *float64
	ImageBase64  string `gorm:"type:text"`
	ID           uint   `gorm:"primaryKey"`
}

// TableName specifies the table name for the ThermalReading model.
func (ThermalReading) TableName() string {
	return "thermal_readings"
}

// Signature returns the deduplication signature of this reading.
func (r *ThermalReading) Signature() Signature {
	return NewSignature(r.AssetName, r.Timestamp, r.CameraSerial)
}
