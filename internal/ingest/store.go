package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Store is the contract the pipeline has with the relational store: a read
// query for existing signatures and a bulk append of new rows. The append
// must be transactional; a failed append leaves no partial rows behind.
type Store interface {
	// ExistingSignatures returns the signatures of all rows captured at or
	// after since.
	ExistingSignatures(ctx context.Context, since time.Time) (SignatureSet, error)

	// AppendReadings writes the given readings as one bulk insert.
	AppendReadings(ctx context.Context, readings []*ThermalReading) error
}

// GormStore implements Store on top of a gorm database handle.
type GormStore struct {
	logger *slog.Logger
	db     *gorm.DB
}

// NewGormStore creates a store backed by db.
func NewGormStore(db *gorm.DB, logger *slog.Logger) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &GormStore{logger: logger, db: db}, nil
}

// ExistingSignatures queries the signature columns of all rows at or after
// since and returns them as a working set.
func (s *GormStore) ExistingSignatures(ctx context.Context, since time.Time) (SignatureSet, error) {
	var rows []ThermalReading
	err := s.db.WithContext(ctx).
		Select("asset_name", "timestamp", "camera_serial").
		Where("timestamp >= ?", since).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query existing signatures: %w", err)
	}

	set := NewSignatureSet()
	for i := range rows {
		set.Add(rows[i].Signature())
	}

	s.logger.Debug("loaded existing signatures",
		"since", since.Format(TimestampFormat),
		"count", len(set),
	)
	return set, nil
}

// AppendReadings inserts the readings as a single bulk write. gorm wraps
// multi-row creates in one transaction, so a failure leaves the store
// unchanged and the caller can retry the whole chunk on the next run.
func (s *GormStore) AppendReadings(ctx context.Context, readings []*ThermalReading) error {
	if len(readings) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&readings).Error; err != nil {
		return fmt.Errorf("failed to append readings: %w", err)
	}
	return nil
}

// DeleteByAssetPrefix removes all readings whose asset name starts with
// prefix. Used by the purge command to clean up seeded mock data.
func (s *GormStore) DeleteByAssetPrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, errors.New("asset prefix cannot be empty")
	}
	result := s.db.WithContext(ctx).
		Where("asset_name LIKE ?", prefix+"%").
		Delete(&ThermalReading{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete readings: %w", result.Error)
	}
	return result.RowsAffected, nil
}
