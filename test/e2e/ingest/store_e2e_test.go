// Package ingest_test provides end-to-end tests for the relational store
// against a real PostgreSQL instance.
package ingest_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermal-ingest/internal/ingest"
)

var _ = Describe("Store E2E", func() {
	var ctx context.Context

	newReading := func(asset string, at time.Time, serial int) *ingest.ThermalReading {
		return &ingest.ThermalReading{
			Timestamp:    at,
			Filename:     "FLIR0001.jpg",
			AssetName:    asset,
			CameraSerial: serial,
			MaxTempC:     80.0,
			MinTempC:     10.0,
			AvgTempC:     45.0,
			CenterTempC:  51.1,
			DeltaTempC:   70.0,
			Emissivity:   0.95,
			Distance:     1.0,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()

		// Each spec starts from an empty table
		err := db.Exec("TRUNCATE TABLE thermal_readings RESTART IDENTITY").Error
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("AppendReadings", func() {
		It("should insert a batch of readings in one write", func() {
			at := time.Date(2026, 1, 21, 9, 44, 47, 0, time.UTC)
			readings := []*ingest.ThermalReading{
				newReading("PUMP01", at, 70502),
				newReading("PUMP02", at.Add(time.Minute), 70502),
				newReading("PUMP03", at.Add(2*time.Minute), 70502),
			}

			err := store.AppendReadings(ctx, readings)
			Expect(err).NotTo(HaveOccurred())

			var count int64
			Expect(db.Model(&ingest.ThermalReading{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(3)))
		})

		It("should do nothing for an empty batch", func() {
			err := store.AppendReadings(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			var count int64
			Expect(db.Model(&ingest.ThermalReading{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("should round-trip all row fields", func() {
			at := time.Date(2026, 1, 21, 9, 44, 47, 0, time.UTC)
			weather := 14.5
			reading := newReading("PUMP01", at, 70502)
			reading.WeatherTemp = &weather
			reading.ImageBase64 = "data:image/jpeg;base64,/9j/AAA="

			Expect(store.AppendReadings(ctx, []*ingest.ThermalReading{reading})).To(Succeed())

			var stored ingest.ThermalReading
			Expect(db.First(&stored).Error).NotTo(HaveOccurred())
			Expect(stored.AssetName).To(Equal("PUMP01"))
			Expect(stored.CameraSerial).To(Equal(70502))
			Expect(stored.Timestamp.UTC()).To(Equal(at))
			Expect(stored.MaxTempC).To(Equal(80.0))
			Expect(stored.CenterTempC).To(Equal(51.1))
			Expect(stored.WeatherTemp).To(HaveValue(Equal(14.5)))
			Expect(stored.ImageBase64).To(Equal("data:image/jpeg;base64,/9j/AAA="))
		})
	})

	Describe("ExistingSignatures", func() {
		It("should return signatures of rows at or after the cutoff", func() {
			cutoff := time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC)
			readings := []*ingest.ThermalReading{
				newReading("PUMP01", cutoff.Add(-time.Hour), 70502),   // before cutoff
				newReading("PUMP02", cutoff, 70502),                   // at cutoff
				newReading("PUMP03", cutoff.Add(9*time.Hour), 70502),  // after cutoff
			}
			Expect(store.AppendReadings(ctx, readings)).To(Succeed())

			set, err := store.ExistingSignatures(ctx, cutoff)
			Expect(err).NotTo(HaveOccurred())
			Expect(set).To(HaveLen(2))
			Expect(set.Contains(ingest.NewSignature("PUMP02", cutoff, 70502))).To(BeTrue())
			Expect(set.Contains(ingest.NewSignature("PUMP03", cutoff.Add(9*time.Hour), 70502))).To(BeTrue())
			Expect(set.Contains(ingest.NewSignature("PUMP01", cutoff.Add(-time.Hour), 70502))).To(BeFalse())
		})

		It("should return an empty set for an empty table", func() {
			set, err := store.ExistingSignatures(ctx, time.Now().Add(-24*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(set).To(BeEmpty())
		})

		It("should match a freshly appended reading by signature", func() {
			at := time.Date(2026, 1, 21, 9, 44, 47, 0, time.UTC)
			reading := newReading("PUMP01", at, 70502)

			Expect(store.AppendReadings(ctx, []*ingest.ThermalReading{reading})).To(Succeed())

			set, err := store.ExistingSignatures(ctx, at.Truncate(24*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Contains(reading.Signature())).To(BeTrue())
		})

		It("should match a reading captured in a non-UTC zone after the round-trip", func() {
			// The naive timestamp column drops the zone on write and
			// relabels rows UTC on read; the wall clock must survive.
			zone := time.FixedZone("UTC+2", 2*60*60)
			at := time.Date(2026, 1, 21, 9, 44, 47, 0, zone)

			Expect(store.AppendReadings(ctx, []*ingest.ThermalReading{
				newReading("PUMP01", at, 70502),
			})).To(Succeed())

			set, err := store.ExistingSignatures(ctx, at.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Contains(ingest.NewSignature("PUMP01", at, 70502))).To(BeTrue())
		})

		It("should distinguish readings by camera serial", func() {
			at := time.Date(2026, 1, 21, 9, 44, 47, 0, time.UTC)
			Expect(store.AppendReadings(ctx, []*ingest.ThermalReading{
				newReading("PUMP01", at, 70502),
			})).To(Succeed())

			set, err := store.ExistingSignatures(ctx, at.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Contains(ingest.NewSignature("PUMP01", at, 70502))).To(BeTrue())
			Expect(set.Contains(ingest.NewSignature("PUMP01", at, 99999))).To(BeFalse())
		})
	})

	Describe("DeleteByAssetPrefix", func() {
		It("should delete only rows matching the prefix", func() {
			at := time.Date(2026, 1, 21, 9, 0, 0, 0, time.UTC)
			Expect(store.AppendReadings(ctx, []*ingest.ThermalReading{
				newReading("MOCK000001", at, 1),
				newReading("MOCK000002", at.Add(time.Minute), 2),
				newReading("PUMP01", at.Add(2*time.Minute), 70502),
			})).To(Succeed())

			deleted, err := store.DeleteByAssetPrefix(ctx, "MOCK")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(2)))

			var remaining []ingest.ThermalReading
			Expect(db.Find(&remaining).Error).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(1))
			Expect(remaining[0].AssetName).To(Equal("PUMP01"))
		})

		It("should report zero deletions when nothing matches", func() {
			deleted, err := store.DeleteByAssetPrefix(ctx, "MOCK")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())
		})

		It("should reject an empty prefix", func() {
			_, err := store.DeleteByAssetPrefix(ctx, "")
			Expect(err).To(HaveOccurred())
		})
	})
})
