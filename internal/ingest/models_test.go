package ingest_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermal-ingest/internal/ingest"
)

var _ = Describe("Models", func() {
	Describe("ThermalReading", func() {
		Context("table name", func() {
			It("should return thermal_readings", func() {
				reading := ingest.ThermalReading{}
				Expect(reading.TableName()).To(Equal("thermal_readings"))
			})
		})

		Context("signature", func() {
			It("should derive the signature from asset, timestamp, and serial", func() {
				reading := ingest.ThermalReading{
					AssetName:    "PUMP01",
					Timestamp:    time.Date(2026, 1, 21, 9, 44, 47, 0, time.Local),
					CameraSerial: 70502,
				}
				sig := reading.Signature()
				Expect(sig.Asset).To(Equal("PUMP01"))
				Expect(sig.Timestamp).To(Equal("2026-01-21 09:44:47"))
				Expect(sig.Serial).To(Equal(70502))
			})
		})

		Context("struct initialization", func() {
			It("should initialize with zero values", func() {
				reading := ingest.ThermalReading{}
				Expect(reading.AssetName).To(BeEmpty())
				Expect(reading.MaxTempC).To(BeZero())
				Expect(reading.WeatherTemp).To(BeNil())
				Expect(reading.ImageBase64).To(BeEmpty())
				Expect(reading.ID).To(BeZero())
			})
		})
	})
})
