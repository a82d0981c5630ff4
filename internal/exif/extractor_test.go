package exif_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermal-ingest/internal/exif"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakeTool writes an executable shell script that emits the given stdout
// and exits with the given code, standing in for exiftool.
func fakeTool(dir, stdout string, exitCode int) string {
	path := filepath.Join(dir, "exiftool")
	script := fmt.Sprintf("#!/bin/sh\ncat <<'PAYLOAD'\n%s\nPAYLOAD\nexit %d\n", stdout, exitCode)
	Expect(os.WriteFile(path, []byte(script), 0o755)).To(Succeed())
	return path
}

var _ = Describe("Extractor", func() {
	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("fake tool scripts require a POSIX shell")
		}
	})

	Describe("New", func() {
		It("should require a config and a logger", func() {
			_, err := exif.New(nil)
			Expect(err).To(HaveOccurred())

			_, err = exif.New(&exif.Config{})
			Expect(err).To(HaveOccurred())
		})

		It("should default the binary name", func() {
			extractor, err := exif.New(&exif.Config{Logger: testLogger()})
			Expect(err).NotTo(HaveOccurred())
			Expect(extractor).NotTo(BeNil())
		})
	})

	Describe("Available", func() {
		It("should fail for a missing binary", func() {
			extractor, err := exif.New(&exif.Config{
				Logger: testLogger(),
				Binary: "/nonexistent/exiftool",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(extractor.Available()).To(HaveOccurred())
		})

		It("should succeed for an existing binary path", func() {
			dir := GinkgoT().TempDir()
			bin := fakeTool(dir, "[]", 0)

			extractor, err := exif.New(&exif.Config{Logger: testLogger(), Binary: bin})
			Expect(err).NotTo(HaveOccurred())
			Expect(extractor.Available()).To(Succeed())
		})
	})

	Describe("Scan", func() {
		var (
			dir  string
			root string
		)

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			root = GinkgoT().TempDir()
		})

		newExtractor := func(bin string) *exif.Extractor {
			extractor, err := exif.New(&exif.Config{Logger: testLogger(), Binary: bin})
			Expect(err).NotTo(HaveOccurred())
			return extractor
		}

		It("should key records by absolute path", func() {
			payload := fmt.Sprintf(`[{
				"SourceFile": "%s/FLIR0001.jpg",
				"DateTimeOriginal": "2026:01:21 09:44:47",
				"ImageDescription": "Pump-01",
				"CameraSerialNumber": 70502,
				"Emissivity": 0.9,
				"ObjectDistance": 2.0
			}]`, root)
			bin := fakeTool(dir, payload, 0)

			meta, err := newExtractor(bin).Scan(context.Background(), root, filepath.Join(root, "archive"))
			Expect(err).NotTo(HaveOccurred())

			key := filepath.Join(root, "FLIR0001.jpg")
			Expect(meta).To(HaveKey(key))
			Expect(meta[key].Description).To(Equal("Pump-01"))
			Expect(meta[key].SerialNumber()).To(Equal(70502))
			Expect(meta[key].EmissivityOrDefault()).To(Equal(0.9))
			Expect(meta[key].DistanceOrDefault()).To(Equal(2.0))
		})

		It("should exclude records under the archive directory", func() {
			payload := fmt.Sprintf(`[
				{"SourceFile": "%s/FLIR0001.jpg", "DateTimeOriginal": "2026:01:21 09:44:47"},
				{"SourceFile": "%s/archive/FLIR0002.jpg", "DateTimeOriginal": "2026:01:21 09:44:47"}
			]`, root, root)
			bin := fakeTool(dir, payload, 0)

			meta, err := newExtractor(bin).Scan(context.Background(), root, filepath.Join(root, "archive"))
			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(HaveLen(1))
			Expect(meta).To(HaveKey(filepath.Join(root, "FLIR0001.jpg")))
		})

		It("should tolerate a non-zero exit when output is present", func() {
			payload := fmt.Sprintf(`[{"SourceFile": "%s/FLIR0001.jpg"}]`, root)
			bin := fakeTool(dir, payload, 1)

			meta, err := newExtractor(bin).Scan(context.Background(), root, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(HaveLen(1))
		})

		It("should return an empty result for empty output", func() {
			bin := fakeTool(dir, "", 0)

			meta, err := newExtractor(bin).Scan(context.Background(), root, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(BeEmpty())
		})

		It("should return an empty result for unparsable output", func() {
			bin := fakeTool(dir, "not json at all", 0)

			meta, err := newExtractor(bin).Scan(context.Background(), root, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(BeEmpty())
		})

		It("should return an empty result when the tool fails silently", func() {
			bin := fakeTool(dir, "", 2)

			meta, err := newExtractor(bin).Scan(context.Background(), root, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(meta).To(BeEmpty())
		})
	})
})

var _ = Describe("Metadata", func() {
	Describe("FlexInt", func() {
		DescribeTable("should decode serials of any JSON shape",
			func(raw string, expected int) {
				var f exif.FlexInt
				Expect(json.Unmarshal([]byte(raw), &f)).To(Succeed())
				Expect(int(f)).To(Equal(expected))
			},
			Entry("number", "70502", 70502),
			Entry("numeric string", `"70502"`, 70502),
			Entry("float", "70502.0", 70502),
			Entry("null", "null", 0),
			Entry("empty string", `""`, 0),
			Entry("garbage string", `"E75023"`, 0),
		)
	})

	Describe("defaults", func() {
		It("should default emissivity to 0.95", func() {
			Expect(exif.Metadata{}.EmissivityOrDefault()).To(Equal(0.95))
		})

		It("should default object distance to 1.0", func() {
			Expect(exif.Metadata{}.DistanceOrDefault()).To(Equal(1.0))
		})

		It("should default the serial to zero", func() {
			Expect(exif.Metadata{}.SerialNumber()).To(BeZero())
		})

		It("should prefer explicit values", func() {
			e := 0.8
			d := 3.5
			m := exif.Metadata{Emissivity: &e, ObjectDistance: &d}
			Expect(m.EmissivityOrDefault()).To(Equal(0.8))
			Expect(m.DistanceOrDefault()).To(Equal(3.5))
		})
	})
})
