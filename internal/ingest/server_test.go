package ingest_test

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermal-ingest/internal/ingest"
)

var _ = Describe("Server", func() {
	var config *ingest.ServerConfig

	BeforeEach(func() {
		config = &ingest.ServerConfig{
			Logger:    testLogger(),
			WatchRoot: GinkgoT().TempDir(),
			DBHost:    "localhost",
			DBPort:    5432,
			DBUser:    "postgres",
			DBName:    "thermal",
		}
	})

	Describe("NewServer", func() {
		It("should accept a valid configuration", func() {
			server, err := ingest.NewServer(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(server).NotTo(BeNil())
		})

		It("should reject a nil configuration", func() {
			_, err := ingest.NewServer(nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a missing logger", func() {
			config.Logger = nil
			_, err := ingest.NewServer(config)
			Expect(err).To(MatchError(ContainSubstring("logger")))
		})

		It("should reject an empty watch root", func() {
			config.WatchRoot = ""
			_, err := ingest.NewServer(config)
			Expect(err).To(MatchError(ContainSubstring("watch root")))
		})

		It("should reject incomplete database settings", func() {
			config.DBHost = ""
			_, err := ingest.NewServer(config)
			Expect(err).To(MatchError(ContainSubstring("database host")))

			config.DBHost = "localhost"
			config.DBPort = 0
			_, err = ingest.NewServer(config)
			Expect(err).To(MatchError(ContainSubstring("database port")))

			config.DBPort = 5432
			config.DBUser = ""
			_, err = ingest.NewServer(config)
			Expect(err).To(MatchError(ContainSubstring("database user")))

			config.DBUser = "postgres"
			config.DBName = ""
			_, err = ingest.NewServer(config)
			Expect(err).To(MatchError(ContainSubstring("database name")))
		})

		It("should require a queue name when a broker URL is set", func() {
			config.RabbitMQURL = "amqp://localhost:5672"
			config.QueueName = ""
			_, err := ingest.NewServer(config)
			Expect(err).To(MatchError(ContainSubstring("queue name")))
		})

		It("should default the archive directory under the watch root", func() {
			_, err := ingest.NewServer(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(config.ArchiveDir).To(Equal(filepath.Join(config.WatchRoot, "archive")))
		})

		It("should default the trigger timing", func() {
			_, err := ingest.NewServer(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(config.PollInterval).To(Equal(1 * time.Second))
			Expect(config.Debounce).To(Equal(1 * time.Second))
		})

		It("should keep an explicit archive directory", func() {
			config.ArchiveDir = "/srv/thermal/processed"
			_, err := ingest.NewServer(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(config.ArchiveDir).To(Equal("/srv/thermal/processed"))
		})
	})
})
