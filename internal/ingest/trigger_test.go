package ingest_test

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermal-ingest/internal/ingest"
)

var _ = Describe("Trigger", func() {
	It("should absorb repeated fires into one pending trigger", func() {
		trigger := ingest.NewTrigger()
		trigger.Fire()
		trigger.Fire()
		trigger.Fire()

		Expect(trigger).To(Receive())
		Expect(trigger).NotTo(Receive())
	})

	It("should drain a pending trigger", func() {
		trigger := ingest.NewTrigger()
		trigger.Fire()
		trigger.Drain()
		Expect(trigger).NotTo(Receive())
	})

	It("should tolerate draining an empty trigger", func() {
		trigger := ingest.NewTrigger()
		Expect(trigger.Drain).NotTo(Panic())
	})
})

var _ = Describe("Watcher", func() {
	var (
		root    string
		archive string
		trigger ingest.Trigger
		watcher *ingest.Watcher
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		archive = filepath.Join(root, "archive")
		Expect(os.MkdirAll(archive, 0o755)).To(Succeed())
		trigger = ingest.NewTrigger()

		var err error
		watcher, err = ingest.NewWatcher(root, archive, trigger, testLogger())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(watcher.Close()).To(Succeed())
	})

	It("should fire when an image file is created", func() {
		writeImage(root, "FLIR0001.jpg")
		Eventually(trigger, time.Second).Should(Receive())
	})

	It("should not fire for non-image files", func() {
		Expect(os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)).To(Succeed())
		Consistently(trigger, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("should not fire for files created in the archive", func() {
		writeImage(archive, "FLIR0001.jpg")
		Consistently(trigger, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("should fire for images inside a newly created directory", func() {
		sub := filepath.Join(root, "sync-2026-01-21")
		Expect(os.MkdirAll(sub, 0o755)).To(Succeed())

		// Directory creation itself schedules a pass.
		Eventually(trigger, time.Second).Should(Receive())

		// Give the watcher a moment to register the new directory, then
		// drop an image into it.
		time.Sleep(100 * time.Millisecond)
		writeImage(sub, "FLIR0001.jpg")
		Eventually(trigger, time.Second).Should(Receive())
	})

	It("should require a trigger and a logger", func() {
		_, err := ingest.NewWatcher(root, archive, nil, testLogger())
		Expect(err).To(HaveOccurred())

		_, err = ingest.NewWatcher(root, archive, trigger, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("WatchConsole", func() {
	It("should fire once per input line", func() {
		trigger := ingest.NewTrigger()
		done := make(chan struct{})

		go func() {
			defer close(done)
			ingest.WatchConsole(strings.NewReader("\n"), trigger, testLogger())
		}()

		Eventually(done, time.Second).Should(BeClosed())
		Expect(trigger).To(Receive())
	})
})
