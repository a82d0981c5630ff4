package ingest

import (
	"errors"
	"strings"
	"time"
)

// TimestampFormat is the canonical second-precision format used both for
// signature comparison and for the naive datetime column in the store.
const TimestampFormat = "2006-01-02 15:04:05"

// Camera metadata commonly uses colon-delimited dates ("2026:01:21 09:44:47"),
// while rows read back from the store use hyphens. Both are accepted.
var captureTimeLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
}

// ErrUnparsableTimestamp is returned when a raw capture timestamp matches
// none of the accepted layouts.
var ErrUnparsableTimestamp = errors.New("unparsable capture timestamp")

// Signature identifies one thermal capture for deduplication purposes.
// Two readings with the same signature are considered the same capture,
// regardless of which file they arrived in.
type Signature struct {
	Asset     string
	Timestamp string
	Serial    int
}

// NewSignature builds a signature from an already-normalized asset name,
// a parsed capture time, and a camera serial. The time is rendered as the
// wall clock it carries, with no location conversion: the store column is
// naive, so a row written from a local time comes back with the same wall
// clock relabeled UTC, and both sides must render identically.
func NewSignature(asset string, capturedAt time.Time, serial int) Signature {
	return Signature{
		Asset:     asset,
		Timestamp: capturedAt.Format(TimestampFormat),
		Serial:    serial,
	}
}

// SignatureSet is the working set of known signatures for a pipeline run.
// It is seeded from the store and grown as the current batch is accepted,
// so duplicate copies within one run are caught without a second query.
type SignatureSet map[Signature]struct{}

// NewSignatureSet returns an empty working set.
func NewSignatureSet() SignatureSet {
	return make(SignatureSet)
}

// Contains reports whether sig is already known.
func (s SignatureSet) Contains(sig Signature) bool {
	_, ok := s[sig]
	return ok
}

// Add inserts sig into the working set.
func (s SignatureSet) Add(sig Signature) {
	s[sig] = struct{}{}
}

// NormalizeAsset derives an asset identifier from a free-text camera note:
// uppercase, alphanumeric characters only. An empty result means the
// capture carries no asset tag.
func NormalizeAsset(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseCaptureTime parses a raw camera timestamp such as
// "2026:01:21 09:44:47.158+02:00". Only the first 19 characters are
// considered; any sub-second or timezone suffix is dropped so the stored
// value is the literal local wall-clock time. Parsing is strict: if no
// accepted layout matches, ErrUnparsableTimestamp is returned rather than
// a guessed value.
func ParseCaptureTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > len(TimestampFormat) {
		trimmed = trimmed[:len(TimestampFormat)]
	}

	for _, layout := range captureTimeLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrUnparsableTimestamp
}
