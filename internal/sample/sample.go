// Package sample implements the TelemetrySample leaf value type and its
// binary wire codec. See SPEC_FULL.md §3 and §4.A.
package sample

import "time"

// DefaultUnit is used when a sample is constructed without an explicit
// unit.
const DefaultUnit = "unitless"

// Sample is a single telemetry reading carried inside a task payload.
type Sample struct {
	Timestamp  time.Time
	Value      float64
	Unit       string
	SequenceID uint32
}

// New constructs a sample, defaulting Unit to "unitless" and truncating
// Timestamp to microsecond precision.
func New(ts time.Time, value float64, unit string, seq uint32) Sample {
	if unit == "" {
		unit = DefaultUnit
	}
	return Sample{
		Timestamp:  ts.UTC().Truncate(time.Microsecond),
		Value:      value,
		Unit:       unit,
		SequenceID: seq,
	}
}

// Equal compares two samples, allowing up to 1 microsecond of timestamp
// drift, matching the codec's round-trip contract.
func (s Sample) Equal(other Sample) bool {
	delta := s.Timestamp.Sub(other.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= time.Microsecond &&
		s.Value == other.Value &&
		s.Unit == other.Unit &&
		s.SequenceID == other.SequenceID
}
