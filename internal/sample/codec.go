package sample

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers for the TelemetrySample protobuf schema, grounded on
// original_source/common/include/telemetry_common/proto_adapter.h.
// Backwards-compatible field addition means new fields always get the
// next unused number; numbers 1-4 are permanently reserved.
const (
	fieldTimestampUs = protowire.Number(1)
	fieldValue       = protowire.Number(2)
	fieldUnit        = protowire.Number(3)
	fieldSequenceID  = protowire.Number(4)
)

// Encode serializes a sample to its protobuf wire form. Typical size is
// ~30 bytes; an empty unit string is written as DefaultUnit.
func Encode(s Sample) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldTimestampUs, protowire.VarintType)
	buf = protowire.AppendVarint(buf, encodeZigZag(s.Timestamp.UnixMicro()))

	buf = protowire.AppendTag(buf, fieldValue, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(s.Value))

	unit := s.Unit
	if unit == "" {
		unit = DefaultUnit
	}
	buf = protowire.AppendTag(buf, fieldUnit, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(unit))

	buf = protowire.AppendTag(buf, fieldSequenceID, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.SequenceID))

	return buf
}

// Decode parses the protobuf wire form produced by Encode. Invalid bytes
// return the zero-value sample with ok=false rather than an error, per
// SPEC_FULL.md §4.A ("decoding of invalid bytes returns a 'no value'
// sentinel rather than raising"). Unknown fields are skipped, allowing
// forward compatibility with schema additions.
func Decode(data []byte) (Sample, bool) {
	var (
		tsUs    int64
		value   float64
		unit    string = DefaultUnit
		seq     uint32
		sawAny  bool
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Sample{}, false
		}
		data = data[n:]
		sawAny = true

		switch num {
		case fieldTimestampUs:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Sample{}, false
			}
			tsUs = decodeZigZag(v)
			data = data[n:]
		case fieldValue:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return Sample{}, false
			}
			value = math.Float64frombits(v)
			data = data[n:]
		case fieldUnit:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Sample{}, false
			}
			unit = string(v)
			data = data[n:]
		case fieldSequenceID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Sample{}, false
			}
			seq = uint32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Sample{}, false
			}
			data = data[n:]
		}
	}

	if !sawAny {
		return Sample{}, false
	}

	return Sample{
		Timestamp:  time.UnixMicro(tsUs).UTC(),
		Value:      value,
		Unit:       unit,
		SequenceID: seq,
	}, true
}

func encodeZigZag(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func decodeZigZag(n uint64) int64 {
	return int64(n>>1) ^ -int64(n&1)
}
