package task

import (
	"encoding/base64"
	"encoding/json"

	"github.com/spf13/cast"

	"telemetryhub/internal/sample"
)

// sampleField is the well-known payload key under which a NewSamplePayload
// task carries its base64-encoded TelemetrySample wire bytes.
const sampleField = "sample_b64"

// Payload is an opaque JSON value carrying handler-specific data. The
// scheduler never inspects its shape; handlers validate their own
// payloads. Structured accessors are provided so callers can read
// primitive fields without unmarshaling into a concrete struct, mirroring
// the flexible-schema access pattern of the original nlohmann::json
// payload field.
type Payload json.RawMessage

// EmptyPayload is the canonical representation of "no payload".
var EmptyPayload = Payload("{}")

// NewPayload marshals an arbitrary Go value into a Payload.
func NewPayload(v any) (Payload, error) {
	if v == nil {
		return EmptyPayload, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Payload(raw), nil
}

// MarshalJSON implements json.Marshaler, emitting the raw bytes verbatim.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	return p, nil
}

// UnmarshalJSON implements json.Unmarshaler, storing the raw bytes verbatim.
func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[0:0], data...)
	return nil
}

// asMap lazily decodes the payload into a generic map for field access.
// Decode failures yield a nil map; accessors then return zero values.
func (p Payload) asMap() map[string]any {
	if len(p) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return nil
	}
	return m
}

// Field returns the raw value at key, or nil if absent or the payload is
// not a JSON object.
func (p Payload) Field(key string) any {
	m := p.asMap()
	if m == nil {
		return nil
	}
	return m[key]
}

// String reads key as a string, coercing where sensible; ok is false when
// the field is absent.
func (p Payload) String(key string) (string, bool) {
	v := p.Field(key)
	if v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// Int reads key as an int; ok is false when the field is absent or not
// numeric.
func (p Payload) Int(key string) (int, bool) {
	v := p.Field(key)
	if v == nil {
		return 0, false
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Float64 reads key as a float64; ok is false when the field is absent or
// not numeric.
func (p Payload) Float64(key string) (float64, bool) {
	v := p.Field(key)
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool reads key as a bool; ok is false when the field is absent or not
// boolean-coercible.
func (p Payload) Bool(key string) (bool, bool) {
	v := p.Field(key)
	if v == nil {
		return false, false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Decode unmarshals the payload into dst, the escape hatch for handlers
// that want a concrete struct instead of field-by-field access.
func (p Payload) Decode(dst any) error {
	if len(p) == 0 {
		return nil
	}
	return json.Unmarshal(p, dst)
}

// Bytes returns the underlying raw JSON bytes.
func (p Payload) Bytes() []byte {
	return []byte(p)
}

// NewSamplePayload wraps a telemetry sample's binary wire encoding in a
// JSON payload under sampleField, base64-encoded. This is the bridge
// between the opaque JSON payload the scheduler carries and the
// TelemetrySample binary codec used by devices submitting readings.
func NewSamplePayload(s sample.Sample) (Payload, error) {
	return NewPayload(map[string]string{
		sampleField: base64.StdEncoding.EncodeToString(sample.Encode(s)),
	})
}

// Sample decodes the TelemetrySample carried at sampleField, if present.
// ok is false when the field is absent, not valid base64, or does not
// decode as a well-formed sample.
func (p Payload) Sample() (sample.Sample, bool) {
	encoded, ok := p.String(sampleField)
	if !ok {
		return sample.Sample{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return sample.Sample{}, false
	}
	return sample.Decode(raw)
}
