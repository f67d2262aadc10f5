package decision

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags the concrete type carried by a Value.
type Kind string

const (
	KindDouble   Kind = "DOUBLE"
	KindInt      Kind = "INTEGER"
	KindBool     Kind = "BOOLEAN"
	KindDuration Kind = "DURATION"
	KindString   Kind = "STRING"
)

// Value is one typed decision output. The zero Value is a double 0.
//
// Durations are carried as time.Duration internally and cross the JSON
// boundary as whole seconds, matching the wire shape consumers expect.
type Value struct {
	kind Kind
	num  float64
	b    bool
	d    time.Duration
	s    string
}

// DoubleValue wraps a float64.
func DoubleValue(v float64) Value { return Value{kind: KindDouble, num: v} }

// IntValue wraps an int.
func IntValue(v int) Value { return Value{kind: KindInt, num: float64(v)} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// DurationValue wraps a time.Duration.
func DurationValue(v time.Duration) Value { return Value{kind: KindDuration, d: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the value's type tag. The zero Value reports KindDouble.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindDouble
	}
	return v.kind
}

// AsDouble returns the numeric value. Durations convert to seconds;
// booleans and strings return 0.
func (v Value) AsDouble() float64 {
	switch v.Kind() {
	case KindDouble, KindInt:
		return v.num
	case KindDuration:
		return v.d.Seconds()
	}
	return 0
}

// AsInt returns the value truncated to an int. Durations convert to whole
// seconds; booleans and strings return 0.
func (v Value) AsInt() int { return int(v.AsDouble()) }

// AsBool returns the boolean value, or false for every other kind.
func (v Value) AsBool() bool {
	if v.Kind() == KindBool {
		return v.b
	}
	return false
}

// AsDuration returns the duration value. Numeric kinds convert from whole
// seconds; booleans and strings return 0.
func (v Value) AsDuration() time.Duration {
	switch v.Kind() {
	case KindDuration:
		return v.d
	case KindDouble, KindInt:
		return time.Duration(v.num) * time.Second
	}
	return 0
}

// AsString renders the value as text.
func (v Value) AsString() string {
	switch v.Kind() {
	case KindString:
		return v.s
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindDuration:
		return v.d.String()
	case KindInt:
		return fmt.Sprintf("%d", int(v.num))
	}
	return fmt.Sprintf("%g", v.num)
}

// valueJSON is the wire shape: {"type": ..., "value": ..., "unit"?, "formatted"?}.
type valueJSON struct {
	Type      Kind        `json:"type"`
	Value     interface{} `json:"value"`
	Unit      string      `json:"unit,omitempty"`
	Formatted string      `json:"formatted,omitempty"`
}

// MarshalJSON emits the tagged wire shape. Durations serialize as whole
// seconds with a unit marker plus a human-readable rendering.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Type: v.Kind()}
	switch v.Kind() {
	case KindDouble:
		out.Value = v.num
	case KindInt:
		out.Value = int(v.num)
	case KindBool:
		out.Value = v.b
	case KindDuration:
		out.Value = int64(v.d / time.Second)
		out.Unit = "SECONDS"
		out.Formatted = v.d.String()
	case KindString:
		out.Value = v.s
	}
	return json.Marshal(out)
}
