package field

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a decoded field value. Kind selects which payload member is set.
type Value struct {
	Kind    Kind
	Int     int64
	Decimal decimal.Decimal
	Char    byte
	Bool    bool
	String  string
	Bytes   []byte
	Time    time.Time
	// Precision is the number of fractional second digits carried by
	// timestamp and time-only values (0, 3, 6 or 9 on the wire; any 0-9 accepted).
	Precision int
	// LeapSecond marks a timestamp or time-only value read as second 60.
	// Time then holds 23:59:59 and the wire form keeps the 60.
	LeapSecond bool
}

// Int creates an integer value.
func Int(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

// Decimal creates a decimal value. The exponent of d is kept on the wire.
func Decimal(d decimal.Decimal) Value {
	return Value{Kind: KindDecimal, Decimal: d}
}

// DecimalFromString parses s with the wire decimal grammar.
func DecimalFromString(s string) (Value, error) {
	return Decode(TypeFloat, []byte(s))
}

// Char creates a single character value.
func Char(c byte) Value {
	return Value{Kind: KindChar, Char: c}
}

// Bool creates a Y/N value.
func Bool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// String creates a text value.
func String(s string) Value {
	return Value{Kind: KindString, String: s}
}

// Data creates a raw data value. b is copied.
func Data(b []byte) Value {
	return Value{Kind: KindData, Bytes: bytes.Clone(b)}
}

// Timestamp creates a UTC timestamp value with precision fractional digits.
func Timestamp(t time.Time, precision int) Value {
	return Value{Kind: KindTimestamp, Time: t.UTC(), Precision: clampPrecision(precision)}
}

// TimeOnly creates a UTC time-of-day value. The date part of t is ignored.
func TimeOnly(t time.Time, precision int) Value {
	t = t.UTC()
	return Value{
		Kind:      KindTimeOnly,
		Time:      time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC),
		Precision: clampPrecision(precision),
	}
}

// DateOnly creates a calendar date value. The time part of t is ignored.
func DateOnly(t time.Time) Value {
	return Value{Kind: KindDateOnly, Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// IsZero reports whether v carries no value.
func (v Value) IsZero() bool {
	return v.Kind == KindInvalid
}

// Text renders v in wire form.
func (v Value) Text() string {
	return string(Append(nil, v))
}

// Equal reports whether v and o carry the same kind and payload.
// Decimals compare numerically; times compare at the coarser precision.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindDecimal:
		return v.Decimal.Equal(o.Decimal)
	case KindChar:
		return v.Char == o.Char
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.String == o.String
	case KindData:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindTimestamp, KindTimeOnly:
		p := min(v.Precision, o.Precision)
		return v.LeapSecond == o.LeapSecond && truncate(v.Time, p).Equal(truncate(o.Time, p))
	case KindDateOnly:
		return v.Time.Equal(o.Time)
	default:
		return true
	}
}

func clampPrecision(p int) int {
	if p < 0 {
		return 0
	}
	if p > 9 {
		return 9
	}
	return p
}

var pow10 = [10]int{1e9, 1e8, 1e7, 1e6, 1e5, 1e4, 1e3, 1e2, 1e1, 1}

func truncate(t time.Time, precision int) time.Time {
	step := pow10[clampPrecision(precision)]
	ns := t.Nanosecond()
	return t.Add(-time.Duration(ns % step))
}
