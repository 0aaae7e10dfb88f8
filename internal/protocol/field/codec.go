package field

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidValue      = errors.New("field: invalid value")
	ErrUnknownType       = errors.New("field: unknown data type")
	ErrKindMismatch      = errors.New("field: value kind does not match type")
	ErrContainsDelimiter = errors.New("field: value contains delimiter")
)

// FormatError reports bytes that do not conform to a data type.
type FormatError struct {
	Type   Type
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("field: invalid %s value %q: %s", e.Type, e.Value, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidValue
}

func formatErr(t Type, raw []byte, reason string) error {
	return &FormatError{Type: t, Value: string(raw), Reason: reason}
}

// Decode parses raw as a value of type t.
func Decode(t Type, raw []byte) (Value, error) {
	if len(raw) == 0 {
		return Value{}, formatErr(t, raw, "empty value")
	}
	switch t.Kind() {
	case KindInt:
		n, err := parseInt(raw)
		if err != nil {
			return Value{}, formatErr(t, raw, err.Error())
		}
		if err := checkRange(t, n); err != nil {
			return Value{}, formatErr(t, raw, err.Error())
		}
		return Int(n), nil
	case KindDecimal:
		d, err := parseDecimal(raw)
		if err != nil {
			return Value{}, formatErr(t, raw, err.Error())
		}
		return Decimal(d), nil
	case KindChar:
		if len(raw) != 1 {
			return Value{}, formatErr(t, raw, "expected exactly one character")
		}
		return Char(raw[0]), nil
	case KindBool:
		if len(raw) == 1 && (raw[0] == 'Y' || raw[0] == 'N') {
			return Bool(raw[0] == 'Y'), nil
		}
		return Value{}, formatErr(t, raw, "expected Y or N")
	case KindData:
		return Data(raw), nil
	case KindTimestamp:
		ts, c, err := parseTimestamp(raw)
		if err != nil {
			return Value{}, formatErr(t, raw, err.Error())
		}
		return Value{Kind: KindTimestamp, Time: ts, Precision: c.prec, LeapSecond: c.leap}, nil
	case KindTimeOnly:
		ts, c, err := parseTimeOnly(raw)
		if err != nil {
			return Value{}, formatErr(t, raw, err.Error())
		}
		return Value{Kind: KindTimeOnly, Time: ts, Precision: c.prec, LeapSecond: c.leap}, nil
	case KindDateOnly:
		ts, err := parseDate(raw)
		if err != nil {
			return Value{}, formatErr(t, raw, err.Error())
		}
		return Value{Kind: KindDateOnly, Time: ts}, nil
	case KindString:
		return String(string(raw)), nil
	default:
		return Value{}, formatErr(t, raw, "unsupported data type")
	}
}

// Encode renders v in wire form.
func Encode(v Value) []byte {
	return Append(nil, v)
}

// Append appends the wire form of v to dst.
func Append(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindInt:
		return strconv.AppendInt(dst, v.Int, 10)
	case KindDecimal:
		return append(dst, formatDecimal(v.Decimal)...)
	case KindChar:
		return append(dst, v.Char)
	case KindBool:
		if v.Bool {
			return append(dst, 'Y')
		}
		return append(dst, 'N')
	case KindString:
		return append(dst, v.String...)
	case KindData:
		return append(dst, v.Bytes...)
	case KindTimestamp:
		dst = v.Time.UTC().AppendFormat(dst, "20060102-")
		return appendClock(dst, v.Time, v.Precision, v.LeapSecond)
	case KindTimeOnly:
		return appendClock(dst, v.Time, v.Precision, v.LeapSecond)
	case KindDateOnly:
		return v.Time.AppendFormat(dst, "20060102")
	default:
		return dst
	}
}

// Check reports whether v can be written as a field of type t using delim
// as the field separator.
func Check(t Type, v Value, delim byte) error {
	if t.Kind() != v.Kind {
		return fmt.Errorf("%w: %s field given %s value", ErrKindMismatch, t, v.Kind)
	}
	switch v.Kind {
	case KindInt:
		if err := checkRange(t, v.Int); err != nil {
			return formatErr(t, strconv.AppendInt(nil, v.Int, 10), err.Error())
		}
	case KindChar:
		if v.Char == delim {
			return formatErr(t, []byte{v.Char}, "character not allowed")
		}
	case KindString:
		if v.String == "" {
			return formatErr(t, nil, "empty value")
		}
		if strings.IndexByte(v.String, delim) >= 0 {
			return fmt.Errorf("%w: %s value %q", ErrContainsDelimiter, t, v.String)
		}
	case KindData:
		if len(v.Bytes) == 0 {
			return formatErr(t, nil, "empty value")
		}
	case KindTimestamp, KindTimeOnly:
		if u := v.Time.UTC(); v.LeapSecond && (u.Hour() != 23 || u.Minute() != 59 || u.Second() != 59) {
			return formatErr(t, Append(nil, v), "leap second must fall on 23:59:59")
		}
	}
	return nil
}

func checkRange(t Type, n int64) error {
	switch t {
	case TypeLength, TypeNumInGroup, TypeSeqNum, TypeTagNum:
		if n < 0 {
			return errors.New("must not be negative")
		}
	case TypeDayOfMonth:
		if n < 1 || n > 31 {
			return errors.New("day of month out of range")
		}
	}
	return nil
}

func parseInt(raw []byte) (int64, error) {
	digits := raw
	if digits[0] == '-' {
		digits = digits[1:]
	}
	if len(digits) == 0 {
		return 0, errors.New("missing digits")
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("unexpected character %q", c)
		}
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, errors.New("out of range")
	}
	return n, nil
}

func parseDecimal(raw []byte) (decimal.Decimal, error) {
	body := raw
	if body[0] == '-' {
		body = body[1:]
	}
	digits, dots := 0, 0
	for _, c := range body {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return decimal.Decimal{}, fmt.Errorf("unexpected character %q", c)
		}
	}
	if digits == 0 {
		return decimal.Decimal{}, errors.New("missing digits")
	}
	if dots > 1 {
		return decimal.Decimal{}, errors.New("more than one decimal point")
	}
	return decimal.NewFromString(string(raw))
}

func formatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
