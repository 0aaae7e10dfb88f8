package field

import (
	"errors"
	"time"
)

var (
	errTimeLayout = errors.New("expected YYYYMMDD-HH:MM:SS[.sss]")
	errTimeOnly   = errors.New("expected HH:MM:SS[.sss]")
	errDateLayout = errors.New("expected YYYYMMDD")
	errOutOfRange = errors.New("component out of range")
)

// clock is a parsed HH:MM:SS[.fff]. A leap second is held as second 59
// with leap set, since time.Time cannot represent second 60.
type clock struct {
	hh, mm, ss, ns, prec int
	leap                 bool
}

func parseTimestamp(raw []byte) (time.Time, clock, error) {
	if len(raw) < 17 || raw[8] != '-' {
		return time.Time{}, clock{}, errTimeLayout
	}
	y, m, d, err := splitDate(raw[:8])
	if err != nil {
		return time.Time{}, clock{}, err
	}
	c, err := splitClock(raw[9:])
	if err != nil {
		if errors.Is(err, errTimeOnly) {
			return time.Time{}, clock{}, errTimeLayout
		}
		return time.Time{}, clock{}, err
	}
	return time.Date(y, time.Month(m), d, c.hh, c.mm, c.ss, c.ns, time.UTC), c, nil
}

func parseTimeOnly(raw []byte) (time.Time, clock, error) {
	c, err := splitClock(raw)
	if err != nil {
		return time.Time{}, clock{}, err
	}
	return time.Date(0, time.January, 1, c.hh, c.mm, c.ss, c.ns, time.UTC), c, nil
}

func parseDate(raw []byte) (time.Time, error) {
	if len(raw) != 8 {
		return time.Time{}, errDateLayout
	}
	y, m, d, err := splitDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}

func splitDate(raw []byte) (int, int, int, error) {
	y, ok1 := digits(raw[0:4])
	m, ok2 := digits(raw[4:6])
	d, ok3 := digits(raw[6:8])
	if !ok1 || !ok2 || !ok3 {
		return 0, 0, 0, errDateLayout
	}
	if m < 1 || m > 12 || d < 1 || d > daysIn(y, m) {
		return 0, 0, 0, errOutOfRange
	}
	return y, m, d, nil
}

// splitClock parses HH:MM:SS with an optional fraction of 1-9 digits.
// Second 60 is only valid as 23:59:60.
func splitClock(raw []byte) (clock, error) {
	if len(raw) < 8 || raw[2] != ':' || raw[5] != ':' {
		return clock{}, errTimeOnly
	}
	hh, ok1 := digits(raw[0:2])
	mm, ok2 := digits(raw[3:5])
	ss, ok3 := digits(raw[6:8])
	if !ok1 || !ok2 || !ok3 {
		return clock{}, errTimeOnly
	}
	if hh > 23 || mm > 59 || ss > 60 || (ss == 60 && (hh != 23 || mm != 59)) {
		return clock{}, errOutOfRange
	}
	c := clock{hh: hh, mm: mm, ss: ss}
	if ss == 60 {
		c.ss, c.leap = 59, true
	}
	rest := raw[8:]
	if len(rest) == 0 {
		return c, nil
	}
	if rest[0] != '.' || len(rest) < 2 || len(rest) > 10 {
		return clock{}, errTimeOnly
	}
	frac, ok := digits(rest[1:])
	if !ok {
		return clock{}, errTimeOnly
	}
	c.prec = len(rest) - 1
	c.ns = frac * pow10[c.prec]
	return c, nil
}

// appendClock appends HH:MM:SS[.fff] of t, writing second 60 for a leap
// second.
func appendClock(dst []byte, t time.Time, precision int, leap bool) []byte {
	dst = t.UTC().AppendFormat(dst, "15:04:05")
	if leap {
		dst = append(dst[:len(dst)-2], '6', '0')
	}
	return appendFraction(dst, t.Nanosecond(), precision)
}

func appendFraction(dst []byte, ns, precision int) []byte {
	precision = clampPrecision(precision)
	if precision == 0 {
		return dst
	}
	dst = append(dst, '.')
	v := ns / pow10[precision]
	var buf [9]byte
	for i := precision - 1; i >= 0; i-- {
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return append(dst, buf[:precision]...)
}

func digits(b []byte) (int, bool) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, len(b) > 0
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
