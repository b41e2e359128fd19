package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateStyle represents the rendering style of the DateStyle session
// parameter. The style decides how the backend formats dates and timestamps
// in text mode and therefore how they have to be parsed.
type DateStyle int8

const (
	StyleISO DateStyle = iota
	StyleGerman
	StyleSQL
	StylePostgres
)

// DateOrder represents the field order component of the DateStyle session
// parameter (the part after the comma, e.g. "ISO, MDY").
type DateOrder int8

const (
	OrderMDY DateOrder = iota
	OrderDMY
	OrderYMD
)

// ParseDateStyle interprets the value of the DateStyle session parameter.
// Unknown styles fall back to ISO which is the backend default.
func ParseDateStyle(value string) (DateStyle, DateOrder) {
	style, order := StyleISO, OrderMDY

	parts := strings.Split(value, ",")
	switch strings.TrimSpace(parts[0]) {
	case "ISO":
		style = StyleISO
	case "German":
		style = StyleGerman
	case "SQL":
		style = StyleSQL
	case "Postgres":
		style = StylePostgres
	}

	if len(parts) > 1 {
		switch strings.TrimSpace(parts[1]) {
		case "MDY":
			order = OrderMDY
		case "DMY":
			order = OrderDMY
		case "YMD":
			order = OrderYMD
		}
	}

	return style, order
}

// The wire epoch for all date/time types is 2000-01-01. Dates travel as days
// since the epoch (int32), timestamps as microseconds since the epoch (int64).
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Sentinel host values representing the special infinity values. They sit one
// day outside the range PostgreSQL itself can represent so they can never
// collide with a genuine value.
var (
	TimeInfinity         = time.Date(294277, 1, 2, 0, 0, 0, 0, time.UTC)
	TimeNegativeInfinity = time.Date(-4714, 11, 23, 0, 0, 0, 0, time.UTC)
)

const (
	dateInfinity      = math.MaxInt32
	dateNegInfinity   = math.MinInt32
	tsInfinity        = math.MaxInt64
	tsNegInfinity     = math.MinInt64
	microsecondsPerDay = 24 * 60 * 60 * 1_000_000
)

// AppendDate appends the binary wire representation of the given date, the
// number of days since 2000-01-01 as an int32.
func AppendDate(buf []byte, t time.Time) []byte {
	switch {
	case t.Equal(TimeInfinity):
		return AppendInt4(buf, dateInfinity)
	case t.Equal(TimeNegativeInfinity):
		return AppendInt4(buf, dateNegInfinity)
	}

	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Sub(pgEpoch) / (24 * time.Hour)
	return AppendInt4(buf, int32(days))
}

// DecodeDate decodes the binary wire representation of a date.
func DecodeDate(data []byte) (time.Time, error) {
	days, err := DecodeInt4(data)
	if err != nil {
		return time.Time{}, err
	}

	switch days {
	case dateInfinity:
		return TimeInfinity, nil
	case dateNegInfinity:
		return TimeNegativeInfinity, nil
	}

	return pgEpoch.AddDate(0, 0, int(days)), nil
}

// AppendTimestamp appends the binary wire representation of the given
// timestamp, the number of microseconds since 2000-01-01 as an int64. The
// timestamptz variant shares the same representation, the wire value is
// always expressed in UTC and carries no explicit zone.
func AppendTimestamp(buf []byte, t time.Time) []byte {
	switch {
	case t.Equal(TimeInfinity):
		return AppendInt8(buf, tsInfinity)
	case t.Equal(TimeNegativeInfinity):
		return AppendInt8(buf, tsNegInfinity)
	}

	micros := t.Unix()*1_000_000 + int64(t.Nanosecond())/1_000
	micros -= pgEpoch.Unix() * 1_000_000
	return AppendInt8(buf, micros)
}

// DecodeTimestamp decodes the binary wire representation of a timestamp. The
// returned value is expressed in UTC, rendering in the session timezone is the
// concern of the caller.
func DecodeTimestamp(data []byte) (time.Time, error) {
	micros, err := DecodeInt8(data)
	if err != nil {
		return time.Time{}, err
	}

	switch micros {
	case tsInfinity:
		return TimeInfinity, nil
	case tsNegInfinity:
		return TimeNegativeInfinity, nil
	}

	return pgEpoch.Add(time.Duration(micros) * time.Microsecond), nil
}

// AppendDateText appends the text representation of the given date using the
// requested date style and field order.
func AppendDateText(buf []byte, t time.Time, style DateStyle, order DateOrder) []byte {
	switch {
	case t.Equal(TimeInfinity):
		return append(buf, "infinity"...)
	case t.Equal(TimeNegativeInfinity):
		return append(buf, "-infinity"...)
	}

	y, m, d := t.Date()
	switch style {
	case StyleGerman:
		return append(buf, fmt.Sprintf("%02d.%02d.%04d", d, int(m), y)...)
	case StyleSQL:
		if order == OrderDMY {
			return append(buf, fmt.Sprintf("%02d/%02d/%04d", d, int(m), y)...)
		}
		return append(buf, fmt.Sprintf("%02d/%02d/%04d", int(m), d, y)...)
	case StylePostgres:
		if order == OrderDMY {
			return append(buf, fmt.Sprintf("%02d-%02d-%04d", d, int(m), y)...)
		}
		return append(buf, fmt.Sprintf("%02d-%02d-%04d", int(m), d, y)...)
	default:
		return append(buf, fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)...)
	}
}

// DecodeDateText decodes the text representation of a date rendered by the
// backend using the given date style and field order.
func DecodeDateText(data []byte, style DateStyle, order DateOrder) (time.Time, error) {
	s := string(data)
	switch s {
	case "infinity":
		return TimeInfinity, nil
	case "-infinity":
		return TimeNegativeInfinity, nil
	}

	var y, m, d int
	var err error

	switch style {
	case StyleGerman:
		err = scanThree(s, '.', &d, &m, &y)
	case StyleSQL, StylePostgres:
		sep := byte('/')
		if style == StylePostgres {
			sep = '-'
		}
		if order == OrderDMY {
			err = scanThree(s, sep, &d, &m, &y)
		} else {
			err = scanThree(s, sep, &m, &d, &y)
		}
	default:
		err = scanThree(s, '-', &y, &m, &d)
	}

	if err != nil {
		return time.Time{}, newDecodeErrorf(0, "malformed date: %q", data)
	}

	if strings.HasSuffix(s, " BC") {
		y = -y + 1
	}

	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}

// AppendTimestampText appends the text representation of the given timestamp
// using the requested date style. The location of the given value decides the
// rendered wall clock, timestamptz values should be moved into the session
// timezone beforehand.
func AppendTimestampText(buf []byte, t time.Time, style DateStyle, order DateOrder, withZone bool) []byte {
	switch {
	case t.Equal(TimeInfinity):
		return append(buf, "infinity"...)
	case t.Equal(TimeNegativeInfinity):
		return append(buf, "-infinity"...)
	}

	if style == StylePostgres {
		// Postgres style spells out the abbreviated month name, with the day
		// leading when the field order requests it.
		if order == OrderDMY {
			buf = append(buf, t.Format("Mon 02 Jan 15:04:05.999999 2006")...)
		} else {
			buf = append(buf, t.Format("Mon Jan 02 15:04:05.999999 2006")...)
		}
		if withZone {
			buf = append(buf, ' ')
			buf = append(buf, t.Format("MST")...)
		}
		return buf
	}

	buf = AppendDateText(buf, t, style, order)
	buf = append(buf, ' ')
	buf = append(buf, t.Format("15:04:05.999999")...)

	if withZone {
		buf = appendZoneOffset(buf, t)
	}

	return buf
}

// appendZoneOffset appends the numeric UTC offset the way the backend renders
// it: hours only when the offset is whole, minutes appended otherwise.
func appendZoneOffset(buf []byte, t time.Time) []byte {
	_, offset := t.Zone()
	if offset < 0 {
		buf = append(buf, '-')
		offset = -offset
	} else {
		buf = append(buf, '+')
	}

	hours := offset / 3600
	minutes := (offset % 3600) / 60
	buf = append(buf, fmt.Sprintf("%02d", hours)...)
	if minutes != 0 {
		buf = append(buf, fmt.Sprintf(":%02d", minutes)...)
	}

	return buf
}

// DecodeTimestampText decodes the text representation of a timestamp rendered
// by the backend using the given date style and field order. The location is
// applied to values carrying no explicit offset (plain timestamps); values
// carrying an offset keep it.
func DecodeTimestampText(data []byte, style DateStyle, order DateOrder, loc *time.Location) (time.Time, error) {
	s := string(data)
	switch s {
	case "infinity":
		return TimeInfinity, nil
	case "-infinity":
		return TimeNegativeInfinity, nil
	}

	if loc == nil {
		loc = time.UTC
	}

	bc := false
	if strings.HasSuffix(s, " BC") {
		bc = true
		s = strings.TrimSuffix(s, " BC")
	}

	var t time.Time
	var err error

	switch style {
	case StylePostgres:
		layouts := []string{"Mon Jan 02 15:04:05.999999 2006", "Mon 02 Jan 15:04:05.999999 2006"}
		if order == OrderDMY {
			layouts[0], layouts[1] = layouts[1], layouts[0]
		}
		t, err = parseFirst(s, loc, layouts...)
	case StyleGerman:
		t, err = parseFirst(s, loc, "02.01.2006 15:04:05.999999", "02.01.2006 15:04:05.999999 MST")
	case StyleSQL:
		if order == OrderDMY {
			t, err = parseFirst(s, loc, "02/01/2006 15:04:05.999999", "02/01/2006 15:04:05.999999 MST")
		} else {
			t, err = parseFirst(s, loc, "01/02/2006 15:04:05.999999", "01/02/2006 15:04:05.999999 MST")
		}
	default:
		t, err = parseFirst(s, loc,
			"2006-01-02 15:04:05.999999Z07:00",
			"2006-01-02 15:04:05.999999Z07",
			"2006-01-02 15:04:05.999999",
		)
	}

	if err != nil {
		return time.Time{}, newDecodeErrorf(0, "malformed timestamp: %q", data)
	}

	if bc {
		t = time.Date(-t.Year()+1, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}

	return t, nil
}

// AppendTimeOfDay appends the binary wire representation of a time value, the
// number of microseconds since midnight as an int64.
func AppendTimeOfDay(buf []byte, v time.Duration) []byte {
	return AppendInt8(buf, v.Microseconds())
}

// DecodeTimeOfDay decodes the binary wire representation of a time value.
func DecodeTimeOfDay(data []byte) (time.Duration, error) {
	micros, err := DecodeInt8(data)
	if err != nil {
		return 0, err
	}

	if micros < 0 {
		return 0, wrapDecodeError(ErrValueTooSmall, "time of day before midnight", 0)
	}
	if micros > microsecondsPerDay {
		return 0, wrapDecodeError(ErrValueTooLarge, "time of day beyond 24:00", 0)
	}

	return time.Duration(micros) * time.Microsecond, nil
}

// AppendTimeOfDayText appends the text representation of a time value,
// HH:MM:SS with a fractional part when sub-second precision is present.
func AppendTimeOfDayText(buf []byte, v time.Duration) []byte {
	micros := v.Microseconds()
	hours := micros / 3_600_000_000
	minutes := micros / 60_000_000 % 60
	seconds := micros / 1_000_000 % 60
	fraction := micros % 1_000_000

	buf = fmt.Appendf(buf, "%02d:%02d:%02d", hours, minutes, seconds)
	if fraction != 0 {
		buf = fmt.Appendf(buf, ".%06d", fraction)
		buf = []byte(strings.TrimRight(string(buf), "0"))
	}

	return buf
}

// DecodeTimeOfDayText decodes the text representation of a time value.
func DecodeTimeOfDayText(s string) (time.Duration, error) {
	micros, err := parseClock(s)
	if err != nil {
		return 0, wrapDecodeError(err, "malformed time of day", 0)
	}

	if micros < 0 {
		return 0, wrapDecodeError(ErrValueTooSmall, "time of day before midnight", 0)
	}
	if micros > microsecondsPerDay {
		return 0, wrapDecodeError(ErrValueTooLarge, "time of day beyond 24:00", 0)
	}

	return time.Duration(micros) * time.Microsecond, nil
}

func scanThree(s string, sep byte, a, b, c *int) error {
	fields := strings.SplitN(s, string(sep), 3)
	if len(fields) != 3 {
		return fmt.Errorf("expected 3 fields separated by %q", sep)
	}

	// the trailing field may carry an era suffix
	fields[2], _, _ = strings.Cut(fields[2], " ")

	for i, dst := range []*int{a, b, c} {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return err
		}
		*dst = v
	}

	return nil
}

func parseFirst(s string, loc *time.Location, layouts ...string) (time.Time, error) {
	var t time.Time
	var err error
	for _, layout := range layouts {
		t, err = time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
	}

	return t, err
}
