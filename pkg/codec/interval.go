package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is the host representation of the interval type. The three fields
// mirror the wire layout, months and days are kept separate from the
// microsecond part because their length in absolute time depends on the
// calendar.
type Interval struct {
	Micros int64
	Days   int32
	Months int32
}

// AppendInterval appends the binary wire representation of the given
// interval: microseconds (int64), days (int32) and months (int32).
func AppendInterval(buf []byte, v Interval) []byte {
	buf = AppendInt8(buf, v.Micros)
	buf = AppendInt4(buf, v.Days)
	return AppendInt4(buf, v.Months)
}

// DecodeInterval decodes the binary wire representation of an interval.
func DecodeInterval(data []byte) (Interval, error) {
	if len(data) != 16 {
		return Interval{}, newDecodeErrorf(0, "interval requires 16 bytes, got %d", len(data))
	}

	micros, _ := DecodeInt8(data[0:8])
	days, _ := DecodeInt4(data[8:12])
	months, _ := DecodeInt4(data[12:16])

	return Interval{Micros: micros, Days: days, Months: months}, nil
}

// AppendIntervalText appends the text representation of the given interval in
// the postgres output style ("1 mon 2 days 03:04:05.000006").
func AppendIntervalText(buf []byte, v Interval) []byte {
	var parts []string
	if v.Months != 0 {
		parts = append(parts, fmt.Sprintf("%d mons", v.Months))
	}
	if v.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d days", v.Days))
	}

	micros := v.Micros
	negative := micros < 0
	if negative {
		micros = -micros
	}

	hours := micros / 3_600_000_000
	micros -= hours * 3_600_000_000
	minutes := micros / 60_000_000
	micros -= minutes * 60_000_000
	seconds := micros / 1_000_000
	micros -= seconds * 1_000_000

	clock := fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	if micros != 0 {
		clock += strings.TrimRight(fmt.Sprintf(".%06d", micros), "0")
	}
	if negative {
		clock = "-" + clock
	}

	parts = append(parts, clock)
	return append(buf, strings.Join(parts, " ")...)
}

// DecodeIntervalText decodes the postgres output style text representation of
// an interval.
func DecodeIntervalText(data []byte) (Interval, error) {
	var out Interval

	fields := strings.Fields(string(data))
	for i := 0; i < len(fields); i++ {
		field := fields[i]

		if strings.Contains(field, ":") {
			micros, err := parseClock(field)
			if err != nil {
				return Interval{}, newDecodeErrorf(0, "malformed interval: %q", data)
			}
			out.Micros = micros
			continue
		}

		if i+1 >= len(fields) {
			return Interval{}, newDecodeErrorf(0, "malformed interval: %q", data)
		}

		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return Interval{}, newDecodeErrorf(0, "malformed interval: %q", data)
		}

		i++
		switch strings.TrimSuffix(fields[i], "s") {
		case "year":
			out.Months += int32(n * 12)
		case "mon":
			out.Months += int32(n)
		case "day":
			out.Days += int32(n)
		default:
			return Interval{}, newDecodeErrorf(0, "malformed interval: %q", data)
		}
	}

	return out, nil
}

func parseClock(s string) (int64, error) {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS, got %q", s)
	}

	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	micros := hours*3_600_000_000 + minutes*60_000_000 + int64(seconds*1_000_000)
	if negative {
		micros = -micros
	}

	return micros, nil
}
