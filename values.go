package pgcore

import (
	"time"

	"github.com/lib/pq/oid"
)

// Date marks a time.Time which adapts as a date rather than a timestamp.
// Only the year, month and day are dumped. The sentinel values
// codec.TimeInfinity and codec.TimeNegativeInfinity travel as the special infinite
// dates.
type Date struct {
	time.Time
}

// NewDate returns the date of the given moment in its location.
func NewDate(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// RangeValue is the host representation of a range. The bounds are host
// values adapted through the registry using the subtype of the range oid.
type RangeValue struct {
	OID      oid.Oid
	Empty    bool
	Lower    any
	Upper    any
	LowerInc bool
	UpperInc bool
	LowerInf bool
	UpperInf bool
}

// Composite is the host representation of a composite record. Fields and
// FieldOIDs run in parallel, a nil field represents NULL. Values dump and
// load with the anonymous record oid, the backend resolves the concrete row
// type from context.
type Composite struct {
	FieldOIDs []oid.Oid
	Fields    []any
}

// rangeElemOIDs maps the built-in range types to their subtype.
var rangeElemOIDs = map[oid.Oid]oid.Oid{
	oid.T_int4range: oid.T_int4,
	oid.T_int8range: oid.T_int8,
	oid.T_numrange:  oid.T_numeric,
	oid.T_tsrange:   oid.T_timestamp,
	oid.T_tstzrange: oid.T_timestamptz,
	oid.T_daterange: oid.T_date,
}

// rangeOIDKeys assigns every built-in range type a stable upgrade class.
var rangeOIDKeys = map[oid.Oid]byte{
	oid.T_int4range: 1,
	oid.T_int8range: 2,
	oid.T_numrange:  3,
	oid.T_tsrange:   4,
	oid.T_tstzrange: 5,
	oid.T_daterange: 6,
}

// elemToArrayOIDs maps element types to their array type for slices dumped
// with an inferred element dumper.
var elemToArrayOIDs = map[oid.Oid]oid.Oid{
	oid.T_bool:        oid.T__bool,
	oid.T_int2:        oid.T__int2,
	oid.T_int4:        oid.T__int4,
	oid.T_int8:        oid.T__int8,
	oid.T_float4:      oid.T__float4,
	oid.T_float8:      oid.T__float8,
	oid.T_text:        oid.T__text,
	oid.T_bytea:       oid.T__bytea,
	oid.T_numeric:     oid.T__numeric,
	oid.T_date:        oid.T__date,
	oid.T_timestamp:   oid.T__timestamp,
	oid.T_timestamptz: oid.T__timestamptz,
	oid.T_interval:    oid.T__interval,
}
