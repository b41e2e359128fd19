package codec

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDateRoundtrip verifies the days-since-epoch binary encoding.
func TestDateRoundtrip(t *testing.T) {
	t.Parallel()

	dates := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(1969, 7, 20, 0, 0, 0, 0, time.UTC),
	}

	for _, date := range dates {
		decoded, err := DecodeDate(AppendDate(nil, date))
		require.NoError(t, err)
		assert.True(t, date.Equal(decoded), "%s decoded as %s", date, decoded)
	}
}

// TestDateInfinity verifies the sentinel values travelling as the reserved
// int32 boundaries.
func TestDateInfinity(t *testing.T) {
	t.Parallel()

	decoded, err := DecodeDate(AppendDate(nil, TimeInfinity))
	require.NoError(t, err)
	assert.True(t, decoded.Equal(TimeInfinity))

	decoded, err = DecodeDate(AppendDate(nil, TimeNegativeInfinity))
	require.NoError(t, err)
	assert.True(t, decoded.Equal(TimeNegativeInfinity))
}

// TestTimestampReference verifies the binary timestamp encoding against the
// reference encoding produced by pgtype.
func TestTimestampReference(t *testing.T) {
	t.Parallel()

	m := pgtype.NewMap()
	moment := time.Date(2026, 8, 26, 13, 37, 21, 500_000_000, time.UTC)

	want, err := m.Encode(pgtype.TimestamptzOID, pgtype.BinaryFormatCode, moment, nil)
	require.NoError(t, err)
	assert.Equal(t, want, AppendTimestamp(nil, moment))

	decoded, err := DecodeTimestamp(AppendTimestamp(nil, moment))
	require.NoError(t, err)
	assert.True(t, moment.Equal(decoded))
}

// TestTimestampTextStyles verifies rendering and parsing across the four
// DateStyle renderings.
func TestTimestampTextStyles(t *testing.T) {
	t.Parallel()

	moment := time.Date(2003, 4, 12, 4, 5, 6, 0, time.UTC)

	tests := map[string]struct {
		style DateStyle
		order DateOrder
		want  string
	}{
		"iso":          {StyleISO, OrderMDY, "2003-04-12 04:05:06+00"},
		"german":       {StyleGerman, OrderMDY, "12.04.2003 04:05:06"},
		"sql mdy":      {StyleSQL, OrderMDY, "04/12/2003 04:05:06"},
		"sql dmy":      {StyleSQL, OrderDMY, "12/04/2003 04:05:06"},
		"postgres mdy": {StylePostgres, OrderMDY, "Sat Apr 12 04:05:06 2003"},
		"postgres dmy": {StylePostgres, OrderDMY, "Sat 12 Apr 04:05:06 2003"},
	}

	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			withZone := test.style == StyleISO
			rendered := AppendTimestampText(nil, moment, test.style, test.order, withZone)
			assert.Equal(t, test.want, string(rendered))

			parsed, err := DecodeTimestampText(rendered, test.style, test.order, time.UTC)
			require.NoError(t, err)
			assert.True(t, moment.Equal(parsed), "parsed %s", parsed)
		})
	}
}

// TestTimestampTextInfinity verifies the special spellings.
func TestTimestampTextInfinity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "infinity", string(AppendTimestampText(nil, TimeInfinity, StyleISO, OrderMDY, true)))

	parsed, err := DecodeTimestampText([]byte("-infinity"), StyleISO, OrderMDY, time.UTC)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(TimeNegativeInfinity))
}

// TestParseDateStyle verifies parsing of the DateStyle session parameter.
func TestParseDateStyle(t *testing.T) {
	t.Parallel()

	style, order := ParseDateStyle("ISO, MDY")
	assert.Equal(t, StyleISO, style)
	assert.Equal(t, OrderMDY, order)

	style, order = ParseDateStyle("German, DMY")
	assert.Equal(t, StyleGerman, style)
	assert.Equal(t, OrderDMY, order)

	style, order = ParseDateStyle("bogus")
	assert.Equal(t, StyleISO, style)
	assert.Equal(t, OrderMDY, order)
}

// TestTimeOfDay verifies the microseconds-since-midnight encoding and its
// boundaries.
func TestTimeOfDay(t *testing.T) {
	t.Parallel()

	v := 13*time.Hour + 37*time.Minute + 21*time.Second + 123456*time.Microsecond
	decoded, err := DecodeTimeOfDay(AppendTimeOfDay(nil, v))
	require.NoError(t, err)
	assert.Equal(t, v, decoded)

	_, err = DecodeTimeOfDay(AppendInt8(nil, -1))
	assert.ErrorIs(t, err, ErrValueTooSmall)

	_, err = DecodeTimeOfDay(AppendInt8(nil, microsecondsPerDay+1))
	assert.ErrorIs(t, err, ErrValueTooLarge)

	assert.Equal(t, "13:37:21.123456", string(AppendTimeOfDayText(nil, v)))

	parsed, err := DecodeTimeOfDayText("13:37:21.123456")
	require.NoError(t, err)
	assert.Equal(t, v, parsed)
}
