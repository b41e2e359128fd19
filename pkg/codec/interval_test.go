package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntervalRoundtrip verifies the three field binary layout.
func TestIntervalRoundtrip(t *testing.T) {
	t.Parallel()

	in := Interval{Micros: 3_723_000_000, Days: 2, Months: 14}
	decoded, err := DecodeInterval(AppendInterval(nil, in))
	require.NoError(t, err)
	assert.Equal(t, in, decoded)
}

// TestIntervalText verifies rendering and parsing of the verbose text form.
func TestIntervalText(t *testing.T) {
	t.Parallel()

	in := Interval{Micros: 3_723_000_000, Days: 2, Months: 14}
	rendered := AppendIntervalText(nil, in)

	parsed, err := DecodeIntervalText(rendered)
	require.NoError(t, err)
	assert.Equal(t, in, parsed)

	parsed, err = DecodeIntervalText([]byte("1 year 2 mons 3 days 04:05:06.5"))
	require.NoError(t, err)
	assert.Equal(t, Interval{Months: 14, Days: 3, Micros: 4*3_600_000_000 + 5*60_000_000 + 6_500_000}, parsed)
}
