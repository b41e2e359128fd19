package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRangeRoundtrip verifies the flag byte and bound layout of a bounded
// range.
func TestRangeRoundtrip(t *testing.T) {
	t.Parallel()

	in := Range{
		LowerInc: true,
		Lower:    AppendInt4(nil, 10),
		Upper:    AppendInt4(nil, 20),
		HasLower: true,
		HasUpper: true,
	}

	decoded, err := DecodeRange(AppendRange(nil, in))
	require.NoError(t, err)

	assert.True(t, decoded.LowerInc)
	assert.False(t, decoded.UpperInc)
	require.True(t, decoded.HasLower)
	require.True(t, decoded.HasUpper)

	lower, err := DecodeInt4(decoded.Lower)
	require.NoError(t, err)
	assert.Equal(t, int32(10), lower)
}

// TestRangeEmpty verifies that an empty range is a single flag byte with no
// bounds at all.
func TestRangeEmpty(t *testing.T) {
	t.Parallel()

	wire := AppendRange(nil, Range{Empty: true})
	require.Equal(t, []byte{0x01}, wire)

	decoded, err := DecodeRange(wire)
	require.NoError(t, err)
	assert.True(t, decoded.Empty)
	assert.False(t, decoded.HasLower)
}

// TestRangeInfinite verifies that infinite bounds carry no bound value.
func TestRangeInfinite(t *testing.T) {
	t.Parallel()

	in := Range{
		LowerInf: true,
		UpperInc: true,
		Upper:    AppendInt4(nil, 99),
		HasUpper: true,
	}

	decoded, err := DecodeRange(AppendRange(nil, in))
	require.NoError(t, err)
	assert.True(t, decoded.LowerInf)
	assert.False(t, decoded.HasLower)
	require.True(t, decoded.HasUpper)
	assert.True(t, decoded.UpperInc)
}
