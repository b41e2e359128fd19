package codec

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntRoundtrip verifies the binary integer encodings against their own
// decoders and against the reference encoding produced by pgtype.
func TestIntRoundtrip(t *testing.T) {
	t.Parallel()

	m := pgtype.NewMap()

	reference, err := m.Encode(pgtype.Int4OID, pgtype.BinaryFormatCode, int32(-421337), nil)
	require.NoError(t, err)
	assert.Equal(t, reference, AppendInt4(nil, -421337))

	reference, err = m.Encode(pgtype.Int8OID, pgtype.BinaryFormatCode, int64(5_000_000_000), nil)
	require.NoError(t, err)
	assert.Equal(t, reference, AppendInt8(nil, 5_000_000_000))

	v2, err := DecodeInt2(AppendInt2(nil, -32768))
	require.NoError(t, err)
	assert.Equal(t, int16(-32768), v2)

	v4, err := DecodeInt4(AppendInt4(nil, 1<<30))
	require.NoError(t, err)
	assert.Equal(t, int32(1<<30), v4)

	v8, err := DecodeInt8(AppendInt8(nil, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v8)
}

// TestIntWidth verifies the magnitude ladder picking the narrowest integer
// type which fits a value.
func TestIntWidth(t *testing.T) {
	t.Parallel()

	tests := map[int64]int{
		0:            2,
		5:            2,
		32767:        2,
		-32768:       2,
		32768:        4,
		50000:        4,
		-2147483648:  4,
		2147483648:   8,
		5000000000:   8,
		-5000000000:  8,
	}

	for value, width := range tests {
		assert.Equal(t, width, IntWidth(value), "width of %d", value)
	}
}

// TestDecodeIntTextRange verifies that out of range text integers surface
// the dedicated boundary errors.
func TestDecodeIntTextRange(t *testing.T) {
	t.Parallel()

	_, err := DecodeIntText([]byte("9223372036854775808"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValueTooLarge))

	_, err = DecodeIntText([]byte("-9223372036854775809"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValueTooSmall))

	v, err := DecodeIntText([]byte("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

// TestDecodeIntTruncated verifies that short buffers are rejected instead of
// being padded.
func TestDecodeIntTruncated(t *testing.T) {
	t.Parallel()

	_, err := DecodeInt4([]byte{0x01, 0x02})
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}
