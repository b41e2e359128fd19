package codec

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numericFromString(t *testing.T, s string) Numeric {
	t.Helper()

	dec, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return NumericFromDecimal(dec)
}

// TestNumericRoundtrip verifies the base-10000 binary encoding against its
// own decoder for a spread of scales and signs.
func TestNumericRoundtrip(t *testing.T) {
	t.Parallel()

	values := []string{
		"0",
		"1",
		"-1",
		"1.1",
		"-1.1",
		"0.0001",
		"9999",
		"10000",
		"12345.6789",
		"-0.00000001",
		"123456789012345678901234567890", // 10^29 scale magnitude
		"1000000000000000000000000000000",
	}

	for _, value := range values {
		wire := AppendNumeric(nil, numericFromString(t, value))
		decoded, err := DecodeNumeric(wire)
		require.NoError(t, err, value)
		require.Equal(t, Finite, decoded.Form, value)
		assert.True(t, numericFromString(t, value).Dec.Equal(decoded.Dec), "%s decoded as %s", value, decoded.Dec)
	}
}

// TestNumericReference verifies wire compatibility with pgtype in both
// directions: pgtype decodes our encoding and we decode pgtype's.
func TestNumericReference(t *testing.T) {
	t.Parallel()

	m := pgtype.NewMap()

	for _, value := range []string{"1.1", "-12345.6789", "10000", "0", "0.0001"} {
		var decoded pgtype.Numeric
		require.NoError(t, m.Scan(pgtype.NumericOID, pgtype.BinaryFormatCode, AppendNumeric(nil, numericFromString(t, value)), &decoded))

		driverValue, err := decoded.Value()
		require.NoError(t, err)
		assert.True(t, numericFromString(t, driverValue.(string)).Dec.Equal(numericFromString(t, value).Dec), value)

		var reference pgtype.Numeric
		require.NoError(t, reference.Scan(value))
		wire, err := m.Encode(pgtype.NumericOID, pgtype.BinaryFormatCode, reference, nil)
		require.NoError(t, err)

		ours, err := DecodeNumeric(wire)
		require.NoError(t, err)
		assert.True(t, ours.Dec.Equal(numericFromString(t, value).Dec), value)
	}
}

// TestNumericSpecials verifies that NaN and the infinities travel through
// the sign field of the binary header.
func TestNumericSpecials(t *testing.T) {
	t.Parallel()

	for _, form := range []NumericForm{NaN, PositiveInfinity, NegativeInfinity} {
		wire := AppendNumeric(nil, Numeric{Form: form})
		require.Len(t, wire, 8, "special values carry no digits")

		decoded, err := DecodeNumeric(wire)
		require.NoError(t, err)
		assert.Equal(t, form, decoded.Form)
	}
}

// TestNumericText verifies the text rendering including the special value
// spellings used by the backend.
func TestNumericText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte("1.1"), AppendNumericText(nil, numericFromString(t, "1.1")))
	assert.Equal(t, []byte("NaN"), AppendNumericText(nil, Numeric{Form: NaN}))
	assert.Equal(t, []byte("Infinity"), AppendNumericText(nil, Numeric{Form: PositiveInfinity}))
	assert.Equal(t, []byte("-Infinity"), AppendNumericText(nil, Numeric{Form: NegativeInfinity}))

	decoded, err := DecodeNumericText([]byte("-Infinity"))
	require.NoError(t, err)
	assert.Equal(t, NegativeInfinity, decoded.Form)

	decoded, err = DecodeNumericText([]byte("12345.6789"))
	require.NoError(t, err)
	assert.True(t, decoded.Dec.Equal(numericFromString(t, "12345.6789").Dec))
}

// TestNumericBigInt verifies that integers beyond 64 bits survive the wire.
func TestNumericBigInt(t *testing.T) {
	t.Parallel()

	huge, ok := new(big.Int).SetString("1000000000000000000000000000000", 10)
	require.True(t, ok)

	wire := AppendNumeric(nil, NumericFromBigInt(huge))
	decoded, err := DecodeNumeric(wire)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000000000", decoded.Dec.String())
}
