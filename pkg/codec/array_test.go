package codec

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestArrayRoundtrip verifies the binary array layout with a two by three
// int4 matrix containing a NULL element.
func TestArrayRoundtrip(t *testing.T) {
	t.Parallel()

	in := Array{
		Dims:    []ArrayDim{{Length: 2, LowerBound: 1}, {Length: 3, LowerBound: 1}},
		ElemOID: uint32(oid.T_int4),
		Elems: [][]byte{
			AppendInt4(nil, 1),
			AppendInt4(nil, 2),
			nil,
			AppendInt4(nil, 4),
			AppendInt4(nil, 5),
			AppendInt4(nil, 6),
		},
	}

	decoded, err := DecodeArray(AppendArray(nil, in))
	require.NoError(t, err)

	assert.Equal(t, in.Dims, decoded.Dims)
	assert.Equal(t, in.ElemOID, decoded.ElemOID)
	require.Len(t, decoded.Elems, 6)
	assert.Nil(t, decoded.Elems[2])

	v, err := DecodeInt4(decoded.Elems[5])
	require.NoError(t, err)
	assert.Equal(t, int32(6), v)
	assert.True(t, decoded.HasNull())
}

// TestArrayEmpty verifies a zero dimensional array survives the wire.
func TestArrayEmpty(t *testing.T) {
	t.Parallel()

	decoded, err := DecodeArray(AppendArray(nil, Array{ElemOID: uint32(oid.T_text)}))
	require.NoError(t, err)
	assert.Empty(t, decoded.Dims)
	assert.Empty(t, decoded.Elems)
}

// TestArrayTooManyDims verifies the dimension guard.
func TestArrayTooManyDims(t *testing.T) {
	t.Parallel()

	buf := AppendInt4(nil, 7) // ndims beyond the backend maximum of 6
	buf = AppendInt4(buf, 0)
	buf = AppendUint32(buf, uint32(oid.T_int4))

	_, err := DecodeArray(buf)
	require.Error(t, err)
}

// TestArrayText verifies quoting and parsing of the text representation.
func TestArrayText(t *testing.T) {
	t.Parallel()

	in := []any{
		[]byte("plain"),
		[]byte("with space"),
		[]byte(`quote"inside`),
		[]byte("NULL"), // the literal string must be quoted to survive
		nil,
		[]byte(""),
	}

	rendered := AppendArrayText(nil, in, ',')
	parsed, err := DecodeArrayText(rendered, ',')
	require.NoError(t, err)
	require.Len(t, parsed, 6)

	assert.Equal(t, []byte("plain"), parsed[0])
	assert.Equal(t, []byte("with space"), parsed[1])
	assert.Equal(t, []byte(`quote"inside`), parsed[2])
	assert.Equal(t, []byte("NULL"), parsed[3])
	assert.Nil(t, parsed[4])
	assert.Equal(t, []byte(""), parsed[5])
}

// TestArrayTextNested verifies multi dimensional text arrays parse into
// nested slices.
func TestArrayTextNested(t *testing.T) {
	t.Parallel()

	parsed, err := DecodeArrayText([]byte("{{1,2},{3,NULL}}"), ',')
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	first, ok := parsed[0].([]any)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), first[0])

	second, ok := parsed[1].([]any)
	require.True(t, ok)
	assert.Nil(t, second[1])
}
