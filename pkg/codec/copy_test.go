package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCopyBinaryRoundtrip verifies header, rows and trailer of a binary
// copy stream.
func TestCopyBinaryRoundtrip(t *testing.T) {
	t.Parallel()

	stream := AppendCopyHeader(nil)
	stream = AppendCopyRow(stream, [][]byte{AppendInt4(nil, 1), []byte("one")})
	stream = AppendCopyRow(stream, [][]byte{AppendInt4(nil, 2), nil})
	stream = AppendInt2(stream, -1)

	require.Equal(t, CopySignature, stream[:len(CopySignature)])

	// skip signature, flags and extension length
	rest := stream[len(CopySignature)+8:]

	row, rest, err := DecodeCopyRow(rest)
	require.NoError(t, err)
	require.Len(t, row, 2)
	assert.Equal(t, []byte("one"), row[1])

	row, rest, err = DecodeCopyRow(rest)
	require.NoError(t, err)
	require.Len(t, row, 2)
	assert.Nil(t, row[1])

	row, rest, err = DecodeCopyRow(rest)
	require.NoError(t, err)
	assert.Nil(t, row, "field count of -1 is the stream trailer")
	assert.Empty(t, rest)
}

// TestCopyTextRoundtrip verifies delimiters, escapes and the NULL marker of
// a text copy stream.
func TestCopyTextRoundtrip(t *testing.T) {
	t.Parallel()

	fields := [][]byte{
		[]byte("plain"),
		[]byte("tab\there"),
		[]byte("line\nbreak"),
		[]byte(`back\slash`),
		nil,
	}

	row := AppendCopyRowText(nil, fields)
	assert.Equal(t, byte('\n'), row[len(row)-1])

	decoded, err := DecodeCopyRowText(row)
	require.NoError(t, err)
	require.Len(t, decoded, 5)

	assert.Equal(t, []byte("tab\there"), decoded[1])
	assert.Equal(t, []byte("line\nbreak"), decoded[2])
	assert.Equal(t, []byte(`back\slash`), decoded[3])
	assert.Nil(t, decoded[4])
}

// TestCopyTextDanglingEscape verifies malformed escapes are rejected.
func TestCopyTextDanglingEscape(t *testing.T) {
	t.Parallel()

	_, err := DecodeCopyRowText([]byte("broken\\"))
	require.Error(t, err)
}
