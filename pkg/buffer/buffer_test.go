package buffer

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/pgkit/pgcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriterFraming verifies the length prefix of typed and untyped frames.
func TestWriterFraming(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	writer := NewWriter(slog.Default(), &out)

	writer.Start(types.ClientSimpleQuery)
	writer.AddString("SELECT 1")
	writer.AddNullTerminate()
	require.NoError(t, writer.End())

	frame := out.Bytes()
	require.Len(t, frame, 14)
	assert.Equal(t, byte('Q'), frame[0])
	assert.Equal(t, []byte{0, 0, 0, 13}, frame[1:5])
	assert.Equal(t, "SELECT 1", string(frame[5:13]))
	assert.Equal(t, byte(0), frame[13])

	out.Reset()
	writer.StartUntyped()
	writer.AddInt32(int32(types.Version30))
	require.NoError(t, writer.End())

	frame = out.Bytes()
	require.Len(t, frame, 8)
	assert.Equal(t, []byte{0, 0, 0, 8}, frame[0:4])
}

// TestMsgReaderCursor verifies the cursor accessors over a framed body.
func TestMsgReaderCursor(t *testing.T) {
	t.Parallel()

	body := []byte{'n', 'a', 'm', 'e', 0, 0x01, 0x00, 0x00, 0x00, 0x2a, 0xff}
	reader := NewMsgReader(body)

	s, err := reader.GetString()
	require.NoError(t, err)
	assert.Equal(t, "name", s)

	b, err := reader.GetByte()
	require.NoError(t, err)
	assert.Equal(t, byte(1), b)

	v, err := reader.GetInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	assert.Equal(t, 1, reader.Remaining())

	raw, err := reader.GetBytes(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff}, raw)

	_, err = reader.GetUint16()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

// TestMsgReaderMissingTerminator verifies a string without terminator is
// rejected instead of running off the body.
func TestMsgReaderMissingTerminator(t *testing.T) {
	t.Parallel()

	reader := NewMsgReader([]byte("unterminated"))
	_, err := reader.GetString()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingNulTerminator))
}

// TestMsgReaderNullValue verifies the NULL length convention of GetBytes.
func TestMsgReaderNullValue(t *testing.T) {
	t.Parallel()

	reader := NewMsgReader(nil)
	raw, err := reader.GetBytes(-1)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

// TestMsgReaderNegativeLength verifies negative lengths other than the NULL
// sentinel are rejected as corrupted framing instead of slicing out of range.
func TestMsgReaderNegativeLength(t *testing.T) {
	t.Parallel()

	reader := NewMsgReader([]byte{0x01, 0x02})
	_, err := reader.GetBytes(-2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

// TestMessageSizeExceeded verifies size violations carry their limits.
func TestMessageSizeExceeded(t *testing.T) {
	t.Parallel()

	max := DefaultBufferSize
	size := max + 1024

	err := NewMessageSizeExceeded(max, size)
	require.True(t, errors.Is(err, ErrMessageSizeExceeded))

	exceeded, has := UnwrapMessageSizeExceeded(err)
	require.True(t, has)
	assert.Equal(t, max, exceeded.Max)
	assert.Equal(t, size, exceeded.Size)
}
