package pgcore_test

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/pgkit/pgcore"
	"github.com/pgkit/pgcore/internal/mock"
	"github.com/pgkit/pgcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cancelStream struct {
	written []byte
	closed  bool
}

func (s *cancelStream) Read(p []byte) (int, error) { return 0, io.EOF }

func (s *cancelStream) Write(p []byte) (int, error) {
	s.written = append(s.written, p...)
	return len(p), nil
}

func (s *cancelStream) Close() error {
	s.closed = true
	return nil
}

// TestCancel verifies the cancel request packet travels over a dedicated
// side channel carrying the key data of the startup handshake.
func TestCancel(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	stream := &cancelStream{}
	require.NoError(t, conn.Cancel(func() (io.ReadWriteCloser, error) {
		return stream, nil
	}))

	require.Len(t, stream.written, 16)
	assert.Equal(t, uint32(16), binary.BigEndian.Uint32(stream.written[0:4]))
	assert.Equal(t, uint32(types.VersionCancel), binary.BigEndian.Uint32(stream.written[4:8]))
	assert.Equal(t, uint32(4242), binary.BigEndian.Uint32(stream.written[8:12]))
	assert.Equal(t, uint32(1337), binary.BigEndian.Uint32(stream.written[12:16]))
	assert.True(t, stream.closed, "the side channel is closed after the request")
}

// TestCancelWithoutKeyData verifies a cancel before the handshake is refused.
func TestCancelWithoutKeyData(t *testing.T) {
	t.Parallel()

	conn := pgcore.NewConn(mock.NewSession())
	err := conn.Cancel(func() (io.ReadWriteCloser, error) {
		t.Fatal("must not dial without key data")
		return nil, nil
	})
	require.Error(t, err)
}
