package pgcore_test

import (
	"testing"
	"time"

	"github.com/pgkit/pgcore"
	"github.com/pgkit/pgcore/codes"
	"github.com/pgkit/pgcore/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCopyOutStream verifies result collection pauses at the copy-out
// switch, the data chunks stream through CopyChunk and the terminal results
// are still fetched afterwards.
func TestCopyOutStream(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		CopyOutResponse(0, 2).
		CopyData([]byte("1\tone\n")).
		CopyData([]byte("2\ttwo\n")).
		CopyDone().
		CommandComplete("COPY 2").
		ReadyForQuery('I').
		Bytes())

	results, err := conn.Query(session, time.Time{}, "COPY t TO STDOUT")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, pgcore.StatusCopyOut, results[0].Status)
	assert.Len(t, results[0].Columns, 2)

	chunk, err := conn.CopyChunk(session, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []byte("1\tone\n"), chunk)

	chunk, err = conn.CopyChunk(session, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []byte("2\ttwo\n"), chunk)

	chunk, err = conn.CopyChunk(session, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, chunk, "a nil chunk ends the stream")

	op := conn.FetchingAll()
	require.NoError(t, pgcore.Drive(op, session, time.Time{}))

	terminal := op.Results()
	require.Len(t, terminal, 1)
	assert.Equal(t, "COPY 2", terminal[0].CommandTag)
	assert.Equal(t, pgcore.ConnReady, conn.Status())
}

// TestCopyInStream verifies the copy-in flow: the state switch, streaming
// chunks to the backend and collecting the completion after CopyDone.
func TestCopyInStream(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		CopyInResponse(0, 2).
		Bytes())

	results, err := conn.Query(session, time.Time{}, "COPY t FROM STDIN")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, pgcore.StatusCopyIn, results[0].Status)
	assert.Equal(t, pgcore.ConnCopyIn, conn.Status())

	session.Written.Reset()
	require.NoError(t, conn.SendCopyData(session, time.Time{}, []byte("1\tone\n")))
	require.NoError(t, conn.SendCopyData(session, time.Time{}, []byte("2\ttwo\n")))

	written := session.Written.Bytes()
	assert.Equal(t, byte('d'), written[0])

	session.Feed(mock.NewBackend().
		CommandComplete("COPY 2").
		ReadyForQuery('I').
		Bytes())

	terminal, err := conn.FinishCopy(session, time.Time{})
	require.NoError(t, err)
	require.Len(t, terminal, 1)
	assert.Equal(t, "COPY 2", terminal[0].CommandTag)
	assert.Equal(t, pgcore.ConnReady, conn.Status())
}

// TestCopyInAbort verifies a failed copy surfaces the backend error raised
// for the CopyFail message.
func TestCopyInAbort(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		CopyInResponse(0, 1).
		Bytes())

	_, err := conn.Query(session, time.Time{}, "COPY t FROM STDIN")
	require.NoError(t, err)

	session.Feed(mock.NewBackend().
		Error("57014", "COPY from stdin failed: no more rows").
		ReadyForQuery('I').
		Bytes())

	results, err := conn.AbortCopy(session, time.Time{}, "no more rows")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, pgcore.StatusFatalError, results[0].Status)
	assert.Equal(t, codes.QueryCanceled, results[0].Err.Code)

	require.Error(t, conn.SendCopyData(session, time.Time{}, nil), "copy-in has ended")
}
