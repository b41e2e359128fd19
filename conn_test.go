package pgcore_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lib/pq/oid"
	"github.com/neilotoole/slogt"
	"github.com/pgkit/pgcore"
	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
	"github.com/pgkit/pgcore/internal/mock"
	"github.com/pgkit/pgcore/pkg/codec"
	"github.com/pgkit/pgcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handshake returns the message stream of a successful startup.
func handshake() []byte {
	return mock.NewBackend().
		AuthOK().
		ParameterStatus("server_version", "16.2").
		ParameterStatus("DateStyle", "ISO, MDY").
		BackendKeyData(4242, 1337).
		ReadyForQuery('I').
		Bytes()
}

func connect(t *testing.T, session *mock.Session) *pgcore.Conn {
	t.Helper()

	session.Feed(handshake())
	conn, err := pgcore.Connect(session, session, time.Time{},
		pgcore.WithLogger(slogt.New(t)),
		pgcore.WithUser("tester"),
		pgcore.WithDatabase("testdb"),
	)

	require.NoError(t, err)
	return conn
}

// TestConnectHandshake verifies the startup round trip: the startup packet
// on the wire and the session state collected from the backend responses.
func TestConnectHandshake(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	assert.Equal(t, pgcore.ConnReady, conn.Status())
	assert.Equal(t, uint32(4242), conn.BackendPID())
	assert.Equal(t, "16.2", conn.Parameter("server_version"))

	written := session.Written.Bytes()
	require.Greater(t, len(written), 8)

	// the startup packet leads with its length and the protocol version
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x00}, written[4:8])
	assert.Contains(t, string(written), "user")
	assert.Contains(t, string(written), "tester")
}

// TestConnectRejected verifies a backend refusal surfaces as the handshake
// error including the SQLSTATE code.
func TestConnectRejected(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	session.Feed(mock.NewBackend().
		Error("28000", `role "tester" does not exist`).
		Bytes())

	_, err := pgcore.Connect(session, session, time.Time{}, pgcore.WithLogger(slogt.New(t)))
	require.Error(t, err)

	var perr *psqlerr.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, codes.InvalidAuthorizationSpecification, perr.Code)
}

// TestConnectDeadline verifies a silent backend resolves into a timeout
// through the waiter instead of a busy poll.
func TestConnectDeadline(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	session.Feed(mock.NewBackend().AuthOK().Bytes())

	_, err := pgcore.Connect(session, session, time.Now().Add(time.Millisecond), pgcore.WithLogger(slogt.New(t)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded))
	assert.NotEmpty(t, session.Waits, "the operation must suspend, not spin")
}

// TestSimpleQuery verifies a simple protocol round trip into a result with
// rows and a command tag.
func TestSimpleQuery(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		RowDescription(mock.Column{Name: "name", OID: uint32(oid.T_text)}).
		DataRow([]byte("alpha")).
		Notice("01000", "this result is entirely fabricated").
		DataRow([]byte("beta")).
		CommandComplete("SELECT 2").
		ReadyForQuery('I').
		Bytes())

	results, err := conn.Query(session, time.Time{}, "SELECT name FROM things")
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, pgcore.StatusTuplesOK, result.Status)
	assert.Equal(t, "SELECT 2", result.CommandTag)
	require.Equal(t, 2, result.Tuples())
	assert.Equal(t, []byte("beta"), result.Value(1, 0))

	rows, err := conn.Types().LoadResult(result)
	require.NoError(t, err)
	assert.Equal(t, "alpha", rows[0][0])
}

// TestQueryBackendError verifies a failed statement surfaces as a fatal
// result carrying the backend error.
func TestQueryBackendError(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		Error("42P01", `relation "missing" does not exist`).
		ReadyForQuery('I').
		Bytes())

	results, err := conn.Query(session, time.Time{}, "SELECT * FROM missing")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, pgcore.StatusFatalError, results[0].Status)
	require.NotNil(t, results[0].Err)
	assert.Equal(t, codes.UndefinedTable, results[0].Err.Code)
	assert.Equal(t, pgcore.ConnReady, conn.Status(), "a statement error does not poison the session")
}

// TestExecuteExtended verifies the extended protocol round trip including
// parameter adaptation.
func TestExecuteExtended(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)
	session.Written.Reset()

	session.Feed(mock.NewBackend().
		ParseComplete().
		BindComplete().
		RowDescription(mock.Column{Name: "id", OID: uint32(oid.T_int4), Format: 1}).
		DataRow(codec.AppendInt4(nil, 7)).
		CommandComplete("SELECT 1").
		ReadyForQuery('I').
		Bytes())

	result, err := conn.Execute(session, time.Time{}, "SELECT id FROM things WHERE id = $1", int64(7))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, pgcore.StatusTuplesOK, result.Status)

	rows, err := conn.Types().LoadResult(result)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rows[0][0])

	// Parse, Bind, Describe, Execute, Sync in one contiguous write
	written := session.Written.Bytes()
	require.NotEmpty(t, written)
	assert.Equal(t, byte('P'), written[0])
	assert.Contains(t, string(written), "SELECT id FROM things WHERE id = $1")
	assert.Equal(t, byte('S'), written[len(written)-5])
}

// TestMalformedFieldLength verifies a corrupted DataRow field length fails
// the request as a protocol error instead of crashing the engine.
func TestMalformedFieldLength(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	// a DataRow claiming a field length of -2, which is no valid length and
	// not the NULL sentinel
	malformed := []byte{'D', 0, 0, 0, 10, 0, 1, 0xff, 0xff, 0xff, 0xfe}

	session.Feed(mock.NewBackend().
		RowDescription(mock.Column{Name: "name", OID: uint32(oid.T_text)}).
		Bytes())
	session.Feed(malformed)

	_, err := conn.Query(session, time.Time{}, "SELECT name FROM things")
	require.Error(t, err)
	assert.Equal(t, pgcore.ConnBad, conn.Status())
}

// TestEmptyQuery verifies the empty query response maps to its own status.
func TestEmptyQuery(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		EmptyQuery().
		ReadyForQuery('I').
		Bytes())

	results, err := conn.Query(session, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, pgcore.StatusEmptyQuery, results[0].Status)
}

// TestNotifications verifies asynchronous notifications are collected
// regardless of the active operation.
func TestNotifications(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		Notification(99, "events", "payload").
		CommandComplete("LISTEN").
		ReadyForQuery('I').
		Bytes())

	_, err := conn.Query(session, time.Time{}, "LISTEN events")
	require.NoError(t, err)

	notifications := conn.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, uint32(99), notifications[0].PID)
	assert.Equal(t, "events", notifications[0].Channel)
	assert.Equal(t, "payload", notifications[0].Payload)
	assert.Empty(t, conn.Notifications(), "collecting drains the queue")
}

// TestTxStatus verifies the transaction status tracks ReadyForQuery.
func TestTxStatus(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	session.Feed(mock.NewBackend().
		CommandComplete("BEGIN").
		ReadyForQuery('T').
		Bytes())

	_, err := conn.Query(session, time.Time{}, "BEGIN")
	require.NoError(t, err)
	assert.Equal(t, types.TxActive, conn.TxStatus())
}
