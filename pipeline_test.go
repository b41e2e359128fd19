package pgcore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pgkit/pgcore"
	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
	"github.com/pgkit/pgcore/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipelineAbortUntilSync verifies the failure domain of a pipeline
// segment: the failing statement carries the backend error, every statement
// after it up to the sync point is skipped, and statements after the sync
// run normally again.
func TestPipelineAbortUntilSync(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	pipeline, err := conn.EnterPipeline()
	require.NoError(t, err)

	first := pipeline.Queue(pgcore.Statement{Query: "INSERT INTO t VALUES (1)"})
	failing := pipeline.Queue(pgcore.Statement{Query: "INSERT INTO missing VALUES (2)"})
	skipped := pipeline.Queue(pgcore.Statement{Query: "INSERT INTO t VALUES (3)"})
	sync := pipeline.Sync()
	after := pipeline.Queue(pgcore.Statement{Query: "INSERT INTO t VALUES (4)"})
	closing := pipeline.Sync()

	require.NoError(t, pgcore.Drive(pipeline.Communicate(), session, time.Time{}))

	// the backend executes the first statement, fails the second, skips the
	// third entirely and resumes after the sync point
	session.Feed(mock.NewBackend().
		ParseComplete().BindComplete().NoData().CommandComplete("INSERT 0 1").
		ParseComplete().BindComplete().
		Error("42P01", `relation "missing" does not exist`).
		ReadyForQuery('I').
		ParseComplete().BindComplete().NoData().CommandComplete("INSERT 0 1").
		ReadyForQuery('I').
		Bytes())

	require.NoError(t, pgcore.Drive(pipeline.Draining(), session, time.Time{}))

	require.True(t, first.Done())
	require.NoError(t, first.Err())
	require.Len(t, first.Results(), 1)
	assert.Equal(t, "INSERT 0 1", first.Results()[0].CommandTag)

	require.True(t, failing.Done())
	require.Error(t, failing.Err())
	var perr *psqlerr.Error
	require.True(t, errors.As(failing.Err(), &perr))
	assert.Equal(t, codes.UndefinedTable, perr.Code)

	require.True(t, skipped.Done())
	assert.True(t, errors.Is(skipped.Err(), pgcore.ErrPipelineAborted))
	require.Len(t, skipped.Results(), 1)
	assert.Equal(t, pgcore.StatusPipelineAborted, skipped.Results()[0].Status)

	require.True(t, sync.Done())
	require.NoError(t, sync.Err())
	require.Len(t, sync.Results(), 1)
	assert.Equal(t, pgcore.StatusPipelineSync, sync.Results()[0].Status)

	require.True(t, after.Done())
	require.NoError(t, after.Err())

	require.True(t, closing.Done())

	require.NoError(t, pipeline.Exit())
	assert.Equal(t, pgcore.ConnReady, conn.Status())
}

// TestPipelineBatchedWrites verifies the queued statements leave the engine
// in a single flush instead of one round trip each.
func TestPipelineBatchedWrites(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)
	session.Written.Reset()

	pipeline, err := conn.EnterPipeline()
	require.NoError(t, err)

	pipeline.Queue(pgcore.Statement{Query: "SELECT 1"})
	pipeline.Queue(pgcore.Statement{Query: "SELECT 2"})
	sync := pipeline.Sync()

	require.NoError(t, pgcore.Drive(pipeline.Communicate(), session, time.Time{}))

	written := string(session.Written.Bytes())
	assert.Contains(t, written, "SELECT 1")
	assert.Contains(t, written, "SELECT 2")
	assert.False(t, sync.Done(), "outcomes arrive only once the backend responds")

	session.Feed(mock.NewBackend().
		ParseComplete().BindComplete().NoData().CommandComplete("SELECT 1").
		ParseComplete().BindComplete().NoData().CommandComplete("SELECT 1").
		ReadyForQuery('I').
		Bytes())

	require.NoError(t, pgcore.Drive(pipeline.Draining(), session, time.Time{}))
	assert.True(t, sync.Done())
	require.NoError(t, pipeline.Exit())
}

// TestPipelineEnterRequiresIdle verifies mode transitions are guarded.
func TestPipelineEnterRequiresIdle(t *testing.T) {
	t.Parallel()

	session := mock.NewSession()
	conn := connect(t, session)

	pipeline, err := conn.EnterPipeline()
	require.NoError(t, err)

	_, err = conn.EnterPipeline()
	require.Error(t, err, "pipeline mode does not nest")

	pipeline.Queue(pgcore.Statement{Query: "SELECT 1"})
	require.Error(t, pipeline.Exit(), "exit requires a drained pipeline")
}
