package pgcore

import (
	"errors"
	"time"

	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
)

// copyOutOp awaits the next copy-out data chunk. A nil chunk reports the end
// of the copy stream, the terminal results still have to be fetched.
type copyOutOp struct {
	conn  *Conn
	chunk []byte
}

// ReceivingCopy awaits the next copy-out chunk as a resumable operation.
func (c *Conn) ReceivingCopy() *copyOutOp {
	return &copyOutOp{conn: c}
}

func (op *copyOutOp) Step(ready Ready) Step {
	c := op.conn

	if ready&ReadyRead != 0 {
		if err := c.consumeInput(); err != nil {
			return failed(err)
		}
	}

	if len(c.copyChunks) > 0 {
		op.chunk = c.copyChunks[0]
		c.copyChunks = c.copyChunks[1:]
		return finished()
	}

	if c.copyDone || (c.status != ConnCopyOut && c.status != ConnCopyBoth) {
		return finished()
	}

	return suspend(WaitRead)
}

// Chunk returns the received chunk once the operation completed, nil at the
// end of the stream.
func (op *copyOutOp) Chunk() []byte {
	return op.chunk
}

// CopyChunk receives the next copy-out chunk, blocking on the waiter. A nil
// chunk reports the end of the stream.
func (c *Conn) CopyChunk(waiter Waiter, deadline time.Time) ([]byte, error) {
	op := c.ReceivingCopy()
	if err := Drive(op, waiter, deadline); err != nil {
		return nil, err
	}

	return op.chunk, nil
}

// SendCopyData streams a single copy-in chunk to the backend, blocking on
// the waiter until the chunk has been written.
func (c *Conn) SendCopyData(waiter Waiter, deadline time.Time, chunk []byte) error {
	if c.status != ConnCopyIn && c.status != ConnCopyBoth {
		err := errors.New("connection is not inside a copy-in stream")
		return psqlerr.WithCode(err, codes.ObjectNotInPrerequisiteState)
	}

	if err := c.QueueCopyData(chunk); err != nil {
		return err
	}

	return Drive(c.Sending(), waiter, deadline)
}

// FinishCopy ends a copy-in stream and collects the terminal results: the
// copy statement completion followed by ReadyForQuery outside a pipeline.
func (c *Conn) FinishCopy(waiter Waiter, deadline time.Time) ([]*Result, error) {
	if err := c.QueueCopyDone(); err != nil {
		return nil, err
	}

	return c.roundtrip(waiter, deadline)
}

// AbortCopy fails a copy-in stream with the given reason and collects the
// resulting error response.
func (c *Conn) AbortCopy(waiter Waiter, deadline time.Time, reason string) ([]*Result, error) {
	if err := c.QueueCopyFail(reason); err != nil {
		return nil, err
	}

	return c.roundtrip(waiter, deadline)
}
