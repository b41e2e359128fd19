package pgcore

import (
	"time"
)

// Step is the outcome of advancing an operation by one step. Exactly one of
// the three outcomes applies: the operation suspended with an interest, it
// completed, or it failed.
type Step struct {
	Interest Interest
	Done     bool
	Err      error
}

func suspend(interest Interest) Step {
	return Step{Interest: interest}
}

func finished() Step {
	return Step{Done: true}
}

func failed(err error) Step {
	return Step{Err: err}
}

// Operation is a resumable protocol interaction. Step advances the operation
// as far as possible without blocking and either completes, fails, or
// suspends with the readiness interest it needs next. The first call passes
// a zero Ready value, subsequent calls pass the events reported by the
// readiness primitive.
//
// Operations are single use and must be driven to completion before another
// operation is started on the same connection.
type Operation interface {
	Step(ready Ready) Step
}

// Drive runs an operation to completion by blocking on the given waiter
// whenever the operation suspends. The zero deadline means no timeout.
func Drive(op Operation, waiter Waiter, deadline time.Time) error {
	var ready Ready

	for {
		step := op.Step(ready)
		if step.Err != nil {
			return step.Err
		}
		if step.Done {
			return nil
		}

		var err error
		ready, err = waiter.Wait(step.Interest, deadline)
		if err != nil {
			return err
		}
	}
}

// connectOp drives the startup handshake: flush the startup packet, then
// interpret backend messages until the first ReadyForQuery.
type connectOp struct {
	conn    *Conn
	started bool
}

// Connecting starts the startup handshake as a resumable operation. The
// overall deadline is enforced by the caller driving the operation.
func (c *Conn) Connecting() Operation {
	return &connectOp{conn: c}
}

func (op *connectOp) Step(ready Ready) Step {
	c := op.conn

	if !op.started {
		if err := c.queueStartup(); err != nil {
			return failed(err)
		}

		op.started = true
	}

	if ready&ReadyRead != 0 {
		if err := c.consumeInput(); err != nil {
			return failed(err)
		}
	}

	// The backend rejects a startup with an ErrorResponse before closing the
	// transport, surface it as the handshake failure.
	if result := c.takeResult(); result != nil && result.Err != nil {
		c.status = ConnBad
		return failed(result.Err)
	}

	if c.status == ConnReady {
		return finished()
	}

	if c.outbuf.Len() > 0 {
		flushed, err := c.flush()
		if err != nil {
			return failed(err)
		}
		if !flushed {
			return suspend(WaitReadWrite)
		}
	}

	return suspend(WaitRead)
}

// sendOp flushes the output buffer. Input is drained opportunistically while
// waiting for the socket to accept more bytes so a backend blocked on its
// own send buffer cannot deadlock the flush.
type sendOp struct {
	conn *Conn
}

// Sending flushes all queued requests as a resumable operation.
func (c *Conn) Sending() Operation {
	return &sendOp{conn: c}
}

func (op *sendOp) Step(ready Ready) Step {
	c := op.conn

	if ready&ReadyRead != 0 {
		if err := c.consumeInput(); err != nil {
			return failed(err)
		}
	}

	flushed, err := c.flush()
	if err != nil {
		return failed(err)
	}
	if flushed {
		return finished()
	}

	return suspend(WaitReadWrite)
}

// fetchOp consumes input until the next result is complete. A nil result
// reports that the current request produced no further results.
type fetchOp struct {
	conn   *Conn
	result *Result
}

// Fetching awaits the next result of the active request as a resumable
// operation.
func (c *Conn) Fetching() *fetchOp {
	return &fetchOp{conn: c}
}

func (op *fetchOp) Step(ready Ready) Step {
	c := op.conn

	if ready&ReadyRead != 0 {
		if err := c.consumeInput(); err != nil {
			return failed(err)
		}
	}

	if c.busy() {
		return suspend(WaitRead)
	}

	op.result = c.takeResult()
	return finished()
}

// Result returns the fetched result once the operation completed.
func (op *fetchOp) Result() *Result {
	return op.result
}

// fetchAllOp collects every result of the active request. Collection stops
// early when the session switches into a copy sub-protocol or reaches a
// pipeline sync point, those results require dedicated handling by the
// caller before fetching may continue.
type fetchAllOp struct {
	conn    *Conn
	results []*Result
}

// FetchingAll awaits all results of the active request as a resumable
// operation.
func (c *Conn) FetchingAll() *fetchAllOp {
	return &fetchAllOp{conn: c}
}

func (op *fetchAllOp) Step(ready Ready) Step {
	c := op.conn

	if ready&ReadyRead != 0 {
		if err := c.consumeInput(); err != nil {
			return failed(err)
		}
	}

	for {
		if c.busy() {
			return suspend(WaitRead)
		}

		result := c.takeResult()
		if result == nil {
			return finished()
		}

		op.results = append(op.results, result)

		switch result.Status {
		case StatusCopyIn, StatusCopyOut, StatusCopyBoth, StatusPipelineSync:
			return finished()
		}
	}
}

// Results returns the collected results once the operation completed.
func (op *fetchAllOp) Results() []*Result {
	return op.results
}
