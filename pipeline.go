package pgcore

import (
	"errors"
	"fmt"

	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
)

// ErrPipelineAborted reports a statement which was skipped because an
// earlier statement inside the same pipeline segment failed. The abort lasts
// until the next synchronization point.
var ErrPipelineAborted = psqlerr.WithCode(
	errors.New("statement skipped, pipeline aborted until the next synchronization point"),
	codes.TransactionResolutionUnknown)

// pipelineHighWater bounds the amount of serialized but unflushed request
// bytes. Once reached, queued statements stay unserialized until the socket
// drains, keeping memory usage flat for arbitrarily long pipelines.
const pipelineHighWater = 1 << 16 // 65536 bytes

// PipelineSlot is the placeholder handed out when a statement is queued on a
// pipeline. It is filled once the backend responses for the statement have
// been collected, or once the statement is known to be skipped.
type PipelineSlot struct {
	sync    bool
	done    bool
	results []*Result
	err     error
}

// Done reports whether the slot received its outcome.
func (s *PipelineSlot) Done() bool {
	return s.done
}

// Results returns the collected results of the statement.
func (s *PipelineSlot) Results() []*Result {
	return s.results
}

// Err returns the failure attributed to this statement: the backend error
// for the statement which broke the segment, ErrPipelineAborted for every
// statement skipped after it.
func (s *PipelineSlot) Err() error {
	return s.err
}

type pipelineEntry struct {
	serialize func() error
	slot      *PipelineSlot
}

// Pipeline coordinates batched extended-protocol statements over a single
// connection. Statements are queued without waiting for their results,
// explicit synchronization points demarcate failure domains: an error fails
// every later statement up to the next sync point, which resets the session
// for the statements after it.
type Pipeline struct {
	conn  *Conn
	queue []pipelineEntry
	slots []*PipelineSlot
}

// EnterPipeline switches the connection into pipeline mode. The connection
// must be established and idle.
func (c *Conn) EnterPipeline() (*Pipeline, error) {
	if c.status != ConnReady {
		err := fmt.Errorf("connection is %s, cannot enter pipeline mode", c.status)
		return nil, psqlerr.WithCode(err, codes.ObjectNotInPrerequisiteState)
	}
	if c.pipelineMode {
		return nil, psqlerr.WithCode(errors.New("connection is already in pipeline mode"), codes.ObjectNotInPrerequisiteState)
	}

	c.pipelineMode = true
	c.pipelineAborted = false
	return &Pipeline{conn: c}, nil
}

// Exit leaves pipeline mode. Every queued statement must have received its
// outcome, drain the pipeline first.
func (p *Pipeline) Exit() error {
	if p.outstanding() > 0 || len(p.queue) > 0 {
		return psqlerr.WithCode(errors.New("pipeline still has outstanding statements"), codes.ObjectNotInPrerequisiteState)
	}

	p.conn.pipelineMode = false
	p.conn.pipelineAborted = false
	p.conn.requestPending = false
	return nil
}

// Queue schedules a statement for execution. The statement is serialized
// and written during the next Communicate round, its outcome lands in the
// returned slot.
func (p *Pipeline) Queue(stmt Statement) *PipelineSlot {
	slot := &PipelineSlot{}
	p.slots = append(p.slots, slot)
	p.queue = append(p.queue, pipelineEntry{
		serialize: func() error { return p.conn.QueueStatement(stmt) },
		slot:      slot,
	})

	return slot
}

// Sync schedules a synchronization point. The slot completes once the
// backend acknowledges the sync, which also ends any abort in progress.
func (p *Pipeline) Sync() *PipelineSlot {
	slot := &PipelineSlot{sync: true}
	p.slots = append(p.slots, slot)
	p.queue = append(p.queue, pipelineEntry{
		serialize: func() error { return p.conn.QueueSync() },
		slot:      slot,
	})

	return slot
}

// outstanding counts the slots which have not received their outcome yet.
func (p *Pipeline) outstanding() int {
	count := 0
	for _, slot := range p.slots {
		if !slot.done {
			count++
		}
	}

	return count
}

// attribute assigns completed results to their slots in submission order.
// Statements skipped by the backend after a failure produce no responses at
// all, their slots are failed when the sync point which ends the abort is
// observed.
func (p *Pipeline) attribute() {
	for {
		result := p.conn.takeResult()
		if result == nil {
			return
		}

		if result.Status == StatusPipelineSync {
			for _, slot := range p.slots {
				if slot.done {
					continue
				}
				if slot.sync {
					slot.done = true
					slot.results = append(slot.results, result)
					break
				}

				p.abortSlot(slot)
			}

			continue
		}

		slot := p.nextStatementSlot()
		if slot == nil {
			// A response with no queued statement left is a protocol level
			// desynchronization, poison the connection.
			p.conn.status = ConnBad
			return
		}

		slot.results = append(slot.results, result)
		if result.Status == StatusFatalError {
			slot.done = true
			slot.err = result.Err
		} else {
			slot.done = true
		}
	}
}

// nextStatementSlot returns the first unfinished non-sync slot before the
// next sync point.
func (p *Pipeline) nextStatementSlot() *PipelineSlot {
	for _, slot := range p.slots {
		if slot.done {
			continue
		}
		if slot.sync {
			return nil
		}

		return slot
	}

	return nil
}

func (p *Pipeline) abortSlot(slot *PipelineSlot) {
	slot.done = true
	slot.err = ErrPipelineAborted
	flat := psqlerr.Flatten(ErrPipelineAborted)
	slot.results = append(slot.results, &Result{
		Status: StatusPipelineAborted,
		Err:    &flat,
	})
}

// communicateOp interleaves writing queued statements with reading their
// responses. Reads are drained before writes within every round so a
// backend blocked on its own send buffer cannot deadlock the batch.
type communicateOp struct {
	pipeline *Pipeline
	started  bool
}

// Communicate flushes the queued statements as a resumable operation. It
// completes once every queued statement has been written, responses which
// arrive along the way are attributed to their slots immediately. Remaining
// responses are collected by Draining.
func (p *Pipeline) Communicate() Operation {
	return &communicateOp{pipeline: p}
}

func (op *communicateOp) Step(ready Ready) Step {
	p := op.pipeline
	c := p.conn

	if ready&ReadyRead != 0 {
		if err := c.consumeInput(); err != nil {
			return failed(err)
		}

		p.attribute()
	}

	if ready&ReadyWrite != 0 || !op.started {
		op.started = true

		for len(p.queue) > 0 && c.outbuf.Len() < pipelineHighWater {
			entry := p.queue[0]
			p.queue = p.queue[1:]

			// Statements queued behind a failure are skipped locally, only
			// the sync which ends the abort still goes to the wire.
			if c.pipelineAborted && !entry.slot.sync {
				p.abortSlot(entry.slot)
				continue
			}

			if err := entry.serialize(); err != nil {
				return failed(err)
			}
		}

		flushed, err := c.flush()
		if err != nil {
			return failed(err)
		}

		if flushed && len(p.queue) == 0 {
			return finished()
		}
	}

	return suspend(WaitReadWrite)
}

// drainOp consumes input until every queued statement received its outcome.
type drainOp struct {
	pipeline *Pipeline
}

// Draining awaits the outcome of every statement written so far as a
// resumable operation.
func (p *Pipeline) Draining() Operation {
	return &drainOp{pipeline: p}
}

func (op *drainOp) Step(ready Ready) Step {
	p := op.pipeline

	if ready&ReadyRead != 0 {
		if err := p.conn.consumeInput(); err != nil {
			return failed(err)
		}

		p.attribute()
	}

	if p.conn.status == ConnBad {
		return failed(psqlerr.WithCode(errors.New("pipeline desynchronized"), codes.ProtocolViolation))
	}

	if p.outstanding() == 0 {
		return finished()
	}

	return suspend(WaitRead)
}
