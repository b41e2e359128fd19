package pgcore

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// ErrWouldBlock is returned by a Transport when the requested operation
// cannot make progress without blocking. The caller is expected to suspend
// the active operation and resume it once the readiness primitive reports
// the socket ready again.
var ErrWouldBlock = errors.New("pgcore: operation would block")

// Transport is the non-blocking byte stream the engine drives. Read and
// Write must never block: when no bytes can be moved they return
// ErrWouldBlock instead. The engine itself never sleeps on a transport, all
// waiting happens through a Waiter.
type Transport interface {
	io.ReadWriteCloser
}

// Interest describes which readiness events an operation is waiting for.
type Interest int8

const (
	// WaitRead suspends until the transport is readable.
	WaitRead Interest = 1 << iota
	// WaitWrite suspends until the transport is writable.
	WaitWrite
	// WaitReadWrite suspends until the transport is readable or writable.
	WaitReadWrite = WaitRead | WaitWrite
)

func (i Interest) String() string {
	switch i {
	case WaitRead:
		return "read"
	case WaitWrite:
		return "write"
	case WaitReadWrite:
		return "read|write"
	default:
		return "none"
	}
}

// Ready reports which readiness events actually occurred when a suspended
// operation is resumed. An operation suspended on WaitReadWrite inspects the
// value to decide whether to consume input, flush output or both.
type Ready int8

const (
	ReadyRead Ready = 1 << iota
	ReadyWrite
)

// Waiter is the external readiness primitive. Wait blocks until at least one
// of the requested events occurs on the transport, or the deadline passes in
// which case os.ErrDeadlineExceeded is returned. The zero deadline means no
// timeout.
type Waiter interface {
	Wait(interest Interest, deadline time.Time) (Ready, error)
}

// NetDriver adapts a net.Conn to both the Transport and the Waiter contract.
// Reads and writes are issued with an immediate deadline so they never block,
// waiting happens through a one byte peek read with the requested deadline.
// Event loop integrations are expected to bring their own Transport and
// Waiter, this implementation serves standalone use.
type NetDriver struct {
	conn     net.Conn
	peek     [1]byte
	havePeek bool
}

func NewNetDriver(conn net.Conn) *NetDriver {
	return &NetDriver{conn: conn}
}

func (d *NetDriver) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var stashed int
	if d.havePeek {
		p[0] = d.peek[0]
		d.havePeek = false
		stashed = 1
		p = p[1:]
		if len(p) == 0 {
			return 1, nil
		}
	}

	_ = d.conn.SetReadDeadline(time.Unix(1, 0))
	n, err := d.conn.Read(p)
	if n+stashed > 0 {
		return n + stashed, nil
	}
	if isTimeout(err) {
		return 0, ErrWouldBlock
	}

	return 0, err
}

func (d *NetDriver) Write(p []byte) (int, error) {
	_ = d.conn.SetWriteDeadline(time.Unix(1, 0))
	n, err := d.conn.Write(p)
	if n > 0 {
		return n, nil
	}
	if isTimeout(err) {
		return 0, ErrWouldBlock
	}

	return n, err
}

func (d *NetDriver) Close() error {
	return d.conn.Close()
}

// netDriverPoll bounds the peek read while waiting on both directions, so a
// blocked write is retried instead of stalling behind a silent backend.
const netDriverPoll = 100 * time.Millisecond

func (d *NetDriver) Wait(interest Interest, deadline time.Time) (Ready, error) {
	if interest&WaitRead == 0 || d.havePeek {
		ready := Ready(0)
		if d.havePeek {
			ready |= ReadyRead
		}
		if interest&WaitWrite != 0 {
			ready |= ReadyWrite
		}

		return ready, nil
	}

	limit := deadline
	if interest&WaitWrite != 0 {
		poll := time.Now().Add(netDriverPoll)
		if limit.IsZero() || poll.Before(limit) {
			limit = poll
		}
	}

	_ = d.conn.SetReadDeadline(limit)
	n, err := d.conn.Read(d.peek[:])
	if n == 1 {
		d.havePeek = true
		ready := ReadyRead
		if interest&WaitWrite != 0 {
			ready |= ReadyWrite
		}

		return ready, nil
	}

	if isTimeout(err) {
		if interest&WaitWrite != 0 && (deadline.IsZero() || time.Now().Before(deadline)) {
			return ReadyWrite, nil
		}

		return 0, os.ErrDeadlineExceeded
	}

	return 0, err
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	return errors.Is(err, os.ErrDeadlineExceeded)
}
