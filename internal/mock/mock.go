// Package mock provides a scripted in-memory backend for driving the
// protocol engine in tests: a transport whose readable bytes are fed by the
// test and a waiter resolving readiness against the fed script.
package mock

import (
	"bytes"
	"encoding/binary"
	"os"
	"time"

	"github.com/pgkit/pgcore"
)

// Session is a scripted transport. Bytes fed through Feed become readable,
// everything the engine writes is captured in Written. The session also
// implements the readiness primitive: read interest resolves ready while
// fed bytes remain and times out otherwise, write interest is always ready.
type Session struct {
	pending bytes.Buffer
	Written bytes.Buffer
	Closed  bool

	// Waits records every suspension interest, letting tests assert that an
	// operation suspended rather than busy-polled.
	Waits []pgcore.Interest
}

func NewSession() *Session {
	return &Session{}
}

// Feed appends backend bytes to the readable stream.
func (s *Session) Feed(chunks ...[]byte) {
	for _, chunk := range chunks {
		s.pending.Write(chunk)
	}
}

func (s *Session) Read(p []byte) (int, error) {
	if s.pending.Len() == 0 {
		return 0, pgcore.ErrWouldBlock
	}

	return s.pending.Read(p)
}

func (s *Session) Write(p []byte) (int, error) {
	return s.Written.Write(p)
}

func (s *Session) Close() error {
	s.Closed = true
	return nil
}

func (s *Session) Wait(interest pgcore.Interest, deadline time.Time) (pgcore.Ready, error) {
	s.Waits = append(s.Waits, interest)

	var ready pgcore.Ready
	if interest&pgcore.WaitRead != 0 && s.pending.Len() > 0 {
		ready |= pgcore.ReadyRead
	}
	if interest&pgcore.WaitWrite != 0 {
		ready |= pgcore.ReadyWrite
	}

	if ready == 0 {
		// Nothing fed and the operation only wants to read: the scripted
		// backend stays silent forever, surface it as a timeout.
		return 0, os.ErrDeadlineExceeded
	}

	return ready, nil
}

// Backend composes backend wire messages for a scripted session.
type Backend struct {
	buf bytes.Buffer
}

func NewBackend() *Backend {
	return &Backend{}
}

// Bytes returns the composed message stream.
func (b *Backend) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *Backend) frame(typed byte, body []byte) *Backend {
	b.buf.WriteByte(typed)

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(body)+4))
	b.buf.Write(length[:])
	b.buf.Write(body)
	return b
}

func (b *Backend) AuthOK() *Backend {
	return b.frame('R', []byte{0, 0, 0, 0})
}

func (b *Backend) ParameterStatus(name, value string) *Backend {
	var body bytes.Buffer
	body.WriteString(name)
	body.WriteByte(0)
	body.WriteString(value)
	body.WriteByte(0)
	return b.frame('S', body.Bytes())
}

func (b *Backend) BackendKeyData(pid, key uint32) *Backend {
	var body [8]byte
	binary.BigEndian.PutUint32(body[0:4], pid)
	binary.BigEndian.PutUint32(body[4:8], key)
	return b.frame('K', body[:])
}

func (b *Backend) ReadyForQuery(status byte) *Backend {
	return b.frame('Z', []byte{status})
}

func (b *Backend) ParseComplete() *Backend {
	return b.frame('1', nil)
}

func (b *Backend) BindComplete() *Backend {
	return b.frame('2', nil)
}

func (b *Backend) NoData() *Backend {
	return b.frame('n', nil)
}

func (b *Backend) EmptyQuery() *Backend {
	return b.frame('I', nil)
}

// Column describes one column of a scripted row description.
type Column struct {
	Name   string
	OID    uint32
	Format int16
}

func (b *Backend) RowDescription(columns ...Column) *Backend {
	var body bytes.Buffer

	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(columns)))
	body.Write(count[:])

	for _, column := range columns {
		body.WriteString(column.Name)
		body.WriteByte(0)

		var fixed [18]byte
		binary.BigEndian.PutUint32(fixed[0:4], 0)                     // table oid
		binary.BigEndian.PutUint16(fixed[4:6], 0)                     // attribute no
		binary.BigEndian.PutUint32(fixed[6:10], column.OID)           // type oid
		binary.BigEndian.PutUint16(fixed[10:12], 0xffff)              // width (-1)
		binary.BigEndian.PutUint32(fixed[12:16], 0xffffffff)          // type modifier (-1)
		binary.BigEndian.PutUint16(fixed[16:18], uint16(column.Format))
		body.Write(fixed[:])
	}

	return b.frame('T', body.Bytes())
}

// DataRow appends a data row, nil values travel as NULL.
func (b *Backend) DataRow(values ...[]byte) *Backend {
	var body bytes.Buffer

	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(values)))
	body.Write(count[:])

	for _, value := range values {
		var length [4]byte
		if value == nil {
			binary.BigEndian.PutUint32(length[:], 0xffffffff)
			body.Write(length[:])
			continue
		}

		binary.BigEndian.PutUint32(length[:], uint32(len(value)))
		body.Write(length[:])
		body.Write(value)
	}

	return b.frame('D', body.Bytes())
}

func (b *Backend) CommandComplete(tag string) *Backend {
	var body bytes.Buffer
	body.WriteString(tag)
	body.WriteByte(0)
	return b.frame('C', body.Bytes())
}

// Error appends an ErrorResponse with the given SQLSTATE code and message.
func (b *Backend) Error(code, message string) *Backend {
	var body bytes.Buffer
	body.WriteByte('S')
	body.WriteString("ERROR")
	body.WriteByte(0)
	body.WriteByte('C')
	body.WriteString(code)
	body.WriteByte(0)
	body.WriteByte('M')
	body.WriteString(message)
	body.WriteByte(0)
	body.WriteByte(0)
	return b.frame('E', body.Bytes())
}

func (b *Backend) Notice(code, message string) *Backend {
	var body bytes.Buffer
	body.WriteByte('S')
	body.WriteString("NOTICE")
	body.WriteByte(0)
	body.WriteByte('C')
	body.WriteString(code)
	body.WriteByte(0)
	body.WriteByte('M')
	body.WriteString(message)
	body.WriteByte(0)
	body.WriteByte(0)
	return b.frame('N', body.Bytes())
}

func (b *Backend) Notification(pid uint32, channel, payload string) *Backend {
	var body bytes.Buffer

	var head [4]byte
	binary.BigEndian.PutUint32(head[:], pid)
	body.Write(head[:])
	body.WriteString(channel)
	body.WriteByte(0)
	body.WriteString(payload)
	body.WriteByte(0)
	return b.frame('A', body.Bytes())
}

func (b *Backend) CopyInResponse(format byte, columns int) *Backend {
	return b.frame('G', copyResponseBody(format, columns))
}

func (b *Backend) CopyOutResponse(format byte, columns int) *Backend {
	return b.frame('H', copyResponseBody(format, columns))
}

func (b *Backend) CopyData(chunk []byte) *Backend {
	return b.frame('d', chunk)
}

func (b *Backend) CopyDone() *Backend {
	return b.frame('c', nil)
}

func copyResponseBody(format byte, columns int) []byte {
	var body bytes.Buffer
	body.WriteByte(format)

	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(columns))
	body.Write(count[:])

	for i := 0; i < columns; i++ {
		var code [2]byte
		binary.BigEndian.PutUint16(code[:], uint16(format))
		body.Write(code[:])
	}

	return body.Bytes()
}
