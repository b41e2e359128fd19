package pgcore

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lib/pq/oid"
	"github.com/pgkit/pgcore/codes"
	psqlerr "github.com/pgkit/pgcore/errors"
	"github.com/pgkit/pgcore/pkg/buffer"
	"github.com/pgkit/pgcore/pkg/codec"
	"github.com/pgkit/pgcore/pkg/types"
)

// ConnStatus tracks the lifecycle of a connection.
type ConnStatus int8

const (
	// ConnConnecting is set while the startup handshake is in flight.
	ConnConnecting ConnStatus = iota
	// ConnReady marks an established session.
	ConnReady
	// ConnCopyIn marks a session inside the copy-in sub-protocol.
	ConnCopyIn
	// ConnCopyOut marks a session inside the copy-out sub-protocol.
	ConnCopyOut
	// ConnCopyBoth marks a session inside the bidirectional copy sub-protocol.
	ConnCopyBoth
	// ConnBad marks a session broken by a protocol or transport failure.
	ConnBad
	// ConnClosed marks a session which has been closed locally.
	ConnClosed
)

func (s ConnStatus) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnReady:
		return "ready"
	case ConnCopyIn:
		return "copy-in"
	case ConnCopyOut:
		return "copy-out"
	case ConnCopyBoth:
		return "copy-both"
	case ConnBad:
		return "bad"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// readChunkSize bounds a single transport read while consuming input.
const readChunkSize = 1 << 13 // 8192 bytes

// Conn is a single session with a Postgres backend. It owns the outgoing and
// incoming byte buffers and the protocol state machine interpreting backend
// messages, but never performs a blocking call itself: all socket waiting is
// delegated to a Waiter by the operation driving the connection.
//
// A connection is not safe for concurrent use, serialize access externally.
type Conn struct {
	logger    *slog.Logger
	transport Transport
	registry  *Registry
	types     *Transformer

	writer *buffer.Writer
	outbuf bytes.Buffer
	inbuf  []byte

	status   ConnStatus
	txStatus types.TxStatus

	parameters map[string]string
	dateStyle  codec.DateStyle
	dateOrder  codec.DateOrder

	backendPID uint32
	backendKey uint32

	results        []*Result
	pending        *Result
	requestPending bool
	paramOIDs      []oid.Oid

	pipelineMode    bool
	pipelineAborted bool

	copyChunks [][]byte
	copyDone   bool

	notifications []Notification

	startup map[string]string
}

// NewConn wraps the given transport into a fresh, unconnected session. The
// connect operation still has to be driven to completion before the session
// is usable, see Connect for the blocking convenience path.
func NewConn(transport Transport, options ...OptionFn) *Conn {
	conn := &Conn{
		logger:     slog.Default(),
		transport:  transport,
		status:     ConnConnecting,
		txStatus:   types.TxIdle,
		parameters: make(map[string]string),
		dateStyle:  codec.StyleISO,
		dateOrder:  codec.OrderMDY,
		startup:    make(map[string]string),
	}

	for _, option := range options {
		option(conn)
	}

	if conn.registry == nil {
		conn.registry = DefaultRegistry()
	}

	// The session snapshots the registry it was handed, registrations on the
	// original after this point do not reach the live connection.
	conn.registry = conn.registry.Clone()

	conn.writer = buffer.NewWriter(conn.logger, &conn.outbuf)
	conn.types = NewTransformer(conn)
	return conn
}

// Status returns the current lifecycle state of the connection.
func (c *Conn) Status() ConnStatus {
	return c.status
}

// TxStatus returns the transaction status reported by the most recent
// ReadyForQuery message.
func (c *Conn) TxStatus() types.TxStatus {
	return c.txStatus
}

// Parameter returns the current value of a session parameter such as
// server_version or DateStyle, as reported by the backend.
func (c *Conn) Parameter(name string) string {
	return c.parameters[name]
}

// BackendPID returns the process id of the backend, available once the
// startup handshake completed.
func (c *Conn) BackendPID() uint32 {
	return c.backendPID
}

// Types returns the transformer adapting host values for this session.
func (c *Conn) Types() *Transformer {
	return c.types
}

// ParameterOIDs returns the parameter types of the most recently described
// statement, available once a ParameterDescription response was consumed.
func (c *Conn) ParameterOIDs() []oid.Oid {
	return c.paramOIDs
}

// Close tears down the transport. A Terminate message is queued beforehand
// when the session is still healthy, best effort.
func (c *Conn) Close() error {
	if c.status == ConnClosed {
		return nil
	}

	if c.status == ConnReady {
		c.writer.Start(types.ClientTerminate)
		if err := c.writer.End(); err == nil {
			_, _ = c.transport.Write(c.outbuf.Bytes())
		}
	}

	c.status = ConnClosed
	return c.transport.Close()
}

// flush writes buffered output to the transport. It reports true once the
// buffer is fully drained and false when the transport would block.
func (c *Conn) flush() (bool, error) {
	for c.outbuf.Len() > 0 {
		n, err := c.transport.Write(c.outbuf.Bytes())
		if n > 0 {
			c.outbuf.Next(n)
		}

		if err == ErrWouldBlock {
			return false, nil
		}
		if err != nil {
			c.status = ConnBad
			return false, fmt.Errorf("flushing output: %w", err)
		}
	}

	return true, nil
}

// consumeInput moves readable bytes from the transport into the read buffer
// and interprets every complete message inside it. It returns once the
// transport would block.
func (c *Conn) consumeInput() error {
	for {
		chunk := make([]byte, readChunkSize)
		n, err := c.transport.Read(chunk)
		if n > 0 {
			c.inbuf = append(c.inbuf, chunk[:n]...)
		}

		if err == ErrWouldBlock {
			break
		}
		if err != nil {
			c.status = ConnBad
			return fmt.Errorf("consuming input: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return c.parseInput()
}

// parseInput walks over the read buffer interpreting complete messages. The
// buffer is consumed by re-slicing, never compacted, so strings referencing
// previously interpreted message bodies stay valid.
func (c *Conn) parseInput() error {
	for {
		if len(c.inbuf) < 5 {
			break
		}

		size := int(uint32(c.inbuf[1])<<24 | uint32(c.inbuf[2])<<16 | uint32(c.inbuf[3])<<8 | uint32(c.inbuf[4]))
		if size < 4 {
			c.status = ConnBad
			return psqlerr.WithCode(fmt.Errorf("malformed message length %d", size), codes.ProtocolViolation)
		}

		total := 1 + size
		if len(c.inbuf) < total {
			break
		}

		typed := types.ServerMessage(c.inbuf[0])
		body := c.inbuf[5:total]
		c.inbuf = c.inbuf[total:]

		if err := c.handleMessage(typed, body); err != nil {
			c.status = ConnBad
			return err
		}
	}

	if len(c.inbuf) == 0 {
		c.inbuf = nil
	}

	return nil
}

// handleMessage dispatches a single backend message against the protocol
// state machine.
func (c *Conn) handleMessage(typed types.ServerMessage, body []byte) error {
	c.logger.Debug("<- incoming message", slog.String("type", typed.String()), slog.Int("size", len(body)))
	reader := buffer.NewMsgReader(body)

	switch typed {
	case types.ServerAuth:
		return c.handleAuth(reader)
	case types.ServerParameterStatus:
		return c.handleParameterStatus(reader)
	case types.ServerBackendKeyData:
		return c.handleBackendKeyData(reader)
	case types.ServerReady:
		return c.handleReadyForQuery(reader)
	case types.ServerRowDescription:
		return c.handleRowDescription(reader)
	case types.ServerDataRow:
		return c.handleDataRow(reader)
	case types.ServerCommandComplete:
		return c.handleCommandComplete(reader)
	case types.ServerEmptyQuery:
		c.finishResult(StatusEmptyQuery)
		return nil
	case types.ServerErrorResponse:
		return c.handleErrorResponse(reader)
	case types.ServerNoticeResponse:
		return c.handleNoticeResponse(reader)
	case types.ServerNotificationResponse:
		return c.handleNotification(reader)
	case types.ServerParameterDescription:
		return c.handleParameterDescription(reader)
	case types.ServerCopyInResponse:
		return c.handleCopyResponse(reader, StatusCopyIn, ConnCopyIn)
	case types.ServerCopyOutResponse:
		return c.handleCopyResponse(reader, StatusCopyOut, ConnCopyOut)
	case types.ServerCopyBothResponse:
		return c.handleCopyResponse(reader, StatusCopyBoth, ConnCopyBoth)
	case types.ServerCopyData:
		chunk := make([]byte, len(body))
		copy(chunk, body)
		c.copyChunks = append(c.copyChunks, chunk)
		return nil
	case types.ServerCopyDone:
		c.copyDone = true
		return nil
	case types.ServerParseComplete, types.ServerBindComplete, types.ServerCloseComplete, types.ServerNoData:
		return nil
	case types.ServerPortalSuspended:
		c.finishResult(StatusTuplesOK)
		return nil
	default:
		return psqlerr.WithCode(fmt.Errorf("unexpected message type %s", typed), codes.ProtocolViolation)
	}
}

func (c *Conn) handleAuth(reader *buffer.Reader) error {
	code, err := reader.GetUint32()
	if err != nil {
		return err
	}

	// Trusted connections only. SASL and password based authentication flows
	// are driven by an outer client, not by the protocol engine.
	if code != 0 {
		err := fmt.Errorf("unsupported authentication request: %d", code)
		return psqlerr.WithCode(err, codes.SQLclientUnableToEstablishSQLconnection)
	}

	return nil
}

func (c *Conn) handleParameterStatus(reader *buffer.Reader) error {
	name, err := reader.GetString()
	if err != nil {
		return err
	}

	value, err := reader.GetString()
	if err != nil {
		return err
	}

	c.parameters[name] = value
	if name == "DateStyle" {
		c.dateStyle, c.dateOrder = codec.ParseDateStyle(value)
	}

	return nil
}

func (c *Conn) handleBackendKeyData(reader *buffer.Reader) error {
	pid, err := reader.GetUint32()
	if err != nil {
		return err
	}

	key, err := reader.GetUint32()
	if err != nil {
		return err
	}

	c.backendPID, c.backendKey = pid, key
	return nil
}

func (c *Conn) handleReadyForQuery(reader *buffer.Reader) error {
	status, err := reader.GetByte()
	if err != nil {
		return err
	}

	c.txStatus = types.TxStatus(status)
	if c.status == ConnConnecting {
		c.status = ConnReady
	}

	if c.pipelineMode {
		// Each sync point surfaces as its own result, demarcating the
		// responses of one pipeline segment. An abort only lasts until the
		// next sync point.
		c.pipelineAborted = false
		c.results = append(c.results, &Result{Status: StatusPipelineSync})
		return nil
	}

	c.requestPending = false
	return nil
}

func (c *Conn) handleRowDescription(reader *buffer.Reader) error {
	columns, err := readColumns(reader)
	if err != nil {
		return err
	}

	c.pending = &Result{Status: StatusTuplesOK, Columns: columns}
	return nil
}

func (c *Conn) handleDataRow(reader *buffer.Reader) error {
	if c.pending == nil {
		return psqlerr.WithCode(fmt.Errorf("data row without a row description"), codes.ProtocolViolation)
	}

	count, err := reader.GetUint16()
	if err != nil {
		return err
	}

	values := make([][]byte, count)
	for i := range values {
		length, err := reader.GetInt32()
		if err != nil {
			return err
		}

		values[i], err = reader.GetBytes(int(length))
		if err != nil {
			return err
		}
	}

	c.pending.appendRow(values)
	return nil
}

func (c *Conn) handleCommandComplete(reader *buffer.Reader) error {
	tag, err := reader.GetString()
	if err != nil {
		return err
	}

	if c.pending == nil {
		c.pending = &Result{Status: StatusCommandOK}
	}

	c.pending.CommandTag = tag
	c.results = append(c.results, c.pending)
	c.pending = nil

	if c.status == ConnCopyIn || c.status == ConnCopyOut || c.status == ConnCopyBoth {
		c.status = ConnReady
	}

	return nil
}

func (c *Conn) finishResult(status ResultStatus) {
	result := c.pending
	if result == nil {
		result = &Result{}
	}

	result.Status = status
	c.results = append(c.results, result)
	c.pending = nil
}

func (c *Conn) handleErrorResponse(reader *buffer.Reader) error {
	perr, err := readErrorFields(reader)
	if err != nil {
		return err
	}

	result := c.pending
	if result == nil {
		result = &Result{}
	}

	result.Status = StatusFatalError
	result.Err = perr
	c.results = append(c.results, result)
	c.pending = nil

	if c.pipelineMode {
		c.pipelineAborted = true
	}
	if c.status == ConnCopyIn || c.status == ConnCopyOut || c.status == ConnCopyBoth {
		c.status = ConnReady
	}

	return nil
}

func (c *Conn) handleNoticeResponse(reader *buffer.Reader) error {
	perr, err := readErrorFields(reader)
	if err != nil {
		return err
	}

	c.logger.Info("backend notice",
		slog.String("severity", string(perr.Severity)),
		slog.String("code", string(perr.Code)),
		slog.String("message", perr.Message))
	return nil
}

func (c *Conn) handleNotification(reader *buffer.Reader) error {
	pid, err := reader.GetUint32()
	if err != nil {
		return err
	}

	channel, err := reader.GetString()
	if err != nil {
		return err
	}

	payload, err := reader.GetString()
	if err != nil {
		return err
	}

	c.notifications = append(c.notifications, Notification{
		PID:     pid,
		Channel: channel,
		Payload: payload,
	})
	return nil
}

func (c *Conn) handleParameterDescription(reader *buffer.Reader) error {
	count, err := reader.GetUint16()
	if err != nil {
		return err
	}

	c.paramOIDs = make([]oid.Oid, count)
	for i := range c.paramOIDs {
		id, err := reader.GetUint32()
		if err != nil {
			return err
		}

		c.paramOIDs[i] = oid.Oid(id)
	}

	return nil
}

func (c *Conn) handleCopyResponse(reader *buffer.Reader, status ResultStatus, state ConnStatus) error {
	format, err := reader.GetByte()
	if err != nil {
		return err
	}

	count, err := reader.GetUint16()
	if err != nil {
		return err
	}

	columns := make(Columns, count)
	for i := range columns {
		code, err := reader.GetInt16()
		if err != nil {
			return err
		}

		columns[i].Format = types.FormatCode(code)
		if format == 1 {
			columns[i].Format = types.BinaryFormat
		}
	}

	c.status = state
	c.copyDone = false
	c.results = append(c.results, &Result{Status: status, Columns: columns})
	return nil
}

// readErrorFields interprets the tagged fields of an ErrorResponse or
// NoticeResponse body into a rich error value.
// https://www.postgresql.org/docs/current/protocol-error-fields.html
func readErrorFields(reader *buffer.Reader) (*psqlerr.Error, error) {
	perr := &psqlerr.Error{}

	for {
		field, err := reader.GetByte()
		if err != nil {
			return nil, err
		}

		if field == 0 {
			break
		}

		value, err := reader.GetString()
		if err != nil {
			return nil, err
		}

		switch field {
		case 'S':
			perr.Severity = psqlerr.Severity(value)
		case 'C':
			perr.Code = codes.Code(value)
		case 'M':
			perr.Message = value
		case 'D':
			perr.Detail = value
		case 'H':
			perr.Hint = value
		case 'P':
			position, err := strconv.ParseInt(value, 10, 32)
			if err == nil {
				perr.Position = int32(position)
			}
		case 'W':
			perr.Where = value
		case 's':
			perr.Schema = value
		case 't':
			perr.Table = value
		case 'c':
			perr.Column = value
		case 'd':
			perr.DataType = value
		case 'n':
			perr.ConstraintName = value
		}
	}

	return perr, nil
}

// busy reports whether more input is required before the next result can be
// returned without blocking.
func (c *Conn) busy() bool {
	if len(c.results) > 0 {
		return false
	}
	if c.status == ConnCopyIn || c.status == ConnCopyOut || c.status == ConnCopyBoth {
		return false
	}

	return c.requestPending
}

// takeResult pops the next completed result, nil when none is available.
func (c *Conn) takeResult() *Result {
	if len(c.results) == 0 {
		return nil
	}

	result := c.results[0]
	c.results = c.results[1:]
	return result
}
