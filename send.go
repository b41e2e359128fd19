package pgcore

import (
	"github.com/pgkit/pgcore/pkg/types"
)

// queueStartup serializes the startup packet announcing the protocol version
// and the session parameters into the output buffer.
func (c *Conn) queueStartup() error {
	c.writer.StartUntyped()
	c.writer.AddInt32(int32(types.Version30))

	for name, value := range c.startup {
		c.writer.AddString(name)
		c.writer.AddNullTerminate()
		c.writer.AddString(value)
		c.writer.AddNullTerminate()
	}

	c.writer.AddNullTerminate()
	return c.writer.End()
}

// QueueQuery serializes a simple-protocol query. The backend replies with
// zero or more results followed by ReadyForQuery, parameters are not
// supported on this path.
func (c *Conn) QueueQuery(sql string) error {
	c.writer.Start(types.ClientSimpleQuery)
	c.writer.AddString(sql)
	c.writer.AddNullTerminate()
	if err := c.writer.End(); err != nil {
		return err
	}

	c.requestPending = true
	return nil
}

// QueueStatement serializes a full extended-protocol round trip for the
// given statement: Parse, Bind, Describe and Execute followed by Sync, or by
// Flush when the connection is inside a pipeline where sync points are
// issued explicitly.
func (c *Conn) QueueStatement(stmt Statement) error {
	if err := c.queueParse(stmt.Name, stmt.Query, stmt.Params); err != nil {
		return err
	}
	if err := c.queueBind(stmt); err != nil {
		return err
	}
	if err := c.queueDescribe(types.DescribePortal, stmt.Portal); err != nil {
		return err
	}
	if err := c.queueExecute(stmt.Portal, 0); err != nil {
		return err
	}

	if c.pipelineMode {
		return nil
	}

	return c.QueueSync()
}

func (c *Conn) queueParse(name, sql string, params Params) error {
	c.writer.Start(types.ClientParse)
	c.writer.AddString(name)
	c.writer.AddNullTerminate()
	c.writer.AddString(sql)
	c.writer.AddNullTerminate()
	c.writer.AddInt16(int16(len(params.OIDs)))
	for _, id := range params.OIDs {
		c.writer.AddUint32(uint32(id))
	}

	return c.writer.End()
}

func (c *Conn) queueBind(stmt Statement) error {
	c.writer.Start(types.ClientBind)
	c.writer.AddString(stmt.Portal)
	c.writer.AddNullTerminate()
	c.writer.AddString(stmt.Name)
	c.writer.AddNullTerminate()

	c.writer.AddInt16(int16(len(stmt.Params.Formats)))
	for _, format := range stmt.Params.Formats {
		c.writer.AddInt16(int16(format))
	}

	c.writer.AddInt16(int16(len(stmt.Params.Values)))
	for _, value := range stmt.Params.Values {
		if value == nil {
			c.writer.AddInt32(-1)
			continue
		}

		c.writer.AddInt32(int32(len(value)))
		c.writer.AddBytes(value)
	}

	// A single result format code applies to every column.
	c.writer.AddInt16(1)
	c.writer.AddInt16(int16(stmt.ResultFormat))
	return c.writer.End()
}

func (c *Conn) queueDescribe(kind types.DescribeMessage, name string) error {
	c.writer.Start(types.ClientDescribe)
	c.writer.AddByte(byte(kind))
	c.writer.AddString(name)
	c.writer.AddNullTerminate()
	return c.writer.End()
}

func (c *Conn) queueExecute(portal string, limit int32) error {
	c.writer.Start(types.ClientExecute)
	c.writer.AddString(portal)
	c.writer.AddNullTerminate()
	c.writer.AddInt32(limit)
	return c.writer.End()
}

// QueueSync serializes a Sync message, closing the implicit transaction and
// requesting a ReadyForQuery response.
func (c *Conn) QueueSync() error {
	c.writer.Start(types.ClientSync)
	if err := c.writer.End(); err != nil {
		return err
	}

	c.requestPending = true
	return nil
}

// QueueFlush serializes a Flush message, asking the backend to deliver any
// pending responses without closing the implicit transaction.
func (c *Conn) QueueFlush() error {
	c.writer.Start(types.ClientFlush)
	return c.writer.End()
}

// QueueCopyData serializes a single copy-in data chunk.
func (c *Conn) QueueCopyData(chunk []byte) error {
	c.writer.Start(types.ClientCopyData)
	c.writer.AddBytes(chunk)
	return c.writer.End()
}

// QueueCopyDone serializes the end of a copy-in stream. The copy state ends
// locally, the statement results are pending until the backend confirms.
func (c *Conn) QueueCopyDone() error {
	c.writer.Start(types.ClientCopyDone)
	if err := c.writer.End(); err != nil {
		return err
	}

	c.endCopyIn()
	return nil
}

// QueueCopyFail aborts a copy-in stream with the given reason. The backend
// responds with an ErrorResponse attributed to the copy statement.
func (c *Conn) QueueCopyFail(reason string) error {
	c.writer.Start(types.ClientCopyFail)
	c.writer.AddString(reason)
	c.writer.AddNullTerminate()
	if err := c.writer.End(); err != nil {
		return err
	}

	c.endCopyIn()
	return nil
}

func (c *Conn) endCopyIn() {
	if c.status == ConnCopyIn || c.status == ConnCopyBoth {
		c.status = ConnReady
	}
}
