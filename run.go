package pgcore

import (
	"time"

	"github.com/pgkit/pgcore/pkg/types"
)

// Connect establishes a session over the given transport, blocking on the
// waiter until the handshake completes or the deadline passes. The deadline
// bounds the handshake as a whole, not individual socket waits.
func Connect(transport Transport, waiter Waiter, deadline time.Time, options ...OptionFn) (*Conn, error) {
	conn := NewConn(transport, options...)
	if err := Drive(conn.Connecting(), waiter, deadline); err != nil {
		_ = transport.Close()
		return nil, err
	}

	return conn, nil
}

// roundtrip flushes all queued requests and collects every result.
func (c *Conn) roundtrip(waiter Waiter, deadline time.Time) ([]*Result, error) {
	if err := Drive(c.Sending(), waiter, deadline); err != nil {
		return nil, err
	}

	op := c.FetchingAll()
	if err := Drive(op, waiter, deadline); err != nil {
		return nil, err
	}

	return op.Results(), nil
}

// Query executes a simple-protocol query and collects its results, blocking
// on the waiter. Multiple statements inside the query string produce
// multiple results.
func (c *Conn) Query(waiter Waiter, deadline time.Time, sql string) ([]*Result, error) {
	if err := c.QueueQuery(sql); err != nil {
		return nil, err
	}

	return c.roundtrip(waiter, deadline)
}

// Execute runs a single extended-protocol statement with the given
// parameters, blocking on the waiter. Parameters are adapted through the
// connection transformer, the result columns are requested in binary format.
func (c *Conn) Execute(waiter Waiter, deadline time.Time, sql string, args ...any) (*Result, error) {
	params, err := c.types.DumpParameters(args, nil)
	if err != nil {
		return nil, err
	}

	stmt := Statement{Query: sql, Params: params, ResultFormat: types.BinaryFormat}
	if err := c.QueueStatement(stmt); err != nil {
		return nil, err
	}

	results, err := c.roundtrip(waiter, deadline)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if result.Err != nil {
			return result, result.Err
		}
	}

	if len(results) == 0 {
		return nil, nil
	}

	return results[0], nil
}
