package pgcore

import (
	psqlerr "github.com/pgkit/pgcore/errors"
)

// ResultStatus describes how the backend concluded a single statement.
type ResultStatus int8

const (
	// StatusEmpty marks a freshly allocated result which has not observed a
	// completion message yet.
	StatusEmpty ResultStatus = iota
	// StatusTuplesOK marks a statement which returned a row set.
	StatusTuplesOK
	// StatusCommandOK marks a statement which completed without a row set.
	StatusCommandOK
	// StatusEmptyQuery marks an empty query string.
	StatusEmptyQuery
	// StatusFatalError marks a statement rejected by the backend.
	StatusFatalError
	// StatusCopyIn marks a statement which switched the session into copy-in
	// sub-protocol, awaiting CopyData from the frontend.
	StatusCopyIn
	// StatusCopyOut marks a statement which switched the session into
	// copy-out sub-protocol, streaming CopyData from the backend.
	StatusCopyOut
	// StatusCopyBoth marks a statement which switched the session into the
	// bidirectional copy sub-protocol used by replication.
	StatusCopyBoth
	// StatusPipelineSync marks a synchronization point inside a pipeline.
	StatusPipelineSync
	// StatusPipelineAborted marks a statement skipped because an earlier
	// statement inside the same pipeline segment failed.
	StatusPipelineAborted
)

func (s ResultStatus) String() string {
	switch s {
	case StatusEmpty:
		return "Empty"
	case StatusTuplesOK:
		return "TuplesOK"
	case StatusCommandOK:
		return "CommandOK"
	case StatusEmptyQuery:
		return "EmptyQuery"
	case StatusFatalError:
		return "FatalError"
	case StatusCopyIn:
		return "CopyIn"
	case StatusCopyOut:
		return "CopyOut"
	case StatusCopyBoth:
		return "CopyBoth"
	case StatusPipelineSync:
		return "PipelineSync"
	case StatusPipelineAborted:
		return "PipelineAborted"
	default:
		return "Unknown"
	}
}

// fieldRef locates a single column value inside the shared row buffer. A
// negative length represents NULL.
type fieldRef struct {
	offset int32
	length int32
}

// Result collects the backend responses to a single statement: the row
// description, the accumulated data rows and the completion status. Row
// values are copied out of the connection read buffer into one contiguous
// buffer owned by the result, so a result stays valid after the connection
// moves on to the next statement.
type Result struct {
	Status     ResultStatus
	Columns    Columns
	CommandTag string
	Err        *psqlerr.Error

	buf    []byte
	fields []fieldRef
	rows   int
}

// Tuples returns the number of data rows inside the result.
func (r *Result) Tuples() int {
	return r.rows
}

// Value returns the raw wire value at the given row and column, nil for NULL.
// The returned slice references the result buffer and must not be modified.
func (r *Result) Value(row, column int) []byte {
	if row < 0 || row >= r.rows || column < 0 || column >= len(r.Columns) {
		return nil
	}

	ref := r.fields[row*len(r.Columns)+column]
	if ref.length < 0 {
		return nil
	}

	return r.buf[ref.offset : ref.offset+ref.length]
}

// Row returns the raw wire values of a single row, nil entries for NULL.
func (r *Result) Row(row int) [][]byte {
	if row < 0 || row >= r.rows {
		return nil
	}

	out := make([][]byte, len(r.Columns))
	for i := range out {
		out[i] = r.Value(row, i)
	}

	return out
}

// appendRow copies the given wire values into the result owned buffer.
func (r *Result) appendRow(values [][]byte) {
	for _, value := range values {
		if value == nil {
			r.fields = append(r.fields, fieldRef{length: -1})
			continue
		}

		r.fields = append(r.fields, fieldRef{
			offset: int32(len(r.buf)),
			length: int32(len(value)),
		})
		r.buf = append(r.buf, value...)
	}

	r.rows++
}
