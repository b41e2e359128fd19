package codec

import (
	"bytes"
)

// ArrayDim describes a single array dimension: its length and the lower bound
// reported by the backend (1 by default).
type ArrayDim struct {
	Length     int32
	LowerBound int32
}

// Array is the layout level representation of an array wire value. Elements
// are kept as raw wire values in row-major order, a nil element represents
// NULL. Converting the elements between raw bytes and host values is the
// concern of the adaptation layer since it requires resolving a converter for
// the element oid.
type Array struct {
	Dims    []ArrayDim
	ElemOID uint32
	Elems   [][]byte
}

// HasNull reports whether any element of the array is NULL.
func (a Array) HasNull() bool {
	for _, elem := range a.Elems {
		if elem == nil {
			return true
		}
	}

	return false
}

// AppendArray appends the binary wire representation of the given array:
// the number of dimensions, a has-null flag, the element oid, a (length,
// lower bound) pair per dimension and the elements each prefixed with a
// signed 32 bit length where -1 represents NULL.
func AppendArray(buf []byte, a Array) []byte {
	buf = AppendInt4(buf, int32(len(a.Dims)))

	hasnull := int32(0)
	if a.HasNull() {
		hasnull = 1
	}
	buf = AppendInt4(buf, hasnull)
	buf = AppendUint32(buf, a.ElemOID)

	for _, dim := range a.Dims {
		buf = AppendInt4(buf, dim.Length)
		buf = AppendInt4(buf, dim.LowerBound)
	}

	for _, elem := range a.Elems {
		if elem == nil {
			buf = AppendInt4(buf, -1)
			continue
		}

		buf = AppendInt4(buf, int32(len(elem)))
		buf = append(buf, elem...)
	}

	return buf
}

// DecodeArray decodes the binary wire representation of an array. The
// returned elements reference the input buffer, they are not copied.
func DecodeArray(data []byte) (Array, error) {
	if len(data) < 12 {
		return Array{}, newDecodeErrorf(0, "array header requires 12 bytes, got %d", len(data))
	}

	ndims, _ := DecodeInt4(data[0:4])
	elemOID, _ := DecodeUint32(data[8:12])

	if ndims < 0 || ndims > 6 {
		return Array{}, newDecodeErrorf(0, "invalid number of array dimensions: %d", ndims)
	}

	out := Array{ElemOID: elemOID}
	offset := 12

	total := 1
	for i := int32(0); i < ndims; i++ {
		if len(data) < offset+8 {
			return Array{}, NewDecodeError("array dimensions truncated", offset)
		}

		length, _ := DecodeInt4(data[offset : offset+4])
		lower, _ := DecodeInt4(data[offset+4 : offset+8])
		if length < 0 {
			return Array{}, newDecodeErrorf(offset, "negative array dimension length: %d", length)
		}

		out.Dims = append(out.Dims, ArrayDim{Length: length, LowerBound: lower})
		total *= int(length)
		offset += 8
	}

	if ndims == 0 {
		total = 0
	}

	out.Elems = make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		if len(data) < offset+4 {
			return Array{}, NewDecodeError("array element length truncated", offset)
		}

		length, _ := DecodeInt4(data[offset : offset+4])
		offset += 4

		if length == -1 {
			out.Elems = append(out.Elems, nil)
			continue
		}

		if length < 0 || len(data) < offset+int(length) {
			return Array{}, newDecodeErrorf(offset, "array element truncated, want %d bytes", length)
		}

		out.Elems = append(out.Elems, data[offset:offset+int(length)])
		offset += int(length)
	}

	return out, nil
}

// ArrayNull is the text literal representing a NULL element, distinct from an
// empty string which has to be quoted.
var ArrayNull = []byte("NULL")

// AppendArrayText appends the text representation of the given nested value.
// The value is a (possibly nested) slice of elements where each leaf is
// either a raw text wire value or nil for NULL. Most types delimit elements
// with a comma, box-like types use a semicolon.
func AppendArrayText(buf []byte, v []any, delim byte) []byte {
	buf = append(buf, '{')

	for i, elem := range v {
		if i > 0 {
			buf = append(buf, delim)
		}

		switch typed := elem.(type) {
		case nil:
			buf = append(buf, ArrayNull...)
		case []any:
			buf = AppendArrayText(buf, typed, delim)
		case []byte:
			buf = appendArrayElemText(buf, typed, delim)
		}
	}

	return append(buf, '}')
}

func appendArrayElemText(buf, elem []byte, delim byte) []byte {
	if !arrayElemNeedsQuotes(elem, delim) {
		return append(buf, elem...)
	}

	buf = append(buf, '"')
	for _, b := range elem {
		if b == '"' || b == '\\' {
			buf = append(buf, '\\')
		}
		buf = append(buf, b)
	}

	return append(buf, '"')
}

func arrayElemNeedsQuotes(elem []byte, delim byte) bool {
	if len(elem) == 0 {
		return true
	}
	if bytes.EqualFold(elem, ArrayNull) {
		return true
	}

	for _, b := range elem {
		switch b {
		case delim, '"', '\\', '{', '}', ' ', '\t', '\n', '\r':
			return true
		}
	}

	return false
}

// DecodeArrayText decodes the text representation of an array into nested
// slices mirroring the dimension structure. Leaves are raw text wire values
// or nil for NULL.
func DecodeArrayText(data []byte, delim byte) ([]any, error) {
	// skip the optional dimension specification, e.g. [1:2][1:3]={...}
	start := bytes.IndexByte(data, '{')
	if start == -1 {
		return nil, NewDecodeError("malformed array literal, missing '{'", 0)
	}

	out, rest, err := parseArrayText(data[start:], delim, start)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, NewDecodeError("malformed array literal, trailing data", len(data)-len(rest))
	}

	return out, nil
}

func parseArrayText(data []byte, delim byte, base int) ([]any, []byte, error) {
	if len(data) == 0 || data[0] != '{' {
		return nil, nil, NewDecodeError("malformed array literal, expected '{'", base)
	}
	data = data[1:]
	base++

	out := []any{}
	for {
		if len(data) == 0 {
			return nil, nil, NewDecodeError("malformed array literal, unterminated", base)
		}

		switch data[0] {
		case '}':
			return out, data[1:], nil
		case byte(delim):
			data = data[1:]
			base++
		case '{':
			nested, rest, err := parseArrayText(data, delim, base)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, nested)
			base += len(data) - len(rest)
			data = rest
		case '"':
			elem, rest, err := parseQuotedElem(data, base)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, elem)
			base += len(data) - len(rest)
			data = rest
		default:
			end := 0
			for end < len(data) && data[end] != byte(delim) && data[end] != '}' {
				end++
			}

			elem := data[:end]
			if bytes.Equal(elem, ArrayNull) {
				out = append(out, nil)
			} else {
				out = append(out, append([]byte(nil), elem...))
			}

			data = data[end:]
			base += end
		}
	}
}

func parseQuotedElem(data []byte, base int) ([]byte, []byte, error) {
	out := []byte{}
	for i := 1; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
			if i >= len(data) {
				return nil, nil, NewDecodeError("malformed array literal, dangling escape", base+i)
			}
			out = append(out, data[i])
		case '"':
			return out, data[i+1:], nil
		default:
			out = append(out, data[i])
		}
	}

	return nil, nil, NewDecodeError("malformed array literal, unterminated quotes", base)
}
