package codec

// Range header flags.
// https://github.com/postgres/postgres/blob/master/src/include/utils/rangetypes.h
const (
	rangeEmpty    = 0x01
	rangeLowerInc = 0x02
	rangeUpperInc = 0x04
	rangeLowerInf = 0x08
	rangeUpperInf = 0x10
)

// Range is the layout level representation of a range wire value. Bound
// values are raw wire values, converting them requires resolving a converter
// for the subtype oid which is the concern of the adaptation layer. A bound
// is only present when it is neither infinite nor part of an empty range.
type Range struct {
	Empty    bool
	LowerInc bool
	UpperInc bool
	LowerInf bool
	UpperInf bool
	Lower    []byte
	Upper    []byte
	HasLower bool
	HasUpper bool
}

// AppendRange appends the binary wire representation of the given range: one
// flag byte followed by zero, one or two length-prefixed bound values. An
// empty range carries no bounds at all.
func AppendRange(buf []byte, r Range) []byte {
	if r.Empty {
		return append(buf, rangeEmpty)
	}

	var head byte
	if r.LowerInc {
		head |= rangeLowerInc
	}
	if r.UpperInc {
		head |= rangeUpperInc
	}
	if r.LowerInf {
		head |= rangeLowerInf
	}
	if r.UpperInf {
		head |= rangeUpperInf
	}

	buf = append(buf, head)

	if !r.LowerInf {
		buf = AppendInt4(buf, int32(len(r.Lower)))
		buf = append(buf, r.Lower...)
	}
	if !r.UpperInf {
		buf = AppendInt4(buf, int32(len(r.Upper)))
		buf = append(buf, r.Upper...)
	}

	return buf
}

// DecodeRange decodes the binary wire representation of a range. The bound
// values reference the input buffer, they are not copied.
func DecodeRange(data []byte) (Range, error) {
	if len(data) < 1 {
		return Range{}, NewDecodeError("range requires at least 1 byte", 0)
	}

	head := data[0]
	if head&rangeEmpty != 0 {
		return Range{Empty: true}, nil
	}

	out := Range{
		LowerInc: head&rangeLowerInc != 0,
		UpperInc: head&rangeUpperInc != 0,
		LowerInf: head&rangeLowerInf != 0,
		UpperInf: head&rangeUpperInf != 0,
	}

	offset := 1
	readBound := func() ([]byte, error) {
		if len(data) < offset+4 {
			return nil, NewDecodeError("range bound length truncated", offset)
		}

		length, _ := DecodeInt4(data[offset : offset+4])
		offset += 4

		if length < 0 || len(data) < offset+int(length) {
			return nil, newDecodeErrorf(offset, "range bound truncated, want %d bytes", length)
		}

		bound := data[offset : offset+int(length)]
		offset += int(length)
		return bound, nil
	}

	var err error
	if !out.LowerInf {
		out.Lower, err = readBound()
		if err != nil {
			return Range{}, err
		}
		out.HasLower = true
	}

	if !out.UpperInf {
		out.Upper, err = readBound()
		if err != nil {
			return Range{}, err
		}
		out.HasUpper = true
	}

	return out, nil
}
