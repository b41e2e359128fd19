package codec

import (
	"encoding/binary"
	"math"
	"strconv"
)

// AppendInt2 appends the given value as a big-endian int2 wire value.
func AppendInt2(buf []byte, v int16) []byte {
	return binary.BigEndian.AppendUint16(buf, uint16(v))
}

// AppendInt4 appends the given value as a big-endian int4 wire value.
func AppendInt4(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

// AppendInt8 appends the given value as a big-endian int8 wire value.
func AppendInt8(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

// AppendUint32 appends the given value as a big-endian 32 bit wire value.
// Object identifiers are represented as unsigned 32 bit integers on the wire.
func AppendUint32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

// AppendIntText appends the shortest decimal text representation of the given
// value, the format shared by all integer widths in text mode.
func AppendIntText(buf []byte, v int64) []byte {
	return strconv.AppendInt(buf, v, 10)
}

// DecodeInt2 decodes a big-endian int2 wire value.
func DecodeInt2(data []byte) (int16, error) {
	if len(data) != 2 {
		return 0, newDecodeErrorf(0, "int2 requires 2 bytes, got %d", len(data))
	}

	return int16(binary.BigEndian.Uint16(data)), nil
}

// DecodeInt4 decodes a big-endian int4 wire value.
func DecodeInt4(data []byte) (int32, error) {
	if len(data) != 4 {
		return 0, newDecodeErrorf(0, "int4 requires 4 bytes, got %d", len(data))
	}

	return int32(binary.BigEndian.Uint32(data)), nil
}

// DecodeInt8 decodes a big-endian int8 wire value.
func DecodeInt8(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, newDecodeErrorf(0, "int8 requires 8 bytes, got %d", len(data))
	}

	return int64(binary.BigEndian.Uint64(data)), nil
}

// DecodeUint32 decodes a big-endian unsigned 32 bit wire value (oid, cid, xid).
func DecodeUint32(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, newDecodeErrorf(0, "uint32 requires 4 bytes, got %d", len(data))
	}

	return binary.BigEndian.Uint32(data), nil
}

// DecodeIntText decodes the decimal text representation of an integer.
func DecodeIntText(data []byte) (int64, error) {
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		if errNum, ok := err.(*strconv.NumError); ok && errNum.Err == strconv.ErrRange {
			if len(data) > 0 && data[0] == '-' {
				return 0, wrapDecodeError(ErrValueTooSmall, "integer out of int8 range", 0)
			}
			return 0, wrapDecodeError(ErrValueTooLarge, "integer out of int8 range", 0)
		}
		return 0, newDecodeErrorf(0, "malformed integer: %q", data)
	}

	return v, nil
}

// IntWidth classifies the given value by the smallest Postgres integer type
// able to represent it. A width of 0 indicates that the value exceeds int8 and
// has to be sent as an arbitrary precision numeric.
func IntWidth(v int64) int {
	switch {
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return 2
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return 4
	default:
		return 8
	}
}
