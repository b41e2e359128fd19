package codec

import (
	"encoding/binary"
	"math"
	"strconv"
)

// AppendFloat4 appends the given value as a big-endian float4 wire value.
func AppendFloat4(buf []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
}

// AppendFloat8 appends the given value as a big-endian float8 wire value.
func AppendFloat8(buf []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
}

// AppendFloatText appends the text representation of the given float value.
// The special values are rendered using the spelling expected by the backend.
func AppendFloatText(buf []byte, v float64) []byte {
	switch {
	case math.IsInf(v, 1):
		return append(buf, "Infinity"...)
	case math.IsInf(v, -1):
		return append(buf, "-Infinity"...)
	case math.IsNaN(v):
		return append(buf, "NaN"...)
	}

	return strconv.AppendFloat(buf, v, 'g', -1, 64)
}

// DecodeFloat4 decodes a big-endian float4 wire value.
func DecodeFloat4(data []byte) (float32, error) {
	if len(data) != 4 {
		return 0, newDecodeErrorf(0, "float4 requires 4 bytes, got %d", len(data))
	}

	return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
}

// DecodeFloat8 decodes a big-endian float8 wire value.
func DecodeFloat8(data []byte) (float64, error) {
	if len(data) != 8 {
		return 0, newDecodeErrorf(0, "float8 requires 8 bytes, got %d", len(data))
	}

	return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
}

// DecodeFloatText decodes the text representation of a float value.
func DecodeFloatText(data []byte) (float64, error) {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, newDecodeErrorf(0, "malformed float: %q", data)
	}

	return v, nil
}
