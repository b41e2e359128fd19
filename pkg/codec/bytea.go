package codec

import (
	"bytes"
	"encoding/hex"
)

// AppendByteaText appends the hex text representation of the given bytes, the
// default bytea output format since PostgreSQL 9.0.
func AppendByteaText(buf, v []byte) []byte {
	buf = append(buf, '\\', 'x')
	n := len(buf)
	buf = append(buf, make([]byte, hex.EncodedLen(len(v)))...)
	hex.Encode(buf[n:], v)
	return buf
}

// DecodeByteaText decodes the hex or escape text representation of a bytea
// value.
func DecodeByteaText(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, []byte(`\x`)) {
		out := make([]byte, hex.DecodedLen(len(data)-2))
		_, err := hex.Decode(out, data[2:])
		if err != nil {
			return nil, newDecodeErrorf(2, "malformed hex bytea: %v", err)
		}

		return out, nil
	}

	// Escape format: printable bytes are literal, a backslash introduces
	// either a doubled backslash or a three digit octal escape.
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}

		if i+1 < len(data) && data[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}

		if i+3 >= len(data) {
			return nil, NewDecodeError("truncated bytea escape sequence", i)
		}

		b := (data[i+1]-'0')<<6 | (data[i+2]-'0')<<3 | (data[i+3] - '0')
		out = append(out, b)
		i += 3
	}

	return out, nil
}
