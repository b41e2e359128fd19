package codec

// AppendBool appends the given boolean as a single byte wire value.
func AppendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}

	return append(buf, 0)
}

// AppendBoolText appends the text representation of the given boolean.
func AppendBoolText(buf []byte, v bool) []byte {
	if v {
		return append(buf, 't')
	}

	return append(buf, 'f')
}

// DecodeBool decodes a single byte boolean wire value.
func DecodeBool(data []byte) (bool, error) {
	if len(data) != 1 {
		return false, newDecodeErrorf(0, "bool requires 1 byte, got %d", len(data))
	}

	return data[0] != 0, nil
}

// DecodeBoolText decodes the text representation of a boolean value.
func DecodeBoolText(data []byte) (bool, error) {
	if len(data) == 1 {
		switch data[0] {
		case 't':
			return true, nil
		case 'f':
			return false, nil
		}
	}

	return false, newDecodeErrorf(0, "malformed boolean: %q", data)
}
