package codec

// CompositeField is a single field of a composite record: the oid of its type
// and the raw wire value, nil for NULL.
type CompositeField struct {
	OID  uint32
	Data []byte
}

// AppendComposite appends the binary wire representation of a composite
// record: the field count followed by, per field, the type oid and a
// length-prefixed value where -1 represents NULL.
func AppendComposite(buf []byte, fields []CompositeField) []byte {
	buf = AppendInt4(buf, int32(len(fields)))

	for _, field := range fields {
		buf = AppendUint32(buf, field.OID)
		if field.Data == nil {
			buf = AppendInt4(buf, -1)
			continue
		}

		buf = AppendInt4(buf, int32(len(field.Data)))
		buf = append(buf, field.Data...)
	}

	return buf
}

// DecodeComposite decodes the binary wire representation of a composite
// record. The field values reference the input buffer, they are not copied.
func DecodeComposite(data []byte) ([]CompositeField, error) {
	if len(data) < 4 {
		return nil, newDecodeErrorf(0, "composite header requires 4 bytes, got %d", len(data))
	}

	count, _ := DecodeInt4(data[0:4])
	if count < 0 {
		return nil, newDecodeErrorf(0, "negative composite field count: %d", count)
	}

	offset := 4
	out := make([]CompositeField, 0, count)

	for i := int32(0); i < count; i++ {
		if len(data) < offset+8 {
			return nil, NewDecodeError("composite field header truncated", offset)
		}

		oid, _ := DecodeUint32(data[offset : offset+4])
		length, _ := DecodeInt4(data[offset+4 : offset+8])
		offset += 8

		field := CompositeField{OID: oid}
		if length >= 0 {
			if len(data) < offset+int(length) {
				return nil, newDecodeErrorf(offset, "composite field truncated, want %d bytes", length)
			}

			field.Data = data[offset : offset+int(length)]
			offset += int(length)
		}

		out = append(out, field)
	}

	return out, nil
}
