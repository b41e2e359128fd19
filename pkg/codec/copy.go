package codec

import "bytes"

// CopySignature identifies the start of a binary COPY stream. The header
// additionally carries a 32 bit flags field and a 32 bit extension area
// length, both zero in practice.
// https://www.postgresql.org/docs/current/sql-copy.html
var CopySignature = []byte("PGCOPY\n\377\r\n\000")

// CopyBinaryTrailer terminates a binary COPY stream, a field count of -1.
var CopyBinaryTrailer = []byte{0xff, 0xff}

// AppendCopyHeader appends the binary COPY stream header.
func AppendCopyHeader(buf []byte) []byte {
	buf = append(buf, CopySignature...)
	buf = AppendInt4(buf, 0) // flags
	return AppendInt4(buf, 0) // header extension length
}

// AppendCopyRow appends the binary wire representation of a single COPY row:
// a 16 bit field count followed by, per field, a signed 32 bit length where
// -1 represents NULL and the raw bytes. There is no trailing delimiter.
func AppendCopyRow(buf []byte, fields [][]byte) []byte {
	buf = AppendInt2(buf, int16(len(fields)))

	for _, field := range fields {
		if field == nil {
			buf = AppendInt4(buf, -1)
			continue
		}

		buf = AppendInt4(buf, int32(len(field)))
		buf = append(buf, field...)
	}

	return buf
}

// DecodeCopyRow decodes a single binary COPY row. A field count of -1 marks
// the stream trailer and is reported as a nil row. The field values reference
// the input buffer. The remaining bytes after the row are returned so
// multiple rows inside one CopyData chunk can be walked.
func DecodeCopyRow(data []byte) (fields [][]byte, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, newDecodeErrorf(0, "copy row requires a 2 byte field count, got %d bytes", len(data))
	}

	count, _ := DecodeInt2(data[0:2])
	if count == -1 {
		return nil, data[2:], nil
	}

	offset := 2
	fields = make([][]byte, 0, count)

	for i := int16(0); i < count; i++ {
		if len(data) < offset+4 {
			return nil, nil, NewDecodeError("copy field length truncated", offset)
		}

		length, _ := DecodeInt4(data[offset : offset+4])
		offset += 4

		if length == -1 {
			fields = append(fields, nil)
			continue
		}

		if length < 0 || len(data) < offset+int(length) {
			return nil, nil, newDecodeErrorf(offset, "copy field truncated, want %d bytes", length)
		}

		fields = append(fields, data[offset:offset+int(length)])
		offset += int(length)
	}

	return fields, data[offset:], nil
}

// CopyNull is the text literal representing NULL inside a text COPY stream.
var CopyNull = []byte(`\N`)

var copyEscapes = map[byte]byte{
	'\b': 'b',
	'\t': 't',
	'\n': 'n',
	'\v': 'v',
	'\f': 'f',
	'\r': 'r',
	'\\': '\\',
}

var copyUnescapes = map[byte]byte{
	'b':  '\b',
	't':  '\t',
	'n':  '\n',
	'v':  '\v',
	'f':  '\f',
	'r':  '\r',
	'\\': '\\',
}

// AppendCopyRowText appends the text representation of a single COPY row:
// tab delimited fields with backslash escapes for the control bytes which
// would otherwise be mistaken for delimiters, terminated by a newline.
func AppendCopyRowText(buf []byte, fields [][]byte) []byte {
	for i, field := range fields {
		if i > 0 {
			buf = append(buf, '\t')
		}

		if field == nil {
			buf = append(buf, CopyNull...)
			continue
		}

		for _, b := range field {
			if escape, has := copyEscapes[b]; has {
				buf = append(buf, '\\', escape)
				continue
			}
			buf = append(buf, b)
		}
	}

	return append(buf, '\n')
}

// DecodeCopyRowText decodes the text representation of a single COPY row.
// A nil field represents NULL.
func DecodeCopyRowText(data []byte) ([][]byte, error) {
	data = bytes.TrimSuffix(data, []byte("\n"))

	var fields [][]byte
	field := []byte{}
	null := false

	flush := func() {
		if null && len(field) == 0 {
			fields = append(fields, nil)
		} else {
			fields = append(fields, field)
		}
		field = []byte{}
		null = false
	}

	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\t':
			flush()
		case '\\':
			i++
			if i >= len(data) {
				return nil, NewDecodeError("dangling escape inside copy row", i)
			}

			if data[i] == 'N' {
				null = true
				continue
			}

			unescaped, has := copyUnescapes[data[i]]
			if !has {
				return nil, newDecodeErrorf(i, "unknown copy escape: \\%c", data[i])
			}
			field = append(field, unescaped)
		default:
			field = append(field, data[i])
		}
	}

	flush()
	return fields, nil
}
