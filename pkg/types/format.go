package types

// FormatCode represents the wire encoding of a single value, text or binary.
type FormatCode int16

const (
	// TextFormat is the default, text format.
	TextFormat FormatCode = 0
	// BinaryFormat is an alternative, binary, encoding.
	BinaryFormat FormatCode = 1
)

func (f FormatCode) String() string {
	switch f {
	case TextFormat:
		return "text"
	case BinaryFormat:
		return "binary"
	default:
		return "unknown"
	}
}
