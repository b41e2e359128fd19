package pgcore

import "github.com/pgkit/pgcore/pkg/types"

// Format represents the requested parameter format. Auto leaves the choice to
// the resolved dumper, which prefers the binary representation whenever the
// type has one.
type Format int8

const (
	FormatAuto Format = iota
	FormatText
	FormatBinary
)

// Code resolves the wire format code for the given request. Auto resolves to
// binary, dumpers without a binary representation register themselves under
// the text format explicitly.
func (f Format) Code() types.FormatCode {
	if f == FormatText {
		return types.TextFormat
	}

	return types.BinaryFormat
}

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatText:
		return "text"
	case FormatBinary:
		return "binary"
	default:
		return "unknown"
	}
}
