package query

import "fmt"

// Format is the wire format asked of the transformer for one parameter.
type Format byte

const (
	// FormatAuto lets the transformer pick the format for the value's type.
	FormatAuto Format = 's'
	// FormatText asks for the text representation.
	FormatText Format = 't'
	// FormatBinary asks for the binary representation.
	FormatBinary Format = 'b'
)

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatText:
		return "text"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("Format(%d)", byte(f))
	}
}

func formatFromHint(hint byte) Format {
	switch hint {
	case 't':
		return FormatText
	case 'b':
		return FormatBinary
	default:
		return FormatAuto
	}
}
