// Package frame implements the fixed 13-byte measurement frame pushed by the
// peripheral over its notify characteristic.
//
// Layout (byte offsets):
//
//	0      declared frame length, always 13
//	1      type code (see Symbol)
//	2      sign code (see Symbol)
//	3..5   integer part, three ASCII digits
//	6..8   fractional part, three ASCII digits
//	9      reserved
//	10..11 sequence number, big-endian uint16
//	12     reserved
package frame

import (
	"errors"
	"fmt"
)

// Constants for the frame layout.
const (
	Length = 13

	SizeByte  = 0
	TypeByte  = 1
	SignByte  = 2
	IntStart  = 3
	IntEnd    = 5
	FracStart = 6
	FracEnd   = 8
	SeqHigh   = 10
	SeqLow    = 11
)

// Type and sign codes, as sent on the wire.
const (
	CodeInfo  byte = 49 // '1'
	CodeData  byte = 50 // '2'
	CodePlus  byte = 43 // '+'
	CodeMinus byte = 45 // '-'
)

// Symbols resolved from the codes above.
const (
	TypeInfo  = "info"
	TypeData  = "data"
	SignPlus  = "+"
	SignMinus = "-"
)

// codes is shared by the type and sign fields. Read-only after init.
var codes = map[byte]string{
	CodeInfo:  TypeInfo,
	CodeData:  TypeData,
	CodePlus:  SignPlus,
	CodeMinus: SignMinus,
}

// ErrFrameSizeMismatch is the only rejection the decoder produces. It covers an
// empty buffer, a buffer whose size byte disagrees with its length, and a buffer
// that is not Length bytes long.
var ErrFrameSizeMismatch = errors.New("frame size mismatch")

// Symbol looks up a type or sign code.
func Symbol(code byte) (string, bool) {
	s, ok := codes[code]
	return s, ok
}

// Reading is a decoded frame. Type is empty when the type code is not in the table.
type Reading struct {
	Type  string
	Value float64
	SeqNb uint16
}

// HasType reports whether the frame carried a known type code.
func (r Reading) HasType() bool {
	return r.Type != ""
}

func (r Reading) String() string {
	t := r.Type
	if !r.HasType() {
		t = "?"
	}
	return fmt.Sprintf("#%d %s %g", r.SeqNb, t, r.Value)
}

// Parse validates data against the frame layout and decodes it. data is never modified.
//
// Unknown type or sign codes are not errors: the type is left empty and the
// value stays positive. Digit bytes are not range-checked either.
func Parse(data []byte) (Reading, error) {
	if len(data) == 0 {
		return Reading{}, fmt.Errorf("%w: empty buffer", ErrFrameSizeMismatch)
	}
	if declared := int(data[SizeByte]); declared != len(data) || declared != Length {
		return Reading{}, fmt.Errorf("%w: declared %d, got %d bytes, want %d", ErrFrameSizeMismatch, declared, len(data), Length)
	}

	intPart := 0
	for i := IntStart; i <= IntEnd; i++ {
		intPart = intPart*10 + digit(data[i])
	}

	// Least significant digit first, dividing at every step. Keep this order:
	// it is not bit-for-bit the same as reading the digits over 1000.
	var fracPart float64
	for i := FracEnd; i >= FracStart; i-- {
		fracPart = (fracPart + float64(digit(data[i]))) / 10
	}

	value := float64(intPart) + fracPart
	if sign, _ := Symbol(data[SignByte]); sign == SignMinus {
		value = -value
	}

	typ, _ := Symbol(data[TypeByte])

	return Reading{
		Type:  typ,
		Value: value,
		SeqNb: uint16(data[SeqHigh])<<8 | uint16(data[SeqLow]),
	}, nil
}

// Decode is Parse without the error detail. It returns nil, false for any frame
// Parse would reject.
func Decode(data []byte) (*Reading, bool) {
	r, err := Parse(data)
	if err != nil {
		return nil, false
	}
	return &r, true
}

func digit(b byte) int {
	return int(b) - '0'
}
