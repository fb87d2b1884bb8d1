package frame

import (
	"errors"
	"fmt"
	"math"
)

// ErrValueOutOfRange is returned by Build when a value does not fit in three
// integer digits.
var ErrValueOutOfRange = errors.New("value out of range")

// Build encodes a frame. The value is rounded to three decimals; typeCode is
// written as-is so callers can produce frames with unknown types.
func Build(typeCode byte, value float64, seq uint16) ([]byte, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}

	sign := CodePlus
	if value < 0 {
		sign = CodeMinus
		value = -value
	}

	milli := int(math.Round(value * 1000))
	if milli >= 1000*1000 {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}

	buf := make([]byte, Length)
	buf[SizeByte] = Length
	buf[TypeByte] = typeCode
	buf[SignByte] = sign

	// six digits, integer then fraction, most significant first
	for i := FracEnd; i >= IntStart; i-- {
		buf[i] = byte('0' + milli%10)
		milli /= 10
	}

	buf[SeqHigh] = byte(seq >> 8)
	buf[SeqLow] = byte(seq)

	return buf, nil
}
