// Package octal implements the fixed-width octal text codec spoken on the
// console monitor wire, plus the byte order of 16-bit words in target
// memory.
package octal

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LiteralWidth is the digit count of every octal literal exchanged with the
// monitor. Addresses and values are zero-padded to this width so a 16-bit
// word is never ambiguous on the wire.
const LiteralWidth = 6

var (
	ErrLiteralWidth = errors.New("octal: literal width mismatch")
	ErrBadDigit     = errors.New("octal: non-octal digit")
	ErrOutOfRange   = errors.New("octal: value exceeds 16 bits")
)

// Word is one 16-bit PDP-11 word.
type Word uint16

// Encode renders w as a zero-padded six-digit octal literal.
func Encode(w Word) string {
	return fmt.Sprintf("%06o", uint16(w))
}

// Decode parses a fixed-width octal literal into a Word. The literal must be
// exactly LiteralWidth digits; six octal digits can spell values up to
// 0o777777, so anything past 16 bits is rejected as out of range.
func Decode(s string) (Word, error) {
	if len(s) != LiteralWidth {
		return 0, fmt.Errorf("%w: got %d digits, want %d", ErrLiteralWidth, len(s), LiteralWidth)
	}
	var v uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("%w: %q at offset %d", ErrBadDigit, c, i)
		}
		v = v<<3 | uint32(c-'0')
	}
	if v > 0xFFFF {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, s)
	}
	return Word(v), nil
}

// AppendBytes appends w to dst in target memory order, low byte first.
func AppendBytes(dst []byte, w Word) []byte {
	return binary.LittleEndian.AppendUint16(dst, uint16(w))
}

// FromBytes assembles a Word from its low and high memory bytes.
func FromBytes(lo, hi byte) Word {
	return Word(lo) | Word(hi)<<8
}
