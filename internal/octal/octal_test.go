package octal

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTripFullRange(t *testing.T) {
	for v := 0; v <= 0xFFFF; v++ {
		lit := Encode(Word(v))
		if len(lit) != LiteralWidth {
			t.Fatalf("Encode(%06o): width %d", v, len(lit))
		}
		got, err := Decode(lit)
		if err != nil {
			t.Fatalf("Decode(%q): %v", lit, err)
		}
		if got != Word(v) {
			t.Fatalf("round trip mismatch: got %06o want %06o", uint16(got), v)
		}
	}
}

func TestEncodeZeroPads(t *testing.T) {
	if got := Encode(0); got != "000000" {
		t.Fatalf("Encode(0) = %q", got)
	}
	if got := Encode(0o100); got != "000100" {
		t.Fatalf("Encode(0o100) = %q", got)
	}
	if got := Encode(0xFFFF); got != "177777" {
		t.Fatalf("Encode(0xFFFF) = %q", got)
	}
}

func TestDecodeRejectsWrongWidth(t *testing.T) {
	for _, lit := range []string{"", "100", "00100", "0001000"} {
		if _, err := Decode(lit); !errors.Is(err, ErrLiteralWidth) {
			t.Fatalf("Decode(%q): expected ErrLiteralWidth, got %v", lit, err)
		}
	}
}

func TestDecodeRejectsBadDigits(t *testing.T) {
	for _, lit := range []string{"000008", "000a00", "00 100", "-00100"} {
		if _, err := Decode(lit); !errors.Is(err, ErrBadDigit) {
			t.Fatalf("Decode(%q): expected ErrBadDigit, got %v", lit, err)
		}
	}
}

func TestDecodeRejectsValuesOverSixteenBits(t *testing.T) {
	for _, lit := range []string{"200000", "777777"} {
		if _, err := Decode(lit); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Decode(%q): expected ErrOutOfRange, got %v", lit, err)
		}
	}
}

func TestWordBytesAreLowByteFirst(t *testing.T) {
	got := AppendBytes(nil, 0o012700)
	want := []byte{0xC0, 0x15}
	if !bytes.Equal(got, want) {
		t.Fatalf("AppendBytes: got % X want % X", got, want)
	}
	if w := FromBytes(0xC0, 0x15); w != 0o012700 {
		t.Fatalf("FromBytes: got %06o", uint16(w))
	}
}
