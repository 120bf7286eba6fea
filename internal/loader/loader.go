// Package loader owns the bootstrap program deposited into target memory
// ahead of the raw byte stream. The program is machine code carried as
// data: a fixed sequence of PDP-11 words with two patchable immediate
// operands, the destination address and the word count.
package loader

import (
	"errors"
	"fmt"

	"github.com/hanshuebner/odt-uploader/internal/octal"
)

// Origin is the address the bootstrap is deposited at; Entry is where the
// monitor is told to start it. The program is position-dependent (branch
// offsets assume Origin), so neither is configurable.
const (
	Origin octal.Word = 0o000100
	Entry  octal.Word = 0o000100
)

// Patchable operand fields.
const (
	fieldDestination = "destination_address"
	fieldWordCount   = "word_count"
)

var ErrFieldOverflow = errors.New("loader: patch value exceeds 16 bits")

// bootstrap is the loader program, assembled by hand. It spins on the
// console receiver ready bit and stores two payload bytes per loop pass,
// so R1 counts words. A zero word count falls straight through to the
// HALT. Console receiver registers: RCSR 177560 (bit 200 set when a
// character is ready), RBUF 177562.
var bootstrap = [...]octal.Word{
	0o012700, // 000100         MOV  #dest, R0
	0o000000, // 000102         .WORD dest            (patched)
	0o012701, // 000104         MOV  #count, R1
	0o000000, // 000106         .WORD count           (patched)
	0o005701, // 000110         TST  R1
	0o001415, // 000112         BEQ  done
	0o032737, // 000114  loop:  BIT  #200, @#RCSR
	0o000200, // 000116
	0o177560, // 000120
	0o001774, // 000122         BEQ  loop
	0o113720, // 000124         MOVB @#RBUF, (R0)+
	0o177562, // 000126
	0o032737, // 000130  odd:   BIT  #200, @#RCSR
	0o000200, // 000132
	0o177560, // 000134
	0o001774, // 000136         BEQ  odd
	0o113720, // 000140         MOVB @#RBUF, (R0)+
	0o177562, // 000142
	0o077115, // 000144         SOB  R1, loop
	0o000000, // 000146  done:  HALT
}

// Template is an immutable loader program plus the table of its patchable
// operand offsets.
type Template struct {
	words  []octal.Word
	fields map[string]int
}

// Bootstrap returns the canonical loader template.
func Bootstrap() Template {
	return Template{
		words: bootstrap[:],
		fields: map[string]int{
			fieldDestination: 1,
			fieldWordCount:   3,
		},
	}
}

// Patch fills the destination and word count operands into a fresh copy of
// the program. The template itself is never mutated. Either value failing
// to fit in a 16-bit word is ErrFieldOverflow.
func (t Template) Patch(destination, wordCount uint32) (Image, error) {
	if destination > 0xFFFF {
		return Image{}, fmt.Errorf("%w: %s %#o", ErrFieldOverflow, fieldDestination, destination)
	}
	if wordCount > 0xFFFF {
		return Image{}, fmt.Errorf("%w: %s %#o", ErrFieldOverflow, fieldWordCount, wordCount)
	}
	words := make([]octal.Word, len(t.words))
	copy(words, t.words)
	words[t.fields[fieldDestination]] = octal.Word(destination)
	words[t.fields[fieldWordCount]] = octal.Word(wordCount)
	return Image{words: words}, nil
}

// Image is a patched loader, ready to deposit.
type Image struct {
	words []octal.Word
}

// Words returns the patched program, one element per target word.
func (im Image) Words() []octal.Word {
	out := make([]octal.Word, len(im.words))
	copy(out, im.words)
	return out
}

// Bytes returns the program in target memory order, low byte first.
func (im Image) Bytes() []byte {
	buf := make([]byte, 0, 2*len(im.words))
	for _, w := range im.words {
		buf = octal.AppendBytes(buf, w)
	}
	return buf
}

// Origin returns the deposit address of the image.
func (im Image) Origin() octal.Word { return Origin }

// Entry returns the start address handed to the monitor.
func (im Image) Entry() octal.Word { return Entry }
