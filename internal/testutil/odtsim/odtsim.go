// Package odtsim simulates a PDP-11 console running its resident ODT
// monitor, so the uploader can be driven deterministically in tests.
//
// Console implements both transport.Opener and transport.Port. In
// command mode every host byte is echoed and interpreted against a
// 64 KiB memory image and a register file; the go command switches the
// console to the raw, echo-free discipline of the running loader. The
// raw phase implements the loader contract rather than emulating
// instructions: a program started at address g reads its destination
// from the word at g+2 and its word count from the word at g+6,
// consumes two bytes per word low byte first, then halts, at which
// point the monitor prints a halt report and a fresh prompt.
//
// The dialogue is strict: addresses and values must be exactly six
// octal digits, word addresses must be even, and anything the monitor
// cannot parse is answered with ? and recorded as a violation for the
// test to surface. Reads from an empty output queue report
// transport.ErrReadTimeout immediately, so no test spends wall-clock
// time waiting on the simulated machine.
package odtsim

import (
	"errors"
	"fmt"
	"time"

	"github.com/hanshuebner/odt-uploader/internal/octal"
	"github.com/hanshuebner/odt-uploader/internal/transport"
)

const (
	prompt = '@'
	cr     = '\r'
	lf     = '\n'
)

// haltPC is what the halt report prints: the word after the trailing
// HALT of the 20-word loader the raw contract describes.
const haltPC = 0o50

// Faults the injection helpers arm.
var (
	ErrInjectedOpen  = errors.New("odtsim: injected open fault")
	ErrInjectedWrite = errors.New("odtsim: injected write fault")
)

type openTarget struct {
	active   bool
	register bool
	addr     octal.Word
	reg      int
}

// Console is one simulated target machine. Not safe for concurrent use;
// the uploader session drives it from a single goroutine.
type Console struct {
	pending []byte // console output the host has not read yet
	writes  []byte // every byte the host wrote, in order

	mem  [1 << 16]byte
	regs [8]octal.Word

	line string
	open openTarget
	raw  bool

	rawDest     octal.Word
	rawRemain   int
	rawReceived int
	goAddr      octal.Word

	echoes    int
	corruptAt int // 1-based echo ordinal to corrupt, 0 never
	mute      bool
	failOpen  bool
	failRawAt int // 1-based raw byte ordinal to fail, 0 never

	closed    bool
	violation error
}

var (
	_ transport.Opener = (*Console)(nil)
	_ transport.Port   = (*Console)(nil)
)

func New() *Console {
	return &Console{}
}

// CorruptEcho arms a bit-flip on the nth echoed command character
// (1-based). Exactly one echo is corrupted.
func (c *Console) CorruptEcho(n int) { c.corruptAt = n }

// MutePrompt silences the console completely; the monitor never answers.
func (c *Console) MutePrompt() { c.mute = true }

// FailOpen makes Open report a fault instead of a port.
func (c *Console) FailOpen() { c.failOpen = true }

// FailRawWriteAt makes the nth raw-phase byte (1-based) fail at the
// transport layer before it is consumed.
func (c *Console) FailRawWriteAt(n int) { c.failRawAt = n }

// Writes returns every byte the host wrote, interactive and raw.
func (c *Console) Writes() []byte {
	out := make([]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// RawReceived reports how many raw-phase bytes the loader consumed.
func (c *Console) RawReceived() int { return c.rawReceived }

// MemoryWord assembles the word at addr from the memory image.
func (c *Console) MemoryWord(addr octal.Word) octal.Word {
	return octal.FromBytes(c.mem[addr], c.mem[addr+1])
}

// MemoryBytes copies n bytes of the memory image starting at addr.
func (c *Console) MemoryBytes(addr octal.Word, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = c.mem[addr+octal.Word(i)]
	}
	return out
}

// Registers returns the register file.
func (c *Console) Registers() [8]octal.Word { return c.regs }

// Closed reports whether the host closed the port.
func (c *Console) Closed() bool { return c.closed }

// Violation returns the first command the monitor could not parse, nil
// when the whole dialogue stayed well-formed.
func (c *Console) Violation() error { return c.violation }

func (c *Console) Open() (transport.Port, error) {
	if c.failOpen {
		return nil, ErrInjectedOpen
	}
	return c, nil
}

func (c *Console) Close() error {
	c.closed = true
	return nil
}

func (c *Console) ReadByte(timeout time.Duration) (byte, error) {
	if len(c.pending) == 0 {
		return 0, transport.ErrReadTimeout
	}
	b := c.pending[0]
	c.pending = c.pending[1:]
	return b, nil
}

func (c *Console) WriteByte(b byte) error {
	if c.closed {
		return errors.New("odtsim: write on closed port")
	}
	if c.raw && c.failRawAt > 0 && c.rawReceived+1 == c.failRawAt {
		return ErrInjectedWrite
	}
	c.writes = append(c.writes, b)
	if c.raw {
		c.consumeRaw(b)
	} else {
		c.interpret(b)
	}
	return nil
}

func (c *Console) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := c.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (c *Console) consumeRaw(b byte) {
	c.mem[c.rawDest] = b
	c.rawDest++
	c.rawReceived++
	c.rawRemain--
	if c.rawRemain == 0 {
		c.raw = false
		c.halt()
	}
}

// halt prints the monitor's report after the program stops: a line
// break, the PC following the HALT, and a fresh prompt.
func (c *Console) halt() {
	c.emit(cr, lf)
	c.emitString(octal.Encode(c.goAddr + haltPC))
	c.emit(cr, lf)
	c.emit(prompt)
}

func (c *Console) interpret(b byte) {
	switch b {
	case cr:
		c.commandReturn()
	case '/':
		c.echo(b)
		c.openLocation()
	case 'g', 'G':
		c.echo(b)
		c.goCommand()
	default:
		c.echo(b)
		c.line += string(b)
	}
}

func (c *Console) commandReturn() {
	line := c.line
	c.line = ""
	switch {
	case c.open.active:
		c.deposit(line)
	case line == "":
		// Bare carriage return is the attention poke.
		c.emit(cr, lf)
		c.emit(prompt)
	default:
		c.reject(fmt.Errorf("odtsim: unterminated command %q", line))
	}
}

func (c *Console) openLocation() {
	line := c.line
	c.line = ""
	if len(line) == 2 && (line[0] == 'R' || line[0] == 'r') && line[1] >= '0' && line[1] <= '7' {
		reg := int(line[1] - '0')
		c.open = openTarget{active: true, register: true, reg: reg}
		c.emitString(octal.Encode(c.regs[reg]))
		c.emit(' ')
		return
	}
	addr, err := octal.Decode(line)
	if err != nil {
		c.reject(fmt.Errorf("odtsim: open %q: %w", line, err))
		return
	}
	if addr%2 != 0 {
		c.reject(fmt.Errorf("odtsim: open odd address %06o", uint16(addr)))
		return
	}
	c.open = openTarget{active: true, addr: addr}
	c.emitString(octal.Encode(c.MemoryWord(addr)))
	c.emit(' ')
}

func (c *Console) deposit(line string) {
	target := c.open
	c.open = openTarget{}
	w, err := octal.Decode(line)
	if err != nil {
		c.reject(fmt.Errorf("odtsim: deposit %q: %w", line, err))
		return
	}
	if target.register {
		c.regs[target.reg] = w
	} else {
		c.mem[target.addr] = byte(w)
		c.mem[target.addr+1] = byte(w >> 8)
	}
	c.emit(cr, lf)
	c.emit(prompt)
}

func (c *Console) goCommand() {
	line := c.line
	c.line = ""
	addr, err := octal.Decode(line)
	if err != nil {
		c.reject(fmt.Errorf("odtsim: go %q: %w", line, err))
		return
	}
	c.goAddr = addr
	dest := c.MemoryWord(addr + 2)
	count := int(c.MemoryWord(addr + 6))
	if count == 0 {
		c.halt()
		return
	}
	c.rawDest = dest
	c.rawRemain = 2 * count
	c.raw = true
}

// reject answers nonsense the way the monitor does and records the first
// violation.
func (c *Console) reject(err error) {
	c.open = openTarget{}
	if c.violation == nil {
		c.violation = err
	}
	c.emit('?', cr, lf)
	c.emit(prompt)
}

func (c *Console) echo(b byte) {
	c.echoes++
	if c.corruptAt > 0 && c.echoes == c.corruptAt {
		b ^= 0x40
	}
	c.emit(b)
}

func (c *Console) emit(bs ...byte) {
	if c.mute {
		return
	}
	c.pending = append(c.pending, bs...)
}

func (c *Console) emitString(s string) {
	c.emit([]byte(s)...)
}
