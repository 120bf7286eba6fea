package odt

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hanshuebner/odt-uploader/internal/octal"
	"github.com/hanshuebner/odt-uploader/internal/transport"
)

// Monitor dialogue characters. The prompt announces the monitor is ready
// for a command; a slash opens the addressed location and a space follows
// the printed contents; carriage return deposits and closes.
const (
	promptChar   = '@'
	openChar     = '/'
	openedChar   = ' '
	registerChar = 'R'
	goChar       = 'g'
	cr           = '\r'
)

var ErrEchoMismatch = errors.New("odt: echo mismatch")

// Config bounds the driver's read windows.
type Config struct {
	// EchoTimeout bounds each echoed character and the short prints the
	// monitor makes while completing a command.
	EchoTimeout time.Duration
	// PromptTimeout bounds the initial ready-prompt scan.
	PromptTimeout time.Duration
	// CompletionTimeout bounds the prompt's reappearance after the
	// started program halts.
	CompletionTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		EchoTimeout:       2 * time.Second,
		PromptTimeout:     5 * time.Second,
		CompletionTimeout: 10 * time.Second,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.EchoTimeout <= 0 {
		c.EchoTimeout = def.EchoTimeout
	}
	if c.PromptTimeout <= 0 {
		c.PromptTimeout = def.PromptTimeout
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = def.CompletionTimeout
	}
	return c
}

// Driver speaks the monitor's command language over one open port. It
// owns no lifecycle: the caller opens and closes the port.
type Driver struct {
	port transport.Port
	cfg  Config
}

func New(port transport.Port, cfg Config) *Driver {
	return &Driver{port: port, cfg: cfg.WithDefaults()}
}

// Attention pokes the monitor with a bare carriage return so it prints a
// fresh prompt. The poke itself is not echo-verified.
func (d *Driver) Attention() error {
	return d.send(cr)
}

// AwaitPrompt consumes console output until the ready prompt appears.
// Whatever the monitor prints on the way is skimmed.
func (d *Driver) AwaitPrompt() error {
	return d.consumeUntil(promptChar, d.cfg.PromptTimeout)
}

// OpenLocation opens the memory cell at addr for deposit. The monitor
// echoes the address and the slash, prints the cell's current contents
// and stops at a space with the location open.
func (d *Driver) OpenLocation(addr octal.Word) error {
	if err := d.sendVerifiedString(octal.Encode(addr)); err != nil {
		return err
	}
	if err := d.sendVerified(openChar); err != nil {
		return err
	}
	return d.consumeUntil(openedChar, d.cfg.EchoTimeout)
}

// WriteWord deposits w into the open location and closes it. The digits
// are echo-verified; the closing carriage return is answered with a line
// break and a fresh prompt, which are skimmed.
func (d *Driver) WriteWord(w octal.Word) error {
	if err := d.sendVerifiedString(octal.Encode(w)); err != nil {
		return err
	}
	if err := d.send(cr); err != nil {
		return err
	}
	return d.consumeUntil(promptChar, d.cfg.EchoTimeout)
}

// SetRegister deposits w into CPU register reg, same discipline as a
// memory cell. The monitor addresses registers R0 through R7.
func (d *Driver) SetRegister(reg int, w octal.Word) error {
	if reg < 0 || reg > 7 {
		return fmt.Errorf("odt: no such register: R%d", reg)
	}
	if err := d.sendVerified(registerChar); err != nil {
		return err
	}
	if err := d.sendVerified(byte('0' + reg)); err != nil {
		return err
	}
	if err := d.sendVerified(openChar); err != nil {
		return err
	}
	if err := d.consumeUntil(openedChar, d.cfg.EchoTimeout); err != nil {
		return err
	}
	return d.WriteWord(w)
}

// Start issues the go command at addr. Nothing is read back: control
// leaves the monitor the instant the command lands, so the echoes stay
// on the wire until the next prompt scan skims them.
func (d *Driver) Start(addr octal.Word) error {
	for _, c := range []byte(octal.Encode(addr)) {
		if err := d.send(c); err != nil {
			return err
		}
	}
	return d.send(goChar)
}

// AwaitReturn consumes console output until the prompt reappears, which
// means the started program halted and the monitor has the console back.
func (d *Driver) AwaitReturn() error {
	return d.consumeUntil(promptChar, d.cfg.CompletionTimeout)
}

// send transmits one byte without echo verification.
func (d *Driver) send(b byte) error {
	if err := d.port.WriteByte(b); err != nil {
		return fmt.Errorf("odt: write %s: %w", printByte(b), err)
	}
	trace("tx", b)
	return nil
}

// sendVerified transmits one byte and requires the monitor to echo it
// back unchanged within the echo window.
func (d *Driver) sendVerified(b byte) error {
	if err := d.send(b); err != nil {
		return err
	}
	got, err := d.port.ReadByte(d.cfg.EchoTimeout)
	if err != nil {
		return fmt.Errorf("odt: echo of %s: %w", printByte(b), err)
	}
	trace("rx", got)
	if got != b {
		return fmt.Errorf("%w: sent %s, got %s", ErrEchoMismatch, printByte(b), printByte(got))
	}
	return nil
}

func (d *Driver) sendVerifiedString(s string) error {
	for _, c := range []byte(s) {
		if err := d.sendVerified(c); err != nil {
			return err
		}
	}
	return nil
}

// consumeUntil reads and discards console output until want appears. The
// per-read window shrinks toward the deadline, so a single read timeout
// means the whole window elapsed.
func (d *Driver) consumeUntil(want byte, window time.Duration) error {
	deadline := time.Now().Add(window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("odt: waiting for %s: %w", printByte(want), transport.ErrReadTimeout)
		}
		b, err := d.port.ReadByte(remaining)
		if err != nil {
			return fmt.Errorf("odt: waiting for %s: %w", printByte(want), err)
		}
		trace("rx", b)
		if b == want {
			return nil
		}
	}
}

func trace(dir string, b byte) {
	log.Debug().Str(dir, printByte(b)).Msg("console")
}

// printByte renders a console byte as hex plus its printable form.
func printByte(b byte) string {
	if b >= 0x20 && b < 0x7F {
		return fmt.Sprintf("%02x(%c)", b, b)
	}
	return fmt.Sprintf("%02x(.)", b)
}
