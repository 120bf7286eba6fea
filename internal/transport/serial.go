package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// BaudRate is the console line speed. The monitor's framing is fixed at
// 38400 bps, 8 data bits, no parity, one stop bit.
const BaudRate = 38400

// SerialOpener opens a hardware serial device at the monitor's framing.
type SerialOpener struct {
	Device string
}

var _ Opener = SerialOpener{}

func (o SerialOpener) Open() (Port, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	dev, err := serial.Open(o.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", o.Device, err)
	}
	return &serialPort{dev: dev}, nil
}

// serialPort adapts the serial library to the single-byte reads the
// protocol driver works in.
type serialPort struct {
	dev serial.Port
}

var _ Port = (*serialPort)(nil)

func (p *serialPort) WriteByte(b byte) error {
	_, err := p.dev.Write([]byte{b})
	if err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

func (p *serialPort) Write(buf []byte) (int, error) {
	n, err := p.dev.Write(buf)
	if err != nil {
		return n, fmt.Errorf("transport: write: %w", err)
	}
	return n, nil
}

func (p *serialPort) ReadByte(timeout time.Duration) (byte, error) {
	if err := p.dev.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("transport: set read timeout: %w", err)
	}
	var one [1]byte
	n, err := p.dev.Read(one[:])
	if err != nil {
		return 0, fmt.Errorf("transport: read: %w", err)
	}
	if n == 0 {
		// The serial layer reports an expired read window as an empty
		// read with a nil error.
		return 0, ErrReadTimeout
	}
	return one[0], nil
}

func (p *serialPort) Close() error {
	return p.dev.Close()
}
