package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/hanshuebner/odt-uploader/internal/transport"
)

// Pump pushes the padded payload through the port at the raw-phase
// discipline: no echoes, optional per-byte pacing, cumulative progress.
type Pump struct {
	Port     transport.Port
	Delay    time.Duration
	Progress func(written, total int)
}

// Stream writes data byte by byte. ctx is checked before every write;
// a rejected write ends the stream with the failing position in the
// error.
func (p *Pump) Stream(ctx context.Context, data []byte) error {
	for i, b := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Port.WriteByte(b); err != nil {
			return fmt.Errorf("stream byte %d of %d: %w", i+1, len(data), err)
		}
		if p.Progress != nil {
			p.Progress(i+1, len(data))
		}
		if p.Delay > 0 {
			time.Sleep(p.Delay)
		}
	}
	return nil
}
