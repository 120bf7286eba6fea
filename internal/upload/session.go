package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hanshuebner/odt-uploader/internal/loader"
	"github.com/hanshuebner/odt-uploader/internal/octal"
	"github.com/hanshuebner/odt-uploader/internal/odt"
	"github.com/hanshuebner/odt-uploader/internal/transport"
)

// Phase names one step of the transfer session.
type Phase string

const (
	PhaseInit            Phase = "init"
	PhaseWaitPrompt      Phase = "wait_prompt"
	PhaseLoadLoader      Phase = "load_loader"
	PhaseSetParams       Phase = "set_params"
	PhaseStartLoader     Phase = "start_loader"
	PhaseStreamData      Phase = "stream_data"
	PhaseAwaitCompletion Phase = "await_completion"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
)

// addressSpace is the byte size of the target's 16-bit address space.
const addressSpace = 1 << 16

var ErrAddressSpace = errors.New("upload: payload does not fit the address space")

// PhaseError ties a failure to the phase it happened in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Config carries the session's tunable timing knobs. Zero timeout fields
// fall back to the driver defaults; zero StartSettle and PaceDelay mean
// no settling and no pacing.
type Config struct {
	// PromptTimeout bounds the initial monitor prompt scan.
	PromptTimeout time.Duration
	// EchoTimeout bounds each echoed character of the interactive phase.
	EchoTimeout time.Duration
	// CompletionTimeout bounds the prompt's reappearance after the
	// loader ran.
	CompletionTimeout time.Duration
	// StartSettle is the pause between the go command and the first raw
	// byte, giving the loader time to reach its receive loop.
	StartSettle time.Duration
	// PaceDelay spaces raw-phase writes so the loader's busy-wait loop
	// keeps up with the line.
	PaceDelay time.Duration
}

func DefaultConfig() Config {
	drv := odt.DefaultConfig()
	return Config{
		PromptTimeout:     drv.PromptTimeout,
		EchoTimeout:       drv.EchoTimeout,
		CompletionTimeout: drv.CompletionTimeout,
		StartSettle:       100 * time.Millisecond,
		PaceDelay:         transport.ByteDuration(transport.BaudRate),
	}
}

// Session is one single-attempt transfer. It owns the port from open to
// close and walks the fixed phase sequence.
type Session struct {
	opener  transport.Opener
	cfg     Config
	payload []byte
	dest    octal.Word

	phase    Phase
	progress func(written, total int)
}

func NewSession(opener transport.Opener, destination octal.Word, payload []byte, cfg Config) *Session {
	return &Session{
		opener:  opener,
		cfg:     cfg,
		payload: payload,
		dest:    destination,
		phase:   PhaseInit,
	}
}

// OnProgress registers a callback invoked after every raw-phase write
// with the cumulative byte count; the count is monotonic and ends at the
// padded length.
func (s *Session) OnProgress(fn func(written, total int)) {
	s.progress = fn
}

// Phase returns the phase the session is in, PhaseDone or PhaseFailed
// once Run returned.
func (s *Session) Phase() Phase {
	return s.phase
}

// Run executes the transfer. The port is opened first and closed on
// every exit path; ctx is honored between protocol steps and between
// raw-phase writes. A non-nil error is always a *PhaseError naming the
// phase that failed.
func (s *Session) Run(ctx context.Context) error {
	padded := PadEven(s.payload)
	wordCount := uint32(len(padded) / 2)

	s.enter(PhaseInit)
	if int(s.dest)+len(padded) > addressSpace {
		return s.fail(fmt.Errorf("%w: %d bytes at %s", ErrAddressSpace, len(padded), octal.Encode(s.dest)))
	}
	port, err := s.opener.Open()
	if err != nil {
		return s.fail(fmt.Errorf("open transport: %w", err))
	}
	defer port.Close()

	drv := odt.New(port, odt.Config{
		EchoTimeout:       s.cfg.EchoTimeout,
		PromptTimeout:     s.cfg.PromptTimeout,
		CompletionTimeout: s.cfg.CompletionTimeout,
	})

	s.enter(PhaseWaitPrompt)
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	if err := drv.Attention(); err != nil {
		return s.fail(err)
	}
	if err := drv.AwaitPrompt(); err != nil {
		return s.fail(err)
	}

	s.enter(PhaseLoadLoader)
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	img, err := loader.Bootstrap().Patch(uint32(s.dest), wordCount)
	if err != nil {
		return s.fail(err)
	}
	log.Info().
		Str("origin", octal.Encode(img.Origin())).
		Int("words", len(img.Words())).
		Msg("installing loader")
	for i, w := range img.Words() {
		if err := drv.OpenLocation(img.Origin() + octal.Word(2*i)); err != nil {
			return s.fail(err)
		}
		if err := drv.WriteWord(w); err != nil {
			return s.fail(err)
		}
	}

	s.enter(PhaseSetParams)
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	if err := drv.SetRegister(0, s.dest); err != nil {
		return s.fail(err)
	}
	if err := drv.SetRegister(1, octal.Word(wordCount)); err != nil {
		return s.fail(err)
	}

	s.enter(PhaseStartLoader)
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	log.Info().Str("entry", octal.Encode(img.Entry())).Msg("starting loader")
	if err := drv.Start(img.Entry()); err != nil {
		return s.fail(err)
	}
	if err := sleepCtx(ctx, s.cfg.StartSettle); err != nil {
		return s.fail(err)
	}

	s.enter(PhaseStreamData)
	if len(padded) > 0 {
		log.Info().
			Int("bytes", len(padded)).
			Dur("pace", s.cfg.PaceDelay).
			Msg("streaming payload")
		pump := &Pump{Port: port, Delay: s.cfg.PaceDelay, Progress: s.progress}
		if err := pump.Stream(ctx, padded); err != nil {
			return s.fail(err)
		}
	}

	s.enter(PhaseAwaitCompletion)
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	if err := drv.AwaitReturn(); err != nil {
		return s.fail(err)
	}

	s.enter(PhaseDone)
	log.Info().Int("bytes", len(padded)).Msg("transfer complete")
	return nil
}

func (s *Session) enter(p Phase) {
	s.phase = p
	log.Debug().Str("phase", string(p)).Msg("session")
}

func (s *Session) fail(err error) error {
	phase := s.phase
	s.phase = PhaseFailed
	log.Error().Str("phase", string(phase)).Err(err).Msg("session failed")
	return &PhaseError{Phase: phase, Err: err}
}

// PadEven returns the payload extended to even length with a single zero
// byte. The input is never mutated; an even payload is returned as is.
func PadEven(payload []byte) []byte {
	if len(payload)%2 == 0 {
		return payload
	}
	out := make([]byte, len(payload)+1)
	copy(out, payload)
	return out
}

// sleepCtx waits d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
