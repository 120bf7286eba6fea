package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/hanshuebner/odt-uploader/internal/logging"
	"github.com/hanshuebner/odt-uploader/internal/octal"
	"github.com/hanshuebner/odt-uploader/internal/transport"
	"github.com/hanshuebner/odt-uploader/internal/upload"
)

var cli struct {
	Port    string `arg:"" help:"Serial device wired to the console (e.g. /dev/ttyUSB0)."`
	File    string `arg:"" type:"existingfile" help:"Binary image to load."`
	Address string `arg:"" help:"Destination address in memory, octal."`

	Config     string `name:"config" type:"existingfile" optional:"" help:"TOML file tuning timeouts and pacing."`
	NoProgress bool   `name:"no-progress" help:"Suppress the transfer progress bar."`
	Verbose    bool   `short:"v" help:"Trace every byte exchanged with the console."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("odt-uploader"),
		kong.Description("Load a binary image into PDP-11 memory through the ODT console."),
	)

	if cli.Verbose {
		logging.ConfigureDebug()
	} else {
		logging.ConfigureRuntime()
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "odt-uploader: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	destination, err := parseAddress(cli.Address)
	if err != nil {
		return err
	}

	cfg := upload.DefaultConfig()
	if cli.Config != "" {
		cfg, err = loadTuningConfig(cli.Config)
		if err != nil {
			return err
		}
	}

	payload, err := os.ReadFile(cli.File)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	log.Info().
		Str("port", cli.Port).
		Int("baud", transport.BaudRate).
		Str("file", cli.File).
		Int("bytes", len(payload)).
		Bool("padded", len(payload)%2 != 0).
		Str("address", octal.Encode(destination)).
		Msg("upload")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := upload.NewSession(transport.SerialOpener{Device: cli.Port}, destination, payload, cfg)
	if !cli.NoProgress {
		attachProgress(session, len(upload.PadEven(payload)))
	}
	return session.Run(ctx)
}

// parseAddress reads the destination operand from the command line. The
// monitor addresses a 16-bit space, so anything past 177777 is rejected
// here rather than at the console.
func parseAddress(s string) (octal.Word, error) {
	v, err := strconv.ParseUint(s, 8, 16)
	if err != nil {
		return 0, fmt.Errorf("address %q: want up to six octal digits within 177777", s)
	}
	return octal.Word(v), nil
}

func attachProgress(session *upload.Session, total int) {
	if total == 0 {
		return
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("streaming"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	session.OnProgress(func(written, _ int) {
		_ = bar.Set(written)
	})
}
