package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/hanshuebner/odt-uploader/internal/upload"
)

// odt-uploader config.toml key mapping to transfer timing settings. Every
// value is a Go duration string such as "5s" or "300us".
type fileConfig struct {
	PromptTimeout     string `toml:"prompt_timeout"`
	EchoTimeout       string `toml:"echo_timeout"`
	CompletionTimeout string `toml:"completion_timeout"`
	StartSettle       string `toml:"start_settle"`
	PaceDelay         string `toml:"pace_delay"`
}

// loadTuningConfig starts from the defaults and overrides only the keys the
// file actually defines, so a one-line config stays a one-line config.
func loadTuningConfig(path string) (upload.Config, error) {
	cfg := upload.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return upload.Config{}, fmt.Errorf("load tuning config: %w", err)
	}

	overlays := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"prompt_timeout", raw.PromptTimeout, &cfg.PromptTimeout},
		{"echo_timeout", raw.EchoTimeout, &cfg.EchoTimeout},
		{"completion_timeout", raw.CompletionTimeout, &cfg.CompletionTimeout},
		{"start_settle", raw.StartSettle, &cfg.StartSettle},
		{"pace_delay", raw.PaceDelay, &cfg.PaceDelay},
	}
	for _, o := range overlays {
		if !meta.IsDefined(o.key) {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(o.value))
		if err != nil {
			return upload.Config{}, fmt.Errorf("load tuning config: %s: %w", o.key, err)
		}
		if d < 0 {
			return upload.Config{}, fmt.Errorf("load tuning config: %s: negative duration", o.key)
		}
		*o.dst = d
	}
	return cfg, nil
}
