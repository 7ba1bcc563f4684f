package cmd

import (
	"log/slog"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/usage"
)

// openRecorder builds the usage sinks enabled in settings. The returned
// recorder is nil when none are enabled; close is always safe to call.
func openRecorder(s *config.Settings) (usage.Recorder, func()) {
	var sinks usage.Multi
	var closers []func() error

	if s.UsageLog {
		sinks = append(sinks, usage.NewFileRecorder(""))
	}

	if s.NATSURL != "" {
		cfg := usage.DefaultNATSConfig()
		cfg.URL = s.NATSURL
		nr, err := usage.NewNATSRecorder(cfg)
		if err != nil {
			slog.Warn("usage publishing disabled", "url", s.NATSURL, "error", err)
		} else {
			sinks = append(sinks, nr)
			closers = append(closers, nr.Close)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("failed to close usage recorder", "error", err)
			}
		}
	}

	switch len(sinks) {
	case 0:
		return nil, closeAll
	case 1:
		return sinks[0], closeAll
	}
	return sinks, closeAll
}
