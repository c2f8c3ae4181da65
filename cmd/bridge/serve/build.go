package servecmder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/papercomputeco/bridge/pkg/config"
	"github.com/papercomputeco/bridge/pkg/eventstream"
	"github.com/papercomputeco/bridge/pkg/eventstream/kafka"
	"github.com/papercomputeco/bridge/pkg/eventstream/nop"
	"github.com/papercomputeco/bridge/pkg/logger"
)

// newLogger logs pretty to a terminal and JSON everywhere else.
func newLogger(debug bool, w io.Writer) *slog.Logger {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}

	return logger.New(
		logger.WithDebug(debug),
		logger.WithWriter(w),
		logger.WithPretty(tty),
		logger.WithJSON(!tty),
		logger.WithColor(tty && !termenv.EnvNoColor()),
	)
}

func newPublisher(c config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	if len(c.KafkaBrokers) == 0 {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: c.KafkaBrokers,
		Topic:   c.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	log.Info("publishing turn events", "brokers", c.KafkaBrokers, "topic", c.KafkaTopic)
	return p, nil
}

// parseTimeout reads target.timeout. Empty means the client default.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid target.timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid target.timeout %q: must not be negative", s)
	}
	return d, nil
}
