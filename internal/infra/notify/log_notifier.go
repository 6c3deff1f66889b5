package notify

import (
	"context"

	"github.com/rs/zerolog"

	"pawplan/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*LogNotifier)(nil)

// LogNotifier stands in for an unconfigured channel: it only logs.
type LogNotifier struct {
	name string
	log  *zerolog.Logger
}

func NewLogNotifier(name string, logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "log_notifier").Str("channel", name).Logger()
	return &LogNotifier{name: name, log: &l}
}

func (n *LogNotifier) Name() string { return n.name }

func (n *LogNotifier) Notify(ctx context.Context, msg adapter.Message) error {
	n.log.Info().
		Str("kind", string(msg.Kind)).
		Str("audience", string(msg.Audience)).
		Str("subject", msg.Subject).
		Msg("notification (not delivered)")
	return nil
}
