package email

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stencilcms/stencil/ports"
)

// NoopSender logs emails instead of sending them. Used when no SMTP
// server is configured.
type NoopSender struct {
	logger zerolog.Logger
}

// NewNoopSender creates a logging-only email sender.
func NewNoopSender(logger zerolog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message and discards it.
func (s *NoopSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email discarded (no SMTP configured)")
	return nil
}

// SendWelcome logs the welcome message and discards it.
func (s *NoopSender) SendWelcome(ctx context.Context, to, name string) error {
	s.logger.Info().
		Str("to", to).
		Str("name", name).
		Msg("welcome email discarded (no SMTP configured)")
	return nil
}

// Ensure interface compliance.
var _ ports.EmailSender = (*NoopSender)(nil)
