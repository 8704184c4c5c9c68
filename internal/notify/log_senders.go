// Package notify provides notification delivery backends for workflow
// actions. The log senders stand in where no real gateway is configured.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender writes outgoing email to the log instead of delivering it.
type LogEmailSender struct {
	logger zerolog.Logger
}

// NewLogEmailSender creates a logging email sender.
func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("notification sent")
	return nil
}

// LogSMSSender writes outgoing SMS to the log instead of delivering it.
type LogSMSSender struct {
	logger zerolog.Logger
}

// NewLogSMSSender creates a logging SMS sender.
func NewLogSMSSender(logger zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSMSSender) SendSMS(ctx context.Context, to, message string) error {
	s.logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Str("message", message).
		Msg("notification sent")
	return nil
}
