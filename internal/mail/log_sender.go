package mail

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender writes messages to the log instead of delivering them. Used when
// MAIL_DRIVER=log.
type LogSender struct {
	log logrus.FieldLogger
}

func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"to_name": msg.ToName,
		"subject": msg.Subject,
		"bytes":   len(msg.HTMLBody),
	}).Info("mail captured by log driver")
	return nil
}
