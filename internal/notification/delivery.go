package notification

import (
	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
)

// LogSender is the development delivery backend: it records outbound email
// and WhatsApp sends in the log instead of calling a provider. Swapped for a
// real sender by configuration at wiring time.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender creates a logging delivery sender
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

// SendEmail logs an outbound email
func (s *LogSender) SendEmail(to, subject, body string) error {
	s.logger.WithFields(map[string]interface{}{
		"channel": "email",
		"to":      to,
		"subject": subject,
	}).Info("Delivery queued")
	return nil
}

// SendWhatsApp logs an outbound WhatsApp message
func (s *LogSender) SendWhatsApp(to, body string) error {
	s.logger.WithFields(map[string]interface{}{
		"channel": "whatsapp",
		"to":      to,
	}).Info("Delivery queued")
	return nil
}

var _ interfaces.DeliverySender = (*LogSender)(nil)
