package notify

import (
	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

// SMTPSender delivers plain-text mail through one SMTP account.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	if host == "" {
		return nil
	}
	return &SMTPSender{
		dialer: mail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// LogSender stands in when mail is disabled: it records the decision
// without touching the network.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) Send(to, subject, body string) error {
	s.Log.Info("email_disabled", zap.String("to", to), zap.String("subject", subject))
	return nil
}
