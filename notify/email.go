package notify

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"prodbot/config"
)

// EmailNotifier sends notifications over authenticated SMTP.
type EmailNotifier struct {
	cfg config.SMTPConfig
}

// NewEmailNotifier creates a notifier using the given mail account.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

// Send formats and delivers the event to its recipient. Authentication and
// delivery failures are returned for the caller to log; they are not retried
// here.
func (n *EmailNotifier) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := Format(ev)

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.Account)
	m.SetHeader("To", ev.Recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Account, n.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s email to %s: %v", ev.Kind, ev.Recipient, err)
	}
	return nil
}
