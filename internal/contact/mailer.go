package contact

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Mailer hands a message to the mail relay and waits for the outcome.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// DispatchError wraps any failure reaching or talking to the relay.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string { return fmt.Sprintf("mail dispatch failed: %v", e.Err) }

func (e *DispatchError) Unwrap() error { return e.Err }

// SMTPMailer delivers through an authenticated SMTP relay. Secure selects
// implicit TLS (port 465); otherwise STARTTLS is used when offered.
type SMTPMailer struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
	Timeout  time.Duration
}

// Send builds a fresh dialer per call, so concurrent requests share nothing.
// The relay call is bounded by Timeout and ctx; on expiry the background
// send is abandoned and a DispatchError is returned.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", msg.From, msg.FromName)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Reply-To", msg.ReplyTo)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	gm.AddAlternative("text/html", msg.HTML)

	d := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	d.SSL = m.Secure

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(gm)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &DispatchError{Err: err}
		}
		return nil
	case <-ctx.Done():
		return &DispatchError{Err: ctx.Err()}
	}
}
