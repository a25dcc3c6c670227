package mailer

import (
	"context"
	"fmt"
	"time"

	gomail "gopkg.in/mail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPClient struct {
	from   string
	dialer sender
	// backoff between attempts; attempt n waits n*backoff
	backoff time.Duration
}

func NewSMTPClient(host string, port int, username, password, from string) (*SMTPClient, error) {
	if host == "" {
		return nil, ErrNotConfigured
	}
	if from == "" {
		return nil, fmt.Errorf("mailer: from address is required")
	}
	d := gomail.NewDialer(host, port, username, password)
	d.Timeout = 10 * time.Second
	return &SMTPClient{from: from, dialer: d, backoff: time.Second}, nil
}

func (c *SMTPClient) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", c.from, FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = c.dialer.DialAndSend(m); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * c.backoff):
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, err)
}
