package mailer

import (
	"context"
	"errors"
)

const (
	FromName   = "Academy"
	maxRetries = 3
)

var ErrNotConfigured = errors.New("mailer: smtp host not configured")

type Message struct {
	To      string
	Subject string
	Body    string
}

type Client interface {
	Send(ctx context.Context, msg Message) error
}
