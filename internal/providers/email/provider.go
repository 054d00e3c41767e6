package email

import "context"

// Provider sends plain-text notification mail.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, body string) error
}

// NoOpProvider is used when no SMTP host is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, body string) error {
	return nil
}
