// Package notify tells requesters what happened to their deployment
// requests.
package notify

import (
	"context"
	"sync"
)

// EmailSender defines the interface for sending emails.
// Implementations can be swapped (SES, SMTP) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// StubSender records messages instead of sending them. Used in development
// and tests when no email provider is configured.
type StubSender struct {
	mu   sync.Mutex
	sent []EmailMessage
}

func NewStubSender() *StubSender {
	return &StubSender{}
}

func (s *StubSender) Send(_ context.Context, msg EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (s *StubSender) Sent() []EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EmailMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

var _ EmailSender = (*StubSender)(nil)
