package email

import (
	"context"
	"sync"

	"github.com/stencilcms/stencil/ports"
)

// MockSender records sent emails for tests.
type MockSender struct {
	mu       sync.Mutex
	Messages []ports.EmailMessage
	Err      error // returned from every send when set
}

// NewMockSender creates a recording email sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send records the message.
func (s *MockSender) Send(ctx context.Context, msg ports.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

// SendWelcome records a welcome message.
func (s *MockSender) SendWelcome(ctx context.Context, to, name string) error {
	return s.Send(ctx, ports.EmailMessage{To: to, Subject: "welcome", TextBody: name})
}

// Sent returns a copy of the recorded messages.
func (s *MockSender) Sent() []ports.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.EmailMessage, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Ensure interface compliance.
var _ ports.EmailSender = (*MockSender)(nil)
