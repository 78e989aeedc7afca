// Package notify delivers conference confirmation emails. Delivery is
// fire-and-forget: callers enqueue on a Sink and never see send failures.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-openapi/strfmt"
)

// Confirmation subject and body template.
const (
	ConfirmationSubject = "You created a new Conference!"
	confirmationBody    = "Hi, you have created a following conference:\r\n\r\n%s"
)

var (
	// ErrInvalidAddress is returned for recipients that are not email
	// addresses.
	ErrInvalidAddress = errors.New("notify: invalid email address")

	// ErrQueueFull is returned when the sink cannot accept more messages.
	ErrQueueFull = errors.New("notify: queue full")

	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("notify: sink closed")
)

// Mailer sends a plain text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, text string) error
}

// Sink accepts a confirmation for the organizer at email describing the
// conference they created.
type Sink interface {
	Enqueue(ctx context.Context, email, conferenceInfo string) error
}

// Noop discards every message.
type Noop struct{}

func (Noop) Enqueue(context.Context, string, string) error { return nil }
func (Noop) Send(context.Context, string, string, string) error { return nil }

type message struct {
	to   string
	info string
}

// AsyncSink queues confirmations and sends them from a single background
// worker.
type AsyncSink struct {
	mailer Mailer
	logger *slog.Logger
	queue  chan message

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts a sink holding up to size pending messages.
func NewAsyncSink(mailer Mailer, size int, logger *slog.Logger) *AsyncSink {
	if logger == nil {
		logger = slog.Default()
	}
	if size < 1 {
		size = 1
	}
	s := &AsyncSink{
		mailer: mailer,
		logger: logger,
		queue:  make(chan message, size),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue validates email and queues the message without blocking.
func (s *AsyncSink) Enqueue(_ context.Context, email, conferenceInfo string) error {
	if !strfmt.IsEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, email)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- message{to: email, info: conferenceInfo}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits until the queued ones are sent
// or ctx is done.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for m := range s.queue {
		body := fmt.Sprintf(confirmationBody, m.info)
		if err := s.mailer.Send(context.Background(), m.to, ConfirmationSubject, body); err != nil {
			s.logger.Warn("failed to send confirmation email", "to", m.to, "error", err)
			continue
		}
		s.logger.Debug("confirmation email sent", "to", m.to)
	}
}
