package notifications

import (
	"context"
	"fmt"
	"strings"

	"clinic/pkg/logger"
)

type Address struct {
	Name  string
	Email string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

type Email struct {
	From    Address
	To      []Address
	CC      []Address
	Subject string
	HTML    string
}

func (e Email) recipients() string {
	addrs := make([]string, 0, len(e.To))
	for _, a := range e.To {
		addrs = append(addrs, a.Email)
	}
	return strings.Join(addrs, ",")
}

// EmailSender delivers one composed message. Implementations can be swapped
// without changing the dispatcher.
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// StubSender logs messages instead of sending them. Used for local runs and
// when no provider is configured.
type StubSender struct {
	log *logger.Logger
}

func NewStubSender(log *logger.Logger) *StubSender {
	return &StubSender{log: log}
}

func (s *StubSender) Send(ctx context.Context, msg Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("stub email sender: would send email",
		"from", msg.From.String(),
		"to", msg.recipients(),
		"cc_count", len(msg.CC),
		"subject", msg.Subject,
	)
	return nil
}

var _ EmailSender = (*StubSender)(nil)
