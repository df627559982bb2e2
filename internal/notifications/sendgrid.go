package notifications

import (
	"context"
	"fmt"

	"clinic/pkg/logger"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridSender struct {
	client sendGridClient
	log    *logger.Logger
}

func NewSendGridSender(apiKey string, log *logger.Logger) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		log:    log,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Email) error {
	response, err := s.client.SendWithContext(ctx, buildSendGridMail(msg))
	if err != nil {
		s.log.Error("sendgrid send failed", "error", err, "to", msg.recipients())
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.log.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.recipients())
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}

	s.log.Info("email sent via sendgrid", "to", msg.recipients(), "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

func buildSendGridMail(msg Email) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(msg.From.Name, msg.From.Email))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail(to.Name, to.Email))
	}
	for _, cc := range msg.CC {
		p.AddCCs(mail.NewEmail(cc.Name, cc.Email))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/html", msg.HTML))
	return m
}

var _ EmailSender = (*SendGridSender)(nil)
