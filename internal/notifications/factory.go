package notifications

import (
	"context"
	"fmt"

	"clinic/pkg/config"
	"clinic/pkg/logger"
)

// NewEmailSender builds the provider selected by cfg.EmailProvider.
func NewEmailSender(ctx context.Context, cfg *config.Config, log *logger.Logger) (EmailSender, error) {
	switch cfg.EmailProvider {
	case config.ProviderSendGrid:
		return NewSendGridSender(cfg.SendGridAPIKey, log), nil
	case config.ProviderSES:
		return NewSESSender(ctx, cfg.AWSRegion, log)
	case config.ProviderStub, "":
		return NewStubSender(log), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}
