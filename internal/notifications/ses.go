package notifications

import (
	"context"
	"fmt"

	"clinic/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type sesClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESSender struct {
	client sesClient
	log    *logger.Logger
}

// NewSESSender loads the default AWS credential chain for region.
func NewSESSender(ctx context.Context, region string, log *logger.Logger) (*SESSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(awsCfg), log: log}, nil
}

func (s *SESSender) Send(ctx context.Context, msg Email) error {
	output, err := s.client.SendEmail(ctx, buildSESInput(msg))
	if err != nil {
		s.log.Error("SES send failed", "error", err, "to", msg.recipients())
		return fmt.Errorf("SES send failed: %w", err)
	}

	s.log.Info("email sent via SES", "to", msg.recipients(), "subject", msg.Subject, "message_id", aws.ToString(output.MessageId))
	return nil
}

func buildSESInput(msg Email) *sesv2.SendEmailInput {
	dest := &types.Destination{}
	for _, to := range msg.To {
		dest.ToAddresses = append(dest.ToAddresses, to.String())
	}
	for _, cc := range msg.CC {
		dest.CcAddresses = append(dest.CcAddresses, cc.String())
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From.String()),
		Destination:      dest,
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(msg.HTML),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
}

var _ EmailSender = (*SESSender)(nil)
