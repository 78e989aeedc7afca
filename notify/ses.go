package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used by SESMailer.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends email through AWS SES.
type SESMailer struct {
	client      SESAPI
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

// NewSESMailer returns a mailer sending from fromAddress.
func NewSESMailer(client SESAPI, fromAddress, fromName string, logger *slog.Logger) *SESMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESMailer{client: client, fromAddress: fromAddress, fromName: fromName, logger: logger}
}

// Send implements Mailer.
func (m *SESMailer) Send(ctx context.Context, to, subject, text string) error {
	source := m.fromAddress
	if m.fromName != "" {
		source = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddress)
	}
	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(source),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	m.logger.Debug("email sent via SES", "messageID", aws.ToString(out.MessageId))
	return nil
}

// MailerConfig selects and configures a Mailer.
type MailerConfig struct {
	Provider        string
	FromAddress     string
	FromName        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewMailer builds the mailer named by cfg.Provider. "ses" uses AWS SES;
// "noop" or an unknown provider discards mail.
func NewMailer(cfg MailerConfig, logger *slog.Logger) Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "ses":
		awsCfg := aws.Config{Region: cfg.Region}
		if cfg.AccessKeyID != "" {
			awsCfg.Credentials = aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			)
		}
		return NewSESMailer(ses.NewFromConfig(awsCfg), cfg.FromAddress, cfg.FromName, logger)
	case "noop", "":
		return Noop{}
	default:
		logger.Warn("unknown email provider, using noop", "provider", cfg.Provider)
		return Noop{}
	}
}
