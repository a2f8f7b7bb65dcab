package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/lead-crm/internal/archive"
	appconfig "github.com/wolfman30/lead-crm/internal/config"
	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/internal/notify"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

// BuildEmailSender selects the outbound email provider from EMAIL_PROVIDER.
// It returns nil when email is disabled.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (notify.EmailSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; email disabled")
			return nil, nil
		}
		return sender, nil
	case "ses":
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: aws config loader required for ses")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger), nil
	case "", "none":
		return nil, nil
	}
	return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
}

// BuildNotifier wires the new-lead email notification. It returns nil
// (an untyped nil interface) when email or NOTIFY_EMAIL is not configured.
func BuildNotifier(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (leads.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if strings.TrimSpace(cfg.NotifyEmail) == "" {
		return nil, nil
	}
	sender, err := BuildEmailSender(ctx, cfg, loadAWS, logger)
	if err != nil || sender == nil {
		return nil, err
	}
	notifier := notify.NewLeadNotifier(sender, cfg.NotifyEmail, logger)
	if notifier == nil {
		return nil, nil
	}
	return notifier, nil
}

// BuildArchiver wires the S3 deleted-lead archive when ARCHIVE_BUCKET is set.
func BuildArchiver(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (leads.Archiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return nil, nil
	}
	if loadAWS == nil {
		return nil, fmt.Errorf("bootstrap: aws config loader required for archive")
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("deleted-lead archive enabled", "bucket", cfg.ArchiveBucket)
	return archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger), nil
}
