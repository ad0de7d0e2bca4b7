/*
Package notify delivers reconciliation results outside the process.

  - SESNotifier emails dry-run reports to operators.
  - SQSPublisher emits one correction.upserted event per committed
    correction, behind a circuit breaker.

Both are optional collaborators of attendance.ReconciliationRunner and are
best effort: their failures are logged by the runner and never change what
was persisted.
*/
package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
)

// NewAWSConfig loads the AWS configuration. In local development every
// client is pointed at AWS_ENDPOINT (LocalStack) with static credentials.
func NewAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	if cfg.IsLocalDev {
		log.Ctx(ctx).Info().Str("endpoint", cfg.AWSEndpoint).Msg("routing AWS calls to local endpoint")
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		}
		if cfg.AWSEndpoint != "" {
			opts = append(opts, awsconfig.WithBaseEndpoint(cfg.AWSEndpoint))
		}
		return awsconfig.LoadDefaultConfig(ctx, opts...)
	}

	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// FromConfig builds the deliveries that are configured: the SES notifier
// when NOTIFY_SENDER is set, the SQS publisher when CORRECTIONS_QUEUE_URL is.
// Either result may be nil.
func FromConfig(ctx context.Context, cfg config.Config) (attendance.ReportNotifier, attendance.CorrectionPublisher, error) {
	if cfg.NotifySender == "" && cfg.CorrectionsQueue == "" {
		return nil, nil, nil
	}
	awsCfg, err := NewAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		notifier  attendance.ReportNotifier
		publisher attendance.CorrectionPublisher
	)
	if cfg.NotifySender != "" {
		notifier = NewSESNotifier(ses.NewFromConfig(awsCfg), cfg.NotifySender, cfg.Recipients())
	}
	if cfg.CorrectionsQueue != "" {
		publisher = NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.CorrectionsQueue)
	}
	return notifier, publisher, nil
}
