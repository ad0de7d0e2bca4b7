package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/attendance-engine/attendance"
)

// SESClient is the subset of the SES API the notifier uses.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails dry-run reports.
type SESNotifier struct {
	client     SESClient
	sender     string
	recipients []string
}

func NewSESNotifier(client SESClient, sender string, recipients []string) *SESNotifier {
	return &SESNotifier{client: client, sender: sender, recipients: recipients}
}

var _ attendance.ReportNotifier = (*SESNotifier)(nil)

// NotifyDryRun sends the run report as a plain-text email.
func (n *SESNotifier) NotifyDryRun(ctx context.Context, run attendance.Run) error {
	if len(n.recipients) == 0 {
		return errors.New("no notification recipients configured")
	}

	ctx, span := otel.Tracer("notify").Start(ctx, "send_dry_run_report", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", string(run.ID)),
		attribute.Int("run.pending", run.Applied),
	)

	input := &ses.SendEmailInput{
		Source: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: n.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(dryRunSubject(run)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(run.Report),
				},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return fmt.Errorf("failed to send dry-run report %s: %w", run.ID, err)
	}
	return nil
}

func dryRunSubject(run attendance.Run) string {
	return fmt.Sprintf("Attendance reconciliation since %s: %d corrections pending", run.Since, run.Applied)
}
