package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/telemetry"
)

// EventCorrectionUpserted is the EventType attribute of every published message.
const EventCorrectionUpserted = "correction.upserted"

// SQSClient is the subset of the SQS API the publisher uses.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// CorrectionEvent is the JSON body of a correction.upserted message.
type CorrectionEvent struct {
	EventType     string    `json:"eventType"`
	RunID         string    `json:"runId"`
	CorrectionID  string    `json:"correctionId"`
	EmployeeID    string    `json:"employeeId"`
	Date          string    `json:"date"`
	DurationHours string    `json:"durationHours"`
	Compensable   bool      `json:"compensable"`
	Status        string    `json:"status"`
	Kind          string    `json:"kind"`
	TimeStart     time.Time `json:"timeStart"`
	TimeStop      time.Time `json:"timeStop"`
	Created       bool      `json:"created"`
}

func newCorrectionEvent(runID attendance.RunID, u attendance.Upserted) CorrectionEvent {
	c := u.Correction
	return CorrectionEvent{
		EventType:     EventCorrectionUpserted,
		RunID:         string(runID),
		CorrectionID:  string(c.ID),
		EmployeeID:    string(c.EmployeeID),
		Date:          c.Date.String(),
		DurationHours: c.Duration.String(),
		Compensable:   c.Compensable,
		Status:        string(c.Status),
		Kind:          string(c.Kind),
		TimeStart:     c.TimeStart.UTC(),
		TimeStop:      c.TimeStop.UTC(),
		Created:       u.Created,
	}
}

// SQSPublisher sends correction events to a queue. Sends go through a
// circuit breaker; once it opens the remaining events of the batch are dropped.
type SQSPublisher struct {
	client   SQSClient
	queueURL string
	cb       *gobreaker.CircuitBreaker
}

func NewSQSPublisher(client SQSClient, queueURL string) *SQSPublisher {
	settings := gobreaker.Settings{
		Name:        "sqs-corrections",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

var _ attendance.CorrectionPublisher = (*SQSPublisher)(nil)

// PublishCorrections sends one message per correction. Individual failures
// are collected; an open breaker stops the batch.
func (p *SQSPublisher) PublishCorrections(ctx context.Context, runID attendance.RunID, corrections []attendance.Upserted) error {
	ctx, span := otel.Tracer("notify").Start(ctx, "publish_corrections", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", string(runID)),
		attribute.Int("corrections.count", len(corrections)),
	)

	var errs []error
	for i, u := range corrections {
		_, err := p.cb.Execute(func() (interface{}, error) {
			return nil, p.send(ctx, newCorrectionEvent(runID, u))
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			errs = append(errs, fmt.Errorf("%d correction events dropped: %w", len(corrections)-i, err))
			break
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *SQSPublisher) send(ctx context.Context, event CorrectionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	attrs := map[string]types.MessageAttributeValue{
		"EventType": {
			DataType:    aws.String("String"),
			StringValue: aws.String(event.EventType),
		},
	}
	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: telemetry.InjectTraceContext(ctx, attrs),
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send correction %s: %w", event.CorrectionID, err)
	}
	return nil
}
