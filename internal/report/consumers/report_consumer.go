package consumers

import (
	"context"

	"github.com/pharmacy/pharmacy-backend/internal/report/service"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	"github.com/pharmacy/pharmacy-backend/pkg/messaging"
)

// QueueName is the queue the report service consumes from
const QueueName = "report-service.report-events"

// ReportEventConsumer records report usage announced on the event bus
type ReportEventConsumer struct {
	consumer *messaging.Consumer
	recorder *service.Recorder
	logger   *logger.Logger
}

// NewReportEventConsumer creates a new report event consumer
func NewReportEventConsumer(rmq *messaging.RabbitMQ, recorder *service.Recorder, log *logger.Logger) (*ReportEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeReportEvents, messaging.EventReportRequest); err != nil {
		return nil, err
	}

	c := &ReportEventConsumer{
		consumer: consumer,
		recorder: recorder,
		logger:   log.WithComponent("report-consumer"),
	}
	consumer.RegisterHandler(messaging.EventReportRequest, c.handleReportRequested)

	return c, nil
}

// Start starts consuming messages
func (c *ReportEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *ReportEventConsumer) handleReportRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.ReportRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return messaging.Permanent(err)
	}

	at := data.RequestedAt
	if at.IsZero() {
		at = event.Timestamp
	}

	rr, err := c.recorder.RecordAt(ctx, data.ReportName, at)
	if err != nil {
		if errors.Is(err, errors.ErrValidation) {
			return messaging.Permanent(err)
		}
		return err
	}

	c.logger.Info().
		Str("report", rr.ReportName).
		Int64("count", rr.RequestCount).
		Msg("report request recorded from event")

	return nil
}
