package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-weekly-report/internal/dto"
)

// MessagePublisher is the part of *nats.Conn the event publisher needs.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// ReportEventPublisher announces finished artifacts to downstream consumers
// such as the messaging bot that delivers reports to parents.
type ReportEventPublisher interface {
	PublishGenerated(ctx context.Context, event dto.WeeklyReportEvent) error
}

type natsReportEventPublisher struct {
	conn    MessagePublisher
	subject string
	logger  zerolog.Logger
}

// NewReportEventPublisher publishes JSON events on subject.
func NewReportEventPublisher(conn MessagePublisher, subject string, logger zerolog.Logger) ReportEventPublisher {
	return &natsReportEventPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "report_events").Logger(),
	}
}

func (p *natsReportEventPublisher) PublishGenerated(ctx context.Context, event dto.WeeklyReportEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode report event: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish report event: %w", err)
	}

	p.logger.Debug().Str("subject", p.subject).Str("event_id", event.EventID).Msg("report event published")
	return nil
}
