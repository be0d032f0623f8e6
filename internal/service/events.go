package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

// WorkflowEvent describes one observable workflow fact: a status transition,
// a plagiarism outcome or a signature arriving. Downstream consumers
// (notification senders, archive jobs) subscribe over NATS.
type WorkflowEvent struct {
	Event      string              `json:"event"`
	ThesisID   uint                `json:"thesis_id"`
	From       models.ThesisStatus `json:"from,omitempty"`
	To         models.ThesisStatus `json:"to,omitempty"`
	ActorID    uint                `json:"actor_id"`
	ActorRole  models.Role         `json:"actor_role"`
	Iteration  int                 `json:"iteration,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// EventPublisher emits workflow events. Publishing is fire-and-forget: a
// broker outage never fails the transition that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event WorkflowEvent)
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewNATSPublisher constructs an EventPublisher backed by NATS. Subjects are
// derived from the base as <base>.<event>.
func NewNATSPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) EventPublisher {
	if subjectBase == "" {
		subjectBase = "thesis"
	}
	return &natsPublisher{
		conn:    conn,
		subject: subjectBase,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		now:     time.Now,
	}
}

func (p *natsPublisher) Publish(_ context.Context, event WorkflowEvent) {
	if p.conn == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", event.Event).Msg("failed to encode workflow event")
		return
	}

	subject := p.subject + "." + event.Event
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish workflow event")
	}
}
