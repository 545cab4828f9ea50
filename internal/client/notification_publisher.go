package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"gl-reconciliation-backend/internal/repository"
)

// NotificationPublisher publishes workflow events to NATS for the
// notification service to render and deliver.
//
// Subject convention: notifications.gl.<event_type>
// Event types: line_ingested, line_advanced, line_disapproved, line_rejected
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so notification failures never interrupt a
// workflow transition. Delivery outcome is never surfaced back into workflow
// state.
type NotificationPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// LineEvent is the JSON schema published to NATS.
type LineEvent struct {
	EventType     string         `json:"event_type"`
	LineID        string         `json:"line_id"`
	CompanyCode   string         `json:"company_code"`
	GLAccount     string         `json:"gl_account"`
	BatchID       string         `json:"batch_id"`
	Status        string         `json:"status"`
	Stage         string         `json:"stage"`
	ActorID       string         `json:"actor_id"`
	RecipientRole string         `json:"recipient_role"`
	RecipientID   string         `json:"recipient_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. conn may be nil, which disables publishing.
func NewNotificationPublisher(conn *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log}
}

// PublishLineEvent publishes one workflow event.
// Subject: notifications.gl.<eventType>
func (p *NotificationPublisher) PublishLineEvent(ctx context.Context, eventType string, line *repository.LedgerLine, actorID string, recipientRole repository.Role, payload map[string]any) {
	if p.conn == nil || line == nil {
		return
	}

	event := &LineEvent{
		EventType:     eventType,
		LineID:        line.ID,
		CompanyCode:   line.CompanyCode,
		GLAccount:     line.GLAccount,
		BatchID:       line.BatchID,
		Status:        string(line.Status),
		Stage:         string(line.CurrentStage),
		ActorID:       actorID,
		RecipientRole: string(recipientRole),
		Payload:       payload,
	}
	if recipient := line.OwnerForStage(repository.Stage(recipientRole)); recipient != nil {
		event.RecipientID = *recipient
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.gl.%s", eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("line_id", line.ID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("line_id", line.ID).
		Str("recipient_role", string(recipientRole)).
		Msg("notification: event published")
}
