// Package events defines the canonical Event Envelope that wraps
// every payload moving through the outbox and the bus: the metadata a
// consumer needs to route, deduplicate, and trace a message without
// knowing anything about its producer.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical wire and outbox-row shape. Unknown
// fields on consume are ignored by the default json.Unmarshal behavior;
// required-field absence is caught by Validate.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TenantID      string          `json:"tenant_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	CorrelationID string          `json:"correlation_id"`
	TraceID       string          `json:"trace_id"`
	CausationID   *uuid.UUID      `json:"causation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// New builds an envelope with a fresh event id and the current UTC time,
// marshaling payload into the raw body.
func New(eventType, producer, tenantID, aggregateType, aggregateID, correlationID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		SchemaVersion: 1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TenantID:      tenantID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		CorrelationID: correlationID,
		TraceID:       correlationID,
		Payload:       body,
	}, nil
}

// WithCausation returns a copy of the envelope with CausationID set to the
// id of the event that caused it.
func (e Envelope) WithCausation(causationID uuid.UUID) Envelope {
	e.CausationID = &causationID
	return e
}

// Decode unmarshals the payload into target.
func (e Envelope) Decode(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// Validate checks the envelope carries the fields a consumer needs to
// route and deduplicate it. A missing required field routes the message
// to the DLQ rather than panicking downstream.
func (e Envelope) Validate() error {
	switch {
	case e.EventID == uuid.Nil:
		return errMissingField("event_id")
	case e.EventType == "":
		return errMissingField("event_type")
	case e.TenantID == "":
		return errMissingField("tenant_id")
	case e.OccurredAt.IsZero():
		return errMissingField("occurred_at")
	}
	return nil
}

type missingFieldError struct{ field string }

func (e *missingFieldError) Error() string { return "envelope missing required field: " + e.field }

func errMissingField(field string) error { return &missingFieldError{field: field} }
