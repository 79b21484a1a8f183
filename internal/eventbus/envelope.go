// Package eventbus carries lifecycle events to downstream contexts
// (finance, forums, scoring). Delivery is at-least-once: consumers must
// deduplicate on (member id, event name, version). Ordering is guaranteed
// only within one aggregate's stream, which the Kafka publisher preserves by
// keying records on the member id.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quorum/internal/membership/models"
	id "quorum/pkg/domain"
)

// SchemaVersion is stamped on every envelope so consumers can evolve.
const SchemaVersion = 1

// Envelope wraps one lifecycle event for transport. Key() groups an
// aggregate's events onto one partition so per-member ordering holds.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	SchemaVersion int             `json:"schema_version"`
	Name          string          `json:"name"`
	MemberID      id.MemberID     `json:"member_id"`
	TenantID      id.TenantID     `json:"tenant_id"`
	Version       int64           `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Key is the partitioning key: all of one member's events share it.
func (e Envelope) Key() string { return e.MemberID.String() }

// Wrap builds an envelope from a domain event.
func Wrap(event models.Event) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal event %s: %w", event.Name(), err)
	}
	meta := event.Meta()
	return Envelope{
		ID:            uuid.New(),
		SchemaVersion: SchemaVersion,
		Name:          event.Name(),
		MemberID:      meta.MemberID,
		TenantID:      meta.TenantID,
		Version:       meta.Version,
		OccurredAt:    meta.OccurredAt,
		Payload:       payload,
	}, nil
}

// WrapAll converts an aggregate's pending events in order.
func WrapAll(events []models.Event) ([]Envelope, error) {
	envelopes := make([]Envelope, 0, len(events))
	for _, event := range events {
		envelope, err := Wrap(event)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, envelope)
	}
	return envelopes, nil
}
