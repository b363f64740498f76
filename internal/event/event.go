// package event contains the canonical domain event model shared by the
// store, the reducer and the sync pipeline.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role names carried on every event. Permissions derive from these.
const (
	RoleLead      = "lead"
	RoleDetective = "detective"
	RoleAnalyst   = "analyst"
	RoleObserver  = "observer"
)

// Type is the closed set of event type tags. The reducer handles unknown
// tags via an explicit default arm, so adding a tag is backward compatible.
type Type string

const (
	TypeCaseCreated             Type = "CASE_CREATED"
	TypeCaseStatusChanged       Type = "CASE_STATUS_CHANGED"
	TypeCaseSeverityChanged     Type = "CASE_SEVERITY_CHANGED"
	TypeCaseTagged              Type = "CASE_TAGGED"
	TypeEvidenceAdded           Type = "EVIDENCE_ADDED"
	TypeEvidenceTrustChanged    Type = "EVIDENCE_TRUST_CHANGED"
	TypeEvidenceCorrected       Type = "EVIDENCE_CORRECTED"
	TypeHypothesisProposed      Type = "HYPOTHESIS_PROPOSED"
	TypeHypothesisStatusChanged Type = "HYPOTHESIS_STATUS_CHANGED"
	TypeEvidenceConnected       Type = "EVIDENCE_CONNECTED"
	TypePathRecorded            Type = "PATH_RECORDED"
	TypeVisualLayoutUpdated     Type = "VISUAL_LAYOUT_UPDATED"
)

// Event is an immutable fact appended to a case's log. Once written it is
// never mutated; corrections are new events.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	CaseID     string          `json:"caseId"`
	ActorID    string          `json:"actorId"`
	ActorRole  string          `json:"actorRole"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	// Seq is the store-assigned insertion order, used only to break
	// occurredAt ties during replay. It is not part of the wire shape.
	Seq int64 `json:"-"`
}

// ErrValidation indicates a malformed event rejected before any store write.
var ErrValidation = errors.New("invalid event")

// NewID returns a freshly-generated UUID string.
func NewID() string {
	return uuid.New().String()
}

// Validate checks the fields every stored event must carry.
func Validate(ev Event) error {
	if ev.Type == "" {
		return fmt.Errorf("%w: missing type", ErrValidation)
	}
	if ev.CaseID == "" {
		return fmt.Errorf("%w: missing caseId", ErrValidation)
	}
	if ev.ActorID == "" {
		return fmt.Errorf("%w: missing actorId", ErrValidation)
	}
	return nil
}

// DecodePayload unmarshals the payload into v. Garbled or missing payloads
// leave v untouched rather than failing: the reducer treats unknown fields
// as absent and relies on zero values.
func (ev Event) DecodePayload(v interface{}) {
	if len(ev.Payload) == 0 {
		return
	}
	_ = json.Unmarshal(ev.Payload, v)
}

// MarshalPayload encodes v as the payload for a new event.
func MarshalPayload(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Envelope returns the wire-shape map used for mirror pushes and archival.
// Keys match the persisted export format.
func (ev Event) Envelope() map[string]interface{} {
	var payload interface{}
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			payload = string(ev.Payload)
		}
	}
	return map[string]interface{}{
		"id":         ev.ID,
		"type":       string(ev.Type),
		"caseId":     ev.CaseID,
		"actorId":    ev.ActorID,
		"actorRole":  ev.ActorRole,
		"occurredAt": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		"payload":    payload,
	}
}
