package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	base := Event{
		ID:        NewID(),
		Type:      TypeEvidenceAdded,
		CaseID:    "case-1",
		ActorID:   "det-1",
		ActorRole: RoleDetective,
	}
	assert.NoError(t, Validate(base))

	noType := base
	noType.Type = ""
	assert.ErrorIs(t, Validate(noType), ErrValidation)

	noCase := base
	noCase.CaseID = ""
	assert.ErrorIs(t, Validate(noCase), ErrValidation)

	noActor := base
	noActor.ActorID = ""
	assert.ErrorIs(t, Validate(noActor), ErrValidation)
}

func TestDecodePayloadTolerant(t *testing.T) {
	var p EvidenceAddedPayload

	// garbled bytes leave the target at zero values
	ev := Event{Payload: json.RawMessage(`{"evidenceId": 42, "conte`)}
	ev.DecodePayload(&p)
	assert.Empty(t, p.EvidenceID)

	// empty payload is a no-op
	Event{}.DecodePayload(&p)
	assert.Empty(t, p.EvidenceID)

	ev = Event{Payload: MarshalPayload(EvidenceAddedPayload{EvidenceID: "ev-1"})}
	ev.DecodePayload(&p)
	assert.Equal(t, "ev-1", p.EvidenceID)
}

func TestSeqExcludedFromWireShape(t *testing.T) {
	ev := Event{
		ID:         "id-1",
		Type:       TypeCaseCreated,
		CaseID:     "case-1",
		ActorID:    "lead-1",
		ActorRole:  RoleLead,
		OccurredAt: time.Now().UTC(),
		Seq:        99,
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "99")
	assert.NotContains(t, string(raw), "Seq")
}

func TestEnvelopeShape(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	ev := Event{
		ID:         "id-1",
		Type:       TypeEvidenceAdded,
		CaseID:     "case-1",
		ActorID:    "det-1",
		ActorRole:  RoleDetective,
		OccurredAt: at,
		Payload:    MarshalPayload(EvidenceAddedPayload{EvidenceID: "ev-1"}),
	}
	env := ev.Envelope()
	assert.Equal(t, "id-1", env["id"])
	assert.Equal(t, "EVIDENCE_ADDED", env["type"])
	assert.Equal(t, "case-1", env["caseId"])
	assert.Equal(t, "2026-05-01T09:30:00Z", env["occurredAt"])

	payload, ok := env["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ev-1", payload["evidenceId"])
}
