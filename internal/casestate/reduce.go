package casestate

import (
	"time"

	"github.com/dossier-hq/dossier/internal/event"
)

// Reduce folds an ordered event sequence into a CaseState. It is pure and
// total: well-formed events never cause a panic, and unknown event types or
// garbled payloads degrade to counter-only transitions.
func Reduce(events []event.Event) CaseState {
	state := New()
	for _, ev := range events {
		state = Step(state, ev)
	}
	return state
}

// StateAtTime folds only the prefix of events with occurredAt <= ts.
func StateAtTime(events []event.Event, ts time.Time) CaseState {
	state := New()
	for _, ev := range events {
		if ev.OccurredAt.After(ts) {
			break
		}
		state = Step(state, ev)
	}
	return state
}

// Step applies a single event: Reduce(E[0..k]) == Step(Reduce(E[0..k-1]), E[k]).
// The input state is not mutated.
func Step(s CaseState, ev event.Event) CaseState {
	out := s.clone()
	out.EventCount++
	if ev.OccurredAt.After(out.LastActivityAt) {
		out.LastActivityAt = ev.OccurredAt
	}

	switch ev.Type {
	case event.TypeCaseCreated:
		var p event.CaseCreatedPayload
		ev.DecodePayload(&p)
		out.ID = ev.CaseID
		out.Title = p.Title
		out.Description = p.Description
		out.Status = StatusOpen
		out.Severity = p.Severity
		out.Tags = append([]string(nil), p.Tags...)

	case event.TypeCaseStatusChanged:
		var p event.CaseStatusChangedPayload
		ev.DecodePayload(&p)
		if p.Status == StatusOpen || p.Status == StatusClosed {
			out.Status = p.Status
		}

	case event.TypeCaseSeverityChanged:
		var p event.CaseSeverityChangedPayload
		ev.DecodePayload(&p)
		if p.Severity != "" {
			out.Severity = p.Severity
		}

	case event.TypeCaseTagged:
		var p event.CaseTaggedPayload
		ev.DecodePayload(&p)
		out.Tags = mergeTags(out.Tags, p.Tags)

	case event.TypeEvidenceAdded:
		var p event.EvidenceAddedPayload
		ev.DecodePayload(&p)
		if p.EvidenceID == "" {
			break
		}
		trust := p.TrustLevel
		if trust == "" {
			trust = TrustUnverified
		}
		visibility := p.Visibility
		if visibility == "" {
			visibility = VisibilityNormal
		}
		out.Evidence[p.EvidenceID] = Evidence{
			ID:          p.EvidenceID,
			Type:        p.EvidenceType,
			Content:     p.Content,
			Hash:        p.Hash,
			Description: p.Description,
			TrustLevel:  trust,
			Visibility:  visibility,
			Tags:        append([]string(nil), p.Tags...),
			SubmittedBy: ev.ActorID,
			SubmittedAt: ev.OccurredAt,
		}
		out.EvidenceCount++

	case event.TypeEvidenceTrustChanged:
		var p event.EvidenceTrustChangedPayload
		ev.DecodePayload(&p)
		if item, ok := out.Evidence[p.EvidenceID]; ok && p.TrustLevel != "" {
			item.TrustLevel = p.TrustLevel
			out.Evidence[p.EvidenceID] = item
		}

	case event.TypeEvidenceCorrected:
		var p event.EvidenceCorrectedPayload
		ev.DecodePayload(&p)
		if item, ok := out.Evidence[p.EvidenceID]; ok {
			if p.Content != "" {
				item.Content = p.Content
			}
			if p.Hash != "" {
				item.Hash = p.Hash
			}
			if p.Description != "" {
				item.Description = p.Description
			}
			out.Evidence[p.EvidenceID] = item
		}

	case event.TypeHypothesisProposed:
		var p event.HypothesisProposedPayload
		ev.DecodePayload(&p)
		if p.HypothesisID == "" {
			break
		}
		out.Hypotheses[p.HypothesisID] = Hypothesis{
			ID:          p.HypothesisID,
			Title:       p.Title,
			Description: p.Description,
			Confidence:  p.Confidence,
			Status:      "proposed",
			ProposedBy:  ev.ActorID,
			ProposedAt:  ev.OccurredAt,
		}

	case event.TypeHypothesisStatusChanged:
		var p event.HypothesisStatusChangedPayload
		ev.DecodePayload(&p)
		if item, ok := out.Hypotheses[p.HypothesisID]; ok && p.Status != "" {
			item.Status = p.Status
			out.Hypotheses[p.HypothesisID] = item
		}

	case event.TypeEvidenceConnected:
		var p event.EvidenceConnectedPayload
		ev.DecodePayload(&p)
		if p.ConnectionID == "" {
			break
		}
		out.Connections[p.ConnectionID] = Connection{
			ID:        p.ConnectionID,
			SourceID:  p.SourceID,
			TargetID:  p.TargetID,
			Type:      p.ConnectionType,
			Strength:  clampStrength(p.Strength),
			Reason:    p.Reason,
			CreatedBy: ev.ActorID,
			CreatedAt: ev.OccurredAt,
		}
		out.ConnectionCount++

	case event.TypePathRecorded:
		var p event.PathRecordedPayload
		ev.DecodePayload(&p)
		if p.PathID == "" {
			break
		}
		out.Paths[p.PathID] = InvestigationPath{
			ID:          p.PathID,
			Label:       p.Label,
			EvidenceIDs: append([]string(nil), p.EvidenceIDs...),
		}

	case event.TypeVisualLayoutUpdated:
		var p event.VisualLayoutUpdatedPayload
		ev.DecodePayload(&p)
		if len(p.Positions) > 0 || p.Zoom != 0 {
			layout := Layout{
				Positions: make(map[string]event.NodePosition, len(p.Positions)),
				Zoom:      p.Zoom,
				PanX:      p.PanX,
				PanY:      p.PanY,
			}
			for id, pos := range p.Positions {
				layout.Positions[id] = pos
			}
			out.Layout = &layout
		}

	default:
		// Unknown tag: forward compatibility. Counters above already
		// advanced; the payload is ignored without failing the fold.
	}

	return out
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := append([]string(nil), existing...)
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range incoming {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func clampStrength(n int) int {
	if n < 1 {
		return 1
	}
	if n > 3 {
		return 3
	}
	return n
}
