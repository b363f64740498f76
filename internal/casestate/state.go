// package casestate holds the derived per-case aggregate and the pure fold
// that produces it. A CaseState is never constructed directly by callers:
// state = Reduce(events-for-case).
package casestate

import (
	"time"

	"github.com/dossier-hq/dossier/internal/event"
)

// Case status values.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Evidence trust levels.
const (
	TrustUnverified = "unverified"
	TrustVerified   = "verified"
	TrustDisputed   = "disputed"
	TrustDisproven  = "disproven"
)

// Evidence visibility.
const (
	VisibilityNormal     = "normal"
	VisibilityRestricted = "restricted"
)

// Evidence is a derived view of one piece of evidence. Mutated only by new
// events, never in place.
type Evidence struct {
	ID          string    `json:"id"`
	Type        string    `json:"type,omitempty"`
	Content     string    `json:"content,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	Description string    `json:"description,omitempty"`
	TrustLevel  string    `json:"trustLevel"`
	Visibility  string    `json:"visibility"`
	Tags        []string  `json:"tags,omitempty"`
	SubmittedBy string    `json:"submittedBy,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Hypothesis is a derived view of one proposed hypothesis.
type Hypothesis struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Status      string    `json:"status"`
	ProposedBy  string    `json:"proposedBy,omitempty"`
	ProposedAt  time.Time `json:"proposedAt"`
}

// Connection links two evidence/hypothesis entities in the domain log.
type Connection struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"sourceId"`
	TargetID  string    `json:"targetId"`
	Type      string    `json:"type,omitempty"`
	Strength  int       `json:"strength,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// InvestigationPath is an ordered chain of evidence ids recorded by an
// investigator.
type InvestigationPath struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	EvidenceIDs []string `json:"evidenceIds"`
}

// Layout is the last persisted board layout for the case.
type Layout struct {
	Positions map[string]event.NodePosition `json:"positions"`
	Zoom      float64                       `json:"zoom,omitempty"`
	PanX      float64                       `json:"panX,omitempty"`
	PanY      float64                       `json:"panY,omitempty"`
}

// CaseState is the aggregate derived from a case's ordered event log.
type CaseState struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Severity    string   `json:"severity,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	Evidence    map[string]Evidence          `json:"evidence"`
	Hypotheses  map[string]Hypothesis        `json:"hypotheses"`
	Connections map[string]Connection        `json:"connections"`
	Paths       map[string]InvestigationPath `json:"investigationPaths"`
	Layout      *Layout                      `json:"layout,omitempty"`

	EvidenceCount   int       `json:"evidenceCount"`
	ConnectionCount int       `json:"connectionCount"`
	EventCount      int       `json:"eventCount"`
	LastActivityAt  time.Time `json:"lastActivityAt"`

	// Permissions is the capability snapshot for the viewing role,
	// attached by the aggregate manager after folding.
	Permissions map[string]bool `json:"permissions,omitempty"`
}

// New returns the pristine initial state (no events folded).
func New() CaseState {
	return CaseState{
		Status:      StatusOpen,
		Evidence:    map[string]Evidence{},
		Hypotheses:  map[string]Hypothesis{},
		Connections: map[string]Connection{},
		Paths:       map[string]InvestigationPath{},
	}
}

// clone returns a copy safe to mutate without aliasing the receiver's maps.
func (s CaseState) clone() CaseState {
	out := s
	out.Tags = append([]string(nil), s.Tags...)
	out.Evidence = make(map[string]Evidence, len(s.Evidence))
	for k, v := range s.Evidence {
		out.Evidence[k] = v
	}
	out.Hypotheses = make(map[string]Hypothesis, len(s.Hypotheses))
	for k, v := range s.Hypotheses {
		out.Hypotheses[k] = v
	}
	out.Connections = make(map[string]Connection, len(s.Connections))
	for k, v := range s.Connections {
		out.Connections[k] = v
	}
	out.Paths = make(map[string]InvestigationPath, len(s.Paths))
	for k, v := range s.Paths {
		out.Paths[k] = v
	}
	return out
}
