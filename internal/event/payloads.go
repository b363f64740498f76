package event

// Payload variants, one per event type tag. All fields are optional on the
// wire; consumers fall back to zero values when a field is absent.

type CaseCreatedPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type CaseStatusChangedPayload struct {
	Status string `json:"status"`
}

type CaseSeverityChangedPayload struct {
	Severity string `json:"severity"`
}

type CaseTaggedPayload struct {
	Tags []string `json:"tags"`
}

type EvidenceAddedPayload struct {
	EvidenceID   string   `json:"evidenceId"`
	EvidenceType string   `json:"evidenceType,omitempty"`
	Content      string   `json:"content,omitempty"`
	Hash         string   `json:"hash,omitempty"` // SHA-256 of the content, hex
	Description  string   `json:"description,omitempty"`
	TrustLevel   string   `json:"trustLevel,omitempty"`
	Visibility   string   `json:"visibility,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

type EvidenceTrustChangedPayload struct {
	EvidenceID string `json:"evidenceId"`
	TrustLevel string `json:"trustLevel"`
}

type EvidenceCorrectedPayload struct {
	EvidenceID  string `json:"evidenceId"`
	Content     string `json:"content,omitempty"`
	Hash        string `json:"hash,omitempty"`
	Description string `json:"description,omitempty"`
}

type HypothesisProposedPayload struct {
	HypothesisID string  `json:"hypothesisId"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
}

type HypothesisStatusChangedPayload struct {
	HypothesisID string `json:"hypothesisId"`
	Status       string `json:"status"`
}

type EvidenceConnectedPayload struct {
	ConnectionID   string `json:"connectionId"`
	SourceID       string `json:"sourceId"`
	TargetID       string `json:"targetId"`
	ConnectionType string `json:"connectionType,omitempty"`
	Strength       int    `json:"strength,omitempty"` // 1..3
	Reason         string `json:"reason,omitempty"`
}

type PathRecordedPayload struct {
	PathID      string   `json:"pathId"`
	Label       string   `json:"label,omitempty"`
	EvidenceIDs []string `json:"evidenceIds"`
}

// NodePosition is a persisted board coordinate for one node.
type NodePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type VisualLayoutUpdatedPayload struct {
	Positions map[string]NodePosition `json:"positions"`
	Zoom      float64                 `json:"zoom,omitempty"`
	PanX      float64                 `json:"panX,omitempty"`
	PanY      float64                 `json:"panY,omitempty"`
}
