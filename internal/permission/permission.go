// package permission resolves role capabilities against the current case
// state. Resolution is a pure lookup computed fresh on every use; snapshots
// are never cached across role switches.
package permission

import (
	"github.com/dossier-hq/dossier/internal/casestate"
	"github.com/dossier-hq/dossier/internal/event"
)

// Action names checked by the command surface.
const (
	ActionCaseCreate             = "case.create"
	ActionCaseClose              = "case.close"
	ActionCaseReopen             = "case.reopen"
	ActionEvidenceAdd            = "evidence.add"
	ActionEvidenceVerify         = "evidence.verify"
	ActionEvidenceViewRestricted = "evidence.viewRestricted"
	ActionHypothesisPropose      = "hypothesis.propose"
	ActionConnectionCreate       = "connection.create"
	ActionLayoutSave             = "layout.save"
	ActionExport                 = "export"
	ActionImport                 = "import"
	ActionSyncManage             = "sync.manage"
)

// allActions drives snapshot generation; keep in sync with the constants.
var allActions = []string{
	ActionCaseCreate,
	ActionCaseClose,
	ActionCaseReopen,
	ActionEvidenceAdd,
	ActionEvidenceVerify,
	ActionEvidenceViewRestricted,
	ActionHypothesisPropose,
	ActionConnectionCreate,
	ActionLayoutSave,
	ActionExport,
	ActionImport,
	ActionSyncManage,
}

// matrix is the fixed (role, action) capability table. State-dependent
// exceptions are applied in Can, not here.
var matrix = map[string]map[string]bool{
	event.RoleLead: {
		ActionCaseCreate:             true,
		ActionCaseClose:              true,
		ActionCaseReopen:             true,
		ActionEvidenceAdd:            true,
		ActionEvidenceVerify:         true,
		ActionEvidenceViewRestricted: true,
		ActionHypothesisPropose:      true,
		ActionConnectionCreate:       true,
		ActionLayoutSave:             true,
		ActionExport:                 true,
		ActionImport:                 true,
		ActionSyncManage:             true,
	},
	event.RoleDetective: {
		ActionCaseCreate:             true,
		ActionEvidenceAdd:            true,
		ActionEvidenceVerify:         true,
		ActionEvidenceViewRestricted: true,
		ActionHypothesisPropose:      true,
		ActionConnectionCreate:       true,
		ActionLayoutSave:             true,
		ActionExport:                 true,
	},
	event.RoleAnalyst: {
		ActionEvidenceAdd:       true,
		ActionHypothesisPropose: true,
		ActionConnectionCreate:  true,
		ActionLayoutSave:        true,
		ActionExport:            true,
	},
	event.RoleObserver: {
		ActionExport: true,
	},
}

// Can reports whether role may perform action given the current state.
func Can(role, action string, state casestate.CaseState) bool {
	caps, ok := matrix[role]
	if !ok || !caps[action] {
		return false
	}
	switch action {
	case ActionCaseClose:
		return state.Status != casestate.StatusClosed
	case ActionCaseReopen:
		return state.Status == casestate.StatusClosed
	}
	return true
}

// Snapshot computes the full capability set for a role against a state.
// Attached to CaseState for the viewing role on every derivation.
func Snapshot(role string, state casestate.CaseState) map[string]bool {
	out := make(map[string]bool, len(allActions))
	for _, action := range allActions {
		out[action] = Can(role, action, state)
	}
	return out
}
