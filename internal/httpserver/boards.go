package httpserver

import (
	"context"
	"sync"

	"github.com/dossier-hq/dossier/internal/board"
	"github.com/dossier-hq/dossier/internal/casemanager"
	"github.com/dossier-hq/dossier/internal/event"
)

// boardRegistry lazily builds one board machine per case and feeds every
// machine the domain events that concern it.
type boardRegistry struct {
	manager *casemanager.Manager

	mu       sync.Mutex
	machines map[string]*board.Machine
}

func newBoardRegistry(manager *casemanager.Manager) *boardRegistry {
	return &boardRegistry{
		manager:  manager,
		machines: map[string]*board.Machine{},
	}
}

// machine returns the board for a case, building and initializing it from
// the current aggregate on first use.
func (b *boardRegistry) machine(ctx context.Context, caseID string) (*board.Machine, error) {
	b.mu.Lock()
	if m, ok := b.machines[caseID]; ok {
		b.mu.Unlock()
		return m, nil
	}
	b.mu.Unlock()

	state, err := b.manager.CaseState(ctx, caseID, event.RoleLead)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.machines[caseID]; ok {
		return m, nil
	}
	m := board.NewMachine(caseID, b.manager)
	m.Initialize(state)
	b.machines[caseID] = m
	return m, nil
}

// observe routes one appended event to the matching live board, if any.
func (b *boardRegistry) observe(ev event.Event) {
	b.mu.Lock()
	m, ok := b.machines[ev.CaseID]
	b.mu.Unlock()
	if ok {
		m.ObserveDomain(ev)
	}
}
