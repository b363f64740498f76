package eventstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dossier-hq/dossier/internal/event"
)

// MemoryStore is the in-process implementation of Store used by tests and
// single-node dev runs.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	nextSeq     int64
	events      []event.Event
	byID        map[string]struct{}
}

// NewMemoryStore returns an uninitialized MemoryStore; call Initialize
// before use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]struct{}{}}
}

func (m *MemoryStore) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

func (m *MemoryStore) SaveEvent(ctx context.Context, ev event.Event) error {
	if err := event.Validate(ev); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	if _, ok := m.byID[ev.ID]; ok {
		return ErrDuplicateID
	}
	m.nextSeq++
	ev.Seq = m.nextSeq
	m.events = append(m.events, ev)
	m.byID[ev.ID] = struct{}{}
	return nil
}

func (m *MemoryStore) Events(ctx context.Context, caseID string) ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	var out []event.Event
	for _, ev := range m.events {
		if caseID == "" || ev.CaseID == caseID {
			out = append(out, ev)
		}
	}
	SortEvents(out)
	return out, nil
}

func (m *MemoryStore) EventCount(ctx context.Context, caseID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return 0, ErrNotInitialized
	}
	if caseID == "" {
		return len(m.events), nil
	}
	n := 0
	for _, ev := range m.events {
		if ev.CaseID == caseID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CaseIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	seen := map[string]struct{}{}
	var ids []string
	for _, ev := range m.events {
		if _, ok := seen[ev.CaseID]; !ok {
			seen[ev.CaseID] = struct{}{}
			ids = append(ids, ev.CaseID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	m.events = nil
	m.byID = map[string]struct{}{}
	m.nextSeq = 0
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
