package eventstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dossier-hq/dossier/internal/event"
)

// FileStore is a newline-delimited JSON log for single-node dev runs: one
// event per line, appended in insertion order. Not safe across processes.
type FileStore struct {
	mu          sync.Mutex
	path        string
	initialized bool
	nextSeq     int64
	byID        map[string]struct{}
}

// NewFileStore returns a FileStore writing to dir/events.ndjson.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		path: filepath.Join(dir, "events.ndjson"),
		byID: map[string]struct{}{},
	}
}

// Initialize creates the log directory and indexes existing event ids.
func (f *FileStore) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	events, err := f.readAll()
	if err != nil {
		return err
	}
	f.byID = make(map[string]struct{}, len(events))
	for _, ev := range events {
		f.byID[ev.ID] = struct{}{}
		if ev.Seq > f.nextSeq {
			f.nextSeq = ev.Seq
		}
	}
	f.initialized = true
	return nil
}

type fileRecord struct {
	event.Event
	Seq int64 `json:"seq"`
}

func (f *FileStore) readAll() ([]event.Event, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	var events []event.Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn trailing line from a crashed run is skipped rather
			// than poisoning the whole log.
			continue
		}
		ev := rec.Event
		ev.Seq = rec.Seq
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return events, nil
}

func (f *FileStore) SaveEvent(ctx context.Context, ev event.Event) error {
	if err := event.Validate(ev); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return ErrNotInitialized
	}
	if _, ok := f.byID[ev.ID]; ok {
		return ErrDuplicateID
	}
	f.nextSeq++
	rec := fileRecord{Event: ev, Seq: f.nextSeq}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	f.byID[ev.ID] = struct{}{}
	return nil
}

func (f *FileStore) Events(ctx context.Context, caseID string) ([]event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return nil, ErrNotInitialized
	}
	all, err := f.readAll()
	if err != nil {
		return nil, err
	}
	var out []event.Event
	for _, ev := range all {
		if caseID == "" || ev.CaseID == caseID {
			out = append(out, ev)
		}
	}
	SortEvents(out)
	return out, nil
}

func (f *FileStore) EventCount(ctx context.Context, caseID string) (int, error) {
	events, err := f.Events(ctx, caseID)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func (f *FileStore) CaseIDs(ctx context.Context) ([]string, error) {
	events, err := f.Events(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var ids []string
	for _, ev := range events {
		if _, ok := seen[ev.CaseID]; !ok {
			seen[ev.CaseID] = struct{}{}
			ids = append(ids, ev.CaseID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return ErrNotInitialized
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove event log: %w", err)
	}
	f.byID = map[string]struct{}{}
	f.nextSeq = 0
	return nil
}

func (f *FileStore) Ping(ctx context.Context) error { return nil }
