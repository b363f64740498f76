// package replay reconstructs historical case state by prefix-folding the
// event log under a movable cursor. Cursor and playback timer are ephemeral:
// they are never serialized and never become domain events.
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/dossier-hq/dossier/internal/casestate"
	"github.com/dossier-hq/dossier/internal/event"
)

// DefaultPlayInterval paces auto-play when the caller does not choose one.
const DefaultPlayInterval = 1500 * time.Millisecond

// EventSource supplies the ordered event log for a case.
type EventSource interface {
	Events(ctx context.Context, caseID string) ([]event.Event, error)
}

// Status is the UI-facing view of the cursor.
type Status struct {
	CaseID  string `json:"caseId"`
	Cursor  int    `json:"cursor"`
	Total   int    `json:"total"`
	Playing bool   `json:"playing"`
}

// Engine is the per-process time-travel state machine. Cursor range is
// [-1, len-1], where -1 is the pristine empty state.
type Engine struct {
	mu       sync.Mutex
	source   EventSource
	caseID   string
	events   []event.Event
	cursor   int
	playing  bool
	stopPlay chan struct{}
}

func New(source EventSource) *Engine {
	return &Engine{source: source, cursor: -1}
}

// SetCase switches the active case: playback stops, the log is reloaded and
// the cursor lands on the last index (latest state), not on -1.
func (e *Engine) SetCase(ctx context.Context, caseID string) error {
	events, err := e.source.Events(ctx, caseID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.caseID = caseID
	e.events = events
	e.cursor = len(events) - 1
	return nil
}

// Observe adds a newly accepted event for the active case. Merged remote
// events can carry an older occurredAt than the tail of the log, so the
// event is inserted at its occurredAt position (equal timestamps keep
// arrival order, matching store seq assignment) and the fold stays in
// logical order. A cursor at or past the insertion point shifts right so it
// keeps denoting the same last-folded event; the caller scrubs forward
// explicitly.
func (e *Engine) Observe(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.CaseID != e.caseID {
		return
	}
	at := len(e.events)
	for at > 0 && e.events[at-1].OccurredAt.After(ev.OccurredAt) {
		at--
	}
	e.events = append(e.events, event.Event{})
	copy(e.events[at+1:], e.events[at:])
	e.events[at] = ev
	if at <= e.cursor {
		e.cursor++
	}
}

// GoTo moves the cursor, clamped into [-1, len-1].
func (e *Engine) GoTo(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = e.clamp(i)
}

// StepForward advances one event; no-op at the end of the log.
func (e *Engine) StepForward() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepForwardLocked()
}

func (e *Engine) stepForwardLocked() bool {
	if e.cursor >= len(e.events)-1 {
		return false
	}
	e.cursor++
	return true
}

// StepBackward goes one event back; no-op at -1.
func (e *Engine) StepBackward() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor > -1 {
		e.cursor--
	}
}

// Reset rewinds to the pristine initial state and stops playback.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.cursor = -1
}

// Play steps forward on a fixed period until end-of-log, then stops itself.
// Calling Play while playing restarts the timer with the new interval.
func (e *Engine) Play(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPlayInterval
	}
	e.mu.Lock()
	e.stopLocked()
	stop := make(chan struct{})
	e.stopPlay = stop
	e.playing = true
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				// A tick can fire between Pause acquiring the lock and
				// this handler running; the stopPlay identity check
				// drops such stale ticks deterministically.
				if e.stopPlay != stop {
					e.mu.Unlock()
					return
				}
				if !e.stepForwardLocked() {
					e.stopLocked()
					e.mu.Unlock()
					return
				}
				e.mu.Unlock()
			}
		}
	}()
}

// Pause cancels the playback timer. No further ticks are applied after
// Pause returns.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.stopPlay != nil {
		close(e.stopPlay)
		e.stopPlay = nil
	}
	e.playing = false
}

// State folds the events up to the cursor. Recomputed on demand so it can
// never drift from the cursor position.
func (e *Engine) State() casestate.CaseState {
	e.mu.Lock()
	events := make([]event.Event, e.cursor+1)
	copy(events, e.events[:e.cursor+1])
	e.mu.Unlock()
	return casestate.Reduce(events)
}

// Status reports the cursor position for the active case.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		CaseID:  e.caseID,
		Cursor:  e.cursor,
		Total:   len(e.events),
		Playing: e.playing,
	}
}

func (e *Engine) clamp(i int) int {
	if i < -1 {
		return -1
	}
	if i > len(e.events)-1 {
		return len(e.events) - 1
	}
	return i
}
