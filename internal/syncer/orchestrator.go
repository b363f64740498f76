// package syncer keeps a local event log and a remote mirror converged.
// Push forwards local events to the mirror as they appear; pull polls the
// mirror for watched cases and merges unseen events back through the same
// append path local writes use. Correctness rests on one invariant: both
// sides deduplicate inserts by event id, so every transfer is idempotent.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dossier-hq/dossier/internal/casemanager"
	"github.com/dossier-hq/dossier/internal/event"
	"github.com/dossier-hq/dossier/internal/eventstore"
)

// DefaultPullInterval is the default remote poll period.
const DefaultPullInterval = 30 * time.Second

// Status is a point-in-time view of the orchestrator for UI/ops surfaces.
type Status struct {
	Running      bool      `json:"running"`
	WatchedCases []string  `json:"watchedCases"`
	PushedCount  int       `json:"pushedCount"`
	LastPullAt   time.Time `json:"lastPullAt,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
}

// Orchestrator coordinates the push and pull flows. All remote failures
// are logged and swallowed: sync trouble never breaks a local write.
type Orchestrator struct {
	manager *casemanager.Manager
	mirror  Mirror
	relay   Relay
	period  time.Duration

	mu          sync.Mutex
	running     bool
	watched     map[string]struct{}
	pushed      map[string]struct{}
	lastPullAt  time.Time
	lastErr     error
	unsubscribe func()
	stop        chan struct{}

	pullInFlight atomic.Bool
	pushWG       sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPullInterval overrides the default 30s pull period.
func WithPullInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.period = d
		}
	}
}

// WithRelay adds a secondary fan-out (e.g. Kafka) for pushed events.
func WithRelay(r Relay) Option {
	return func(o *Orchestrator) { o.relay = r }
}

// New builds an orchestrator over the local aggregate manager and a remote
// mirror.
func New(manager *casemanager.Manager, mirror Mirror, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		manager: manager,
		mirror:  mirror,
		period:  DefaultPullInterval,
		watched: map[string]struct{}{},
		pushed:  map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start backfills every local event to the mirror, subscribes to the local
// stream for live pushes, pulls once immediately, and then polls. Calling
// Start on a running orchestrator is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.stop = make(chan struct{})
	stop := o.stop
	// Subscribe before reading the backfill snapshot so an append racing
	// Start lands in at least one of the two paths; the pushed set and the
	// mirror's id dedup absorb the overlap.
	o.unsubscribe = o.manager.Subscribe(func(ev event.Event) {
		o.watchFromEvent(ev)
		o.pushWG.Add(1)
		go func() {
			defer o.pushWG.Done()
			o.pushEvent(context.Background(), ev)
		}()
	})
	o.mu.Unlock()

	events, err := o.manager.Events(ctx, "")
	if err != nil {
		o.mu.Lock()
		o.running = false
		unsub := o.unsubscribe
		o.unsubscribe = nil
		o.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		return fmt.Errorf("read local events: %w", err)
	}
	for _, ev := range events {
		o.watchFromEvent(ev)
		o.pushEvent(ctx, ev)
	}

	o.pullOnce(ctx)

	go func() {
		ticker := time.NewTicker(o.period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.pullOnce(context.Background())
			}
		}
	}()
	return nil
}

// Stop cancels the poll timer and detaches from the local stream. Pushes
// already in flight complete; nothing re-arms afterward.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stop)
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	o.pushWG.Wait()
	if o.relay != nil {
		if err := o.relay.Close(); err != nil {
			log.Printf("[syncer] relay close: %v", err)
		}
	}
}

// WatchCase adds a case id to the pull watch set.
func (o *Orchestrator) WatchCase(caseID string) {
	if caseID == "" {
		return
	}
	o.mu.Lock()
	o.watched[caseID] = struct{}{}
	o.mu.Unlock()
}

// UnwatchCase removes a case id from the pull watch set.
func (o *Orchestrator) UnwatchCase(caseID string) {
	o.mu.Lock()
	delete(o.watched, caseID)
	o.mu.Unlock()
}

func (o *Orchestrator) watchFromEvent(ev event.Event) {
	o.WatchCase(ev.CaseID)
}

// pushEvent forwards one event to the mirror, best-effort. The pushed set
// is only an optimization: the mirror's id dedup is what makes re-pushing
// safe.
func (o *Orchestrator) pushEvent(ctx context.Context, ev event.Event) {
	o.mu.Lock()
	_, done := o.pushed[ev.ID]
	o.mu.Unlock()
	if done {
		return
	}

	if err := o.mirror.SaveEvent(ctx, ev); err != nil {
		o.recordErr(fmt.Errorf("push event %s: %w", ev.ID, err))
		log.Printf("[syncer] push event %s: %v", ev.ID, err)
		return
	}
	o.mu.Lock()
	o.pushed[ev.ID] = struct{}{}
	o.mu.Unlock()

	if o.relay != nil {
		if err := o.relay.Publish(ctx, ev); err != nil {
			log.Printf("[syncer] relay publish %s: %v", ev.ID, err)
		}
	}
}

// pullOnce runs one poll cycle. The in-flight guard makes an overlapping
// tick a no-op rather than a second concurrent cycle.
func (o *Orchestrator) pullOnce(ctx context.Context) {
	if !o.pullInFlight.CompareAndSwap(false, true) {
		return
	}
	defer o.pullInFlight.Store(false)

	o.mu.Lock()
	watched := make([]string, 0, len(o.watched))
	for id := range o.watched {
		watched = append(watched, id)
	}
	o.lastPullAt = time.Now().UTC()
	o.mu.Unlock()

	for _, caseID := range watched {
		o.pullCase(ctx, caseID)
	}
}

func (o *Orchestrator) pullCase(ctx context.Context, caseID string) {
	remote, err := o.mirror.EventsByCase(ctx, caseID)
	if err != nil {
		o.recordErr(fmt.Errorf("pull case %s: %w", caseID, err))
		log.Printf("[syncer] pull case %s: %v", caseID, err)
		return
	}

	local, err := o.manager.Events(ctx, caseID)
	if err != nil {
		o.recordErr(fmt.Errorf("read local case %s: %w", caseID, err))
		return
	}
	have := make(map[string]struct{}, len(local))
	for _, ev := range local {
		have[ev.ID] = struct{}{}
	}

	for _, ev := range remote {
		if _, ok := have[ev.ID]; ok {
			continue
		}
		o.watchFromEvent(ev)
		err := o.manager.Ingest(ctx, ev)
		if err != nil && !errors.Is(err, eventstore.ErrDuplicateID) {
			o.recordErr(fmt.Errorf("merge event %s: %w", ev.ID, err))
			log.Printf("[syncer] merge event %s: %v", ev.ID, err)
			continue
		}
		if err == nil {
			// merged remote events count as pushed: the mirror already has them
			o.mu.Lock()
			o.pushed[ev.ID] = struct{}{}
			o.mu.Unlock()
		}
	}
}

func (o *Orchestrator) recordErr(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}

// Status reports the orchestrator's current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		Running:      o.running,
		WatchedCases: make([]string, 0, len(o.watched)),
		PushedCount:  len(o.pushed),
		LastPullAt:   o.lastPullAt,
	}
	for id := range o.watched {
		st.WatchedCases = append(st.WatchedCases, id)
	}
	if o.lastErr != nil {
		st.LastError = o.lastErr.Error()
	}
	return st
}
