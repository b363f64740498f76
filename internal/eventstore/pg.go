package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/lib/pq"

	"github.com/dossier-hq/dossier/internal/event"
)

// PGStore persists the event log in Postgres. All reads order by
// (occurred_at, seq) so replay sees the same logical order regardless of
// append interleaving.
type PGStore struct {
	db          *sql.DB
	initialized atomic.Bool
}

// NewPGStore constructs a Postgres-backed store around an open handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (p *PGStore) Initialize(ctx context.Context) error {
	q := `
		CREATE TABLE IF NOT EXISTS case_events (
			id          TEXT PRIMARY KEY,
			event_type  TEXT NOT NULL,
			case_id     TEXT NOT NULL,
			actor_id    TEXT NOT NULL,
			actor_role  TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			seq         BIGSERIAL,
			payload     JSONB
		)
	`
	if _, err := p.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create case_events: %w", err)
	}
	idx := `CREATE INDEX IF NOT EXISTS case_events_case_time_idx ON case_events (case_id, occurred_at, seq)`
	if _, err := p.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("create case_events index: %w", err)
	}
	p.initialized.Store(true)
	return nil
}

func (p *PGStore) SaveEvent(ctx context.Context, ev event.Event) error {
	if err := event.Validate(ev); err != nil {
		return err
	}
	if !p.initialized.Load() {
		return ErrNotInitialized
	}
	payload := []byte(ev.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	q := `
		INSERT INTO case_events (id, event_type, case_id, actor_id, actor_role, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.db.ExecContext(ctx, q, ev.ID, string(ev.Type), ev.CaseID, ev.ActorID, ev.ActorRole, ev.OccurredAt, payload)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert case_event: %w", err)
	}
	return nil
}

func (p *PGStore) Events(ctx context.Context, caseID string) ([]event.Event, error) {
	if !p.initialized.Load() {
		return nil, ErrNotInitialized
	}
	q := `SELECT id, event_type, case_id, actor_id, actor_role, occurred_at, seq, payload FROM case_events`
	var (
		rows *sql.Rows
		err  error
	)
	if caseID != "" {
		q += ` WHERE case_id = $1 ORDER BY occurred_at, seq`
		rows, err = p.db.QueryContext(ctx, q, caseID)
	} else {
		q += ` ORDER BY occurred_at, seq`
		rows, err = p.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("query case_events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			ev      event.Event
			evType  string
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &evType, &ev.CaseID, &ev.ActorID, &ev.ActorRole, &ev.OccurredAt, &ev.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan case_event: %w", err)
		}
		ev.Type = event.Type(evType)
		if len(payload) > 0 && string(payload) != "null" {
			ev.Payload = payload
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (p *PGStore) EventCount(ctx context.Context, caseID string) (int, error) {
	if !p.initialized.Load() {
		return 0, ErrNotInitialized
	}
	var (
		n   int
		err error
	)
	if caseID != "" {
		err = p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM case_events WHERE case_id = $1`, caseID).Scan(&n)
	} else {
		err = p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM case_events`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count case_events: %w", err)
	}
	return n, nil
}

func (p *PGStore) CaseIDs(ctx context.Context) ([]string, error) {
	if !p.initialized.Load() {
		return nil, ErrNotInitialized
	}
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT case_id FROM case_events ORDER BY case_id`)
	if err != nil {
		return nil, fmt.Errorf("query case ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PGStore) Clear(ctx context.Context) error {
	if !p.initialized.Load() {
		return ErrNotInitialized
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM case_events`); err != nil {
		return fmt.Errorf("clear case_events: %w", err)
	}
	return nil
}

func (p *PGStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
