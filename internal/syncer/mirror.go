package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dossier-hq/dossier/internal/event"
)

// Mirror is the remote event store the orchestrator pushes to and pulls
// from. SaveEvent must be idempotent by event id: re-sending an already
// stored event succeeds without creating a second record.
type Mirror interface {
	SaveEvent(ctx context.Context, ev event.Event) error
	EventsByCase(ctx context.Context, caseID string) ([]event.Event, error)
}

// HTTPMirror talks to a peer running the same HTTP API.
type HTTPMirror struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMirror builds a mirror client for the given base URL.
func NewHTTPMirror(baseURL string) *HTTPMirror {
	return &HTTPMirror{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SaveEvent POSTs the event to the peer's sync ingest endpoint. A 409 from
// the peer means the id is already stored, which is success for our
// purposes.
func (m *HTTPMirror) SaveEvent(ctx context.Context, ev event.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/sync/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mirror returned %s", resp.Status)
	}
	return nil
}

// EventsByCase fetches the peer's ordered log for one case.
func (m *HTTPMirror) EventsByCase(ctx context.Context, caseID string) ([]event.Event, error) {
	u := fmt.Sprintf("%s/sync/cases/%s/events", m.baseURL, url.PathEscape(caseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mirror returned %s", resp.Status)
	}
	var parsed struct {
		Events []event.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Events, nil
}
