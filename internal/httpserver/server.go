// package httpserver exposes the command and query surface: case and event
// CRUD-by-append, replay control, board commands, link suggestions, sync
// management, and snapshot export/import.
package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dossier-hq/dossier/internal/auth"
	"github.com/dossier-hq/dossier/internal/board"
	"github.com/dossier-hq/dossier/internal/casemanager"
	"github.com/dossier-hq/dossier/internal/casestate"
	"github.com/dossier-hq/dossier/internal/event"
	"github.com/dossier-hq/dossier/internal/eventstore"
	"github.com/dossier-hq/dossier/internal/permission"
	"github.com/dossier-hq/dossier/internal/replay"
	"github.com/dossier-hq/dossier/internal/suggest"
	"github.com/dossier-hq/dossier/internal/syncer"
)

// Syncer is the subset of orchestrator behavior the HTTP surface needs.
// Nil when sync is not configured.
type Syncer interface {
	WatchCase(caseID string)
	UnwatchCase(caseID string)
	Status() syncer.Status
}

// Server wires the HTTP routes over the aggregate manager.
type Server struct {
	manager  *casemanager.Manager
	verifier *auth.Verifier
	replay   *replay.Engine
	sync     Syncer

	boards *boardRegistry
}

// New builds a server. sync may be nil.
func New(manager *casemanager.Manager, verifier *auth.Verifier, sync Syncer) *Server {
	s := &Server{
		manager:  manager,
		verifier: verifier,
		replay:   replay.New(manager),
		sync:     sync,
		boards:   newBoardRegistry(manager),
	}
	manager.Subscribe(s.replay.Observe)
	manager.Subscribe(s.boards.observe)
	return s
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/sync", func(r chi.Router) {
		// peer-to-peer endpoints; a mirror peer is not an interactive actor
		r.Post("/events", s.handleSyncIngest)
		r.Get("/cases/{caseID}/events", s.handleSyncEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.verifier.Middleware)
			r.Get("/watch", s.handleSyncStatus)
			r.Post("/watch/{caseID}", s.handleSyncWatch)
			r.Delete("/watch/{caseID}", s.handleSyncUnwatch)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.verifier.Middleware)

		r.Route("/cases", func(r chi.Router) {
			r.Get("/", s.handleListCases)
			r.Post("/", s.handleCreateCase)

			r.Route("/{caseID}", func(r chi.Router) {
				r.Get("/", s.handleGetCase)
				r.Get("/events", s.handleListEvents)
				r.Post("/events", s.handleAppendEvent)
				r.Get("/suggestions", s.handleSuggestions)

				r.Route("/board", func(r chi.Router) {
					r.Get("/", s.handleBoardState)
					r.Post("/mode", s.handleBoardMode)
					r.Post("/tools", s.handleBoardTools)
					r.Post("/select/{nodeID}", s.handleBoardSelect)
					r.Post("/nodes/{nodeID}/move", s.handleBoardMove)
					r.Delete("/nodes/{nodeID}", s.handleBoardDeleteNode)
					r.Post("/connections", s.handleBoardConnect)
					r.Delete("/connections/{connID}", s.handleBoardDeleteConnection)
					r.Post("/undo", s.handleBoardUndo)
					r.Post("/redo", s.handleBoardRedo)
					r.Post("/zoom", s.handleBoardZoom)
					r.Post("/pan", s.handleBoardPan)
					r.Post("/arrange", s.handleBoardArrange)
					r.Post("/layout", s.handleBoardSaveLayout)
				})
			})
		})

		r.Route("/replay", func(r chi.Router) {
			r.Get("/", s.handleReplayStatus)
			r.Post("/case/{caseID}", s.handleReplaySetCase)
			r.Post("/goto", s.handleReplayGoTo)
			r.Post("/step-forward", s.handleReplayStepForward)
			r.Post("/step-backward", s.handleReplayStepBackward)
			r.Post("/reset", s.handleReplayReset)
			r.Post("/play", s.handleReplayPlay)
			r.Post("/pause", s.handleReplayPause)
		})

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.manager.Store().Ping(r.Context()); err != nil {
		status["ok"] = false
		status["store"] = "down"
		status["error"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status["store"] = "up"
	respondJSON(w, http.StatusOK, status)
}

// --- cases ---

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.manager.Summaries(r.Context())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cases": summaries})
}

type createCaseRequest struct {
	CaseID      string   `json:"caseId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Tags        []string `json:"tags"`
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	var req createCaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", "title is required")
		return
	}
	if !permission.Can(actor.Role, permission.ActionCaseCreate, casestate.New()) {
		respondError(w, http.StatusForbidden, "DOSSIER_FORBIDDEN", "role cannot create cases")
		return
	}
	caseID := req.CaseID
	if caseID == "" {
		caseID = event.NewID()
	}
	ev, err := s.manager.Append(r.Context(), casemanager.AppendInput{
		Type:      event.TypeCaseCreated,
		CaseID:    caseID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Payload: event.MarshalPayload(event.CaseCreatedPayload{
			Title:       req.Title,
			Description: req.Description,
			Severity:    req.Severity,
			Tags:        req.Tags,
		}),
	})
	if err != nil {
		respondAppendErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"caseId":  caseID,
		"eventId": ev.ID,
	})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	caseID := chi.URLParam(r, "caseID")
	state, err := s.manager.CaseState(r.Context(), caseID, actor.Role)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	if state.EventCount == 0 {
		respondError(w, http.StatusNotFound, "DOSSIER_NOT_FOUND", "case not found")
		return
	}
	// restricted evidence is redacted for roles without view rights
	if !permission.Can(actor.Role, permission.ActionEvidenceViewRestricted, state) {
		for id, ev := range state.Evidence {
			if ev.Visibility == casestate.VisibilityRestricted {
				ev.Content = ""
				ev.Description = ""
				state.Evidence[id] = ev
			}
		}
	}
	respondJSON(w, http.StatusOK, state)
}

// --- events ---

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.manager.Events(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

type appendEventRequest struct {
	Type    event.Type      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// actionFor maps an appended event type to the permission it requires.
// Unknown types need no specific grant beyond authentication.
func actionFor(t event.Type, state casestate.CaseState) (string, bool) {
	switch t {
	case event.TypeCaseCreated:
		return permission.ActionCaseCreate, true
	case event.TypeCaseStatusChanged:
		if state.Status == casestate.StatusClosed {
			return permission.ActionCaseReopen, true
		}
		return permission.ActionCaseClose, true
	case event.TypeEvidenceAdded, event.TypeEvidenceCorrected:
		return permission.ActionEvidenceAdd, true
	case event.TypeEvidenceTrustChanged:
		return permission.ActionEvidenceVerify, true
	case event.TypeHypothesisProposed, event.TypeHypothesisStatusChanged:
		return permission.ActionHypothesisPropose, true
	case event.TypeEvidenceConnected, event.TypePathRecorded:
		return permission.ActionConnectionCreate, true
	case event.TypeVisualLayoutUpdated:
		return permission.ActionLayoutSave, true
	}
	return "", false
}

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	caseID := chi.URLParam(r, "caseID")
	var req appendEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}

	state, err := s.manager.CaseState(r.Context(), caseID, actor.Role)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	if action, known := actionFor(req.Type, state); known {
		if !permission.Can(actor.Role, action, state) {
			respondError(w, http.StatusForbidden, "DOSSIER_FORBIDDEN", "role lacks "+action)
			return
		}
	}

	ev, err := s.manager.Append(r.Context(), casemanager.AppendInput{
		Type:      req.Type,
		CaseID:    caseID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Payload:   req.Payload,
	})
	if err != nil {
		respondAppendErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"eventId":    ev.ID,
		"occurredAt": ev.OccurredAt,
	})
}

// --- suggestions ---

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	state, err := s.manager.CaseState(r.Context(), chi.URLParam(r, "caseID"), actor.Role)
	if err != nil {
		respondStoreErr(w, err)
		return
	}

	items := make([]suggest.Item, 0, len(state.Evidence))
	for _, ev := range state.Evidence {
		items = append(items, suggest.Item{
			ID:          ev.ID,
			Content:     ev.Content,
			Description: ev.Description,
			Tags:        ev.Tags,
			SubmittedAt: ev.SubmittedAt,
		})
	}
	existing := make(map[string]struct{}, len(state.Connections))
	for _, conn := range state.Connections {
		existing[suggest.PairKey(conn.SourceID, conn.TargetID)] = struct{}{}
	}
	suggestions := suggest.DiscoverLinks(items, existing)
	respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// --- replay ---

func (s *Server) handleReplayStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": s.replay.Status(),
		"state":  s.replay.State(),
	})
}

func (s *Server) handleReplaySetCase(w http.ResponseWriter, r *http.Request) {
	if err := s.replay.SetCase(r.Context(), chi.URLParam(r, "caseID")); err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.replay.Status())
}

type replayGoToRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleReplayGoTo(w http.ResponseWriter, r *http.Request) {
	var req replayGoToRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	s.replay.GoTo(req.Index)
	respondJSON(w, http.StatusOK, s.replay.Status())
}

func (s *Server) handleReplayStepForward(w http.ResponseWriter, r *http.Request) {
	s.replay.StepForward()
	respondJSON(w, http.StatusOK, s.replay.Status())
}

func (s *Server) handleReplayStepBackward(w http.ResponseWriter, r *http.Request) {
	s.replay.StepBackward()
	respondJSON(w, http.StatusOK, s.replay.Status())
}

func (s *Server) handleReplayReset(w http.ResponseWriter, r *http.Request) {
	s.replay.Reset()
	respondJSON(w, http.StatusOK, s.replay.Status())
}

type replayPlayRequest struct {
	IntervalMs int `json:"intervalMs"`
}

func (s *Server) handleReplayPlay(w http.ResponseWriter, r *http.Request) {
	var req replayPlayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	interval := replay.DefaultPlayInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	s.replay.Play(interval)
	respondJSON(w, http.StatusOK, s.replay.Status())
}

func (s *Server) handleReplayPause(w http.ResponseWriter, r *http.Request) {
	s.replay.Pause()
	respondJSON(w, http.StatusOK, s.replay.Status())
}

// --- board ---

func (s *Server) boardFor(r *http.Request) (*board.Machine, error) {
	return s.boards.machine(r.Context(), chi.URLParam(r, "caseID"))
}

func boardActor(r *http.Request) board.Actor {
	actor, _ := auth.FromContext(r.Context())
	return board.Actor{ID: actor.ID, Role: actor.Role}
}

func (s *Server) handleBoardState(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m.State())
}

type boardModeRequest struct {
	Mode board.Mode `json:"mode"`
}

func (s *Server) handleBoardMode(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	var req boardModeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	m.SetMode(req.Mode)
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardTools(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	var req board.ToolSettings
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	m.SetTools(req)
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardSelect(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	m.SelectNode(chi.URLParam(r, "nodeID"))
	respondJSON(w, http.StatusOK, m.State())
}

type boardMoveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleBoardMove(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	var req boardMoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	m.MoveNode(chi.URLParam(r, "nodeID"), board.Point{X: req.X, Y: req.Y})
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardDeleteNode(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	m.DeleteNode(chi.URLParam(r, "nodeID"))
	respondJSON(w, http.StatusOK, m.State())
}

type boardConnectRequest struct {
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
	Type         string `json:"type"`
	Strength     int    `json:"strength"`
	Reason       string `json:"reason"`
}

func (s *Server) handleBoardConnect(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	var req boardConnectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	if !permission.Can(actor.Role, permission.ActionConnectionCreate, casestate.New()) {
		respondError(w, http.StatusForbidden, "DOSSIER_FORBIDDEN", "role cannot create connections")
		return
	}
	m.CreateConnection(r.Context(), boardActor(r), req.SourceNodeID, req.TargetNodeID, req.Type, req.Strength, req.Reason)
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardDeleteConnection(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	m.DeleteConnection(chi.URLParam(r, "connID"))
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardUndo(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	m.Undo()
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardRedo(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	m.Redo()
	respondJSON(w, http.StatusOK, m.State())
}

type boardZoomRequest struct {
	Delta   float64  `json:"delta"`
	CenterX *float64 `json:"centerX"`
	CenterY *float64 `json:"centerY"`
}

func (s *Server) handleBoardZoom(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	var req boardZoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	var center *board.Point
	if req.CenterX != nil && req.CenterY != nil {
		center = &board.Point{X: *req.CenterX, Y: *req.CenterY}
	}
	m.Zoom(req.Delta, center)
	respondJSON(w, http.StatusOK, m.State())
}

type boardPanRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

func (s *Server) handleBoardPan(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	var req boardPanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	m.Pan(req.DX, req.DY)
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardArrange(w http.ResponseWriter, r *http.Request) {
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	m.AutoArrange()
	respondJSON(w, http.StatusOK, m.State())
}

func (s *Server) handleBoardSaveLayout(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	m, err := s.boardFor(r)
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	if !permission.Can(actor.Role, permission.ActionLayoutSave, casestate.New()) {
		respondError(w, http.StatusForbidden, "DOSSIER_FORBIDDEN", "role cannot save layouts")
		return
	}
	if err := m.SaveLayout(r.Context(), boardActor(r)); err != nil {
		respondAppendErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m.State())
}

// --- sync ---

func (s *Server) handleSyncIngest(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	if err := s.manager.Ingest(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, eventstore.ErrDuplicateID):
			respondError(w, http.StatusConflict, "DOSSIER_DUPLICATE", "event id already stored")
		case errors.Is(err, event.ErrValidation):
			respondError(w, http.StatusBadRequest, "DOSSIER_VALIDATION", err.Error())
		default:
			respondStoreErr(w, err)
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"eventId": ev.ID})
}

func (s *Server) handleSyncEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.manager.Events(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"status":  s.sync.Status(),
	})
}

func (s *Server) requireSyncManage(w http.ResponseWriter, r *http.Request) bool {
	actor, _ := auth.FromContext(r.Context())
	if !permission.Can(actor.Role, permission.ActionSyncManage, casestate.New()) {
		respondError(w, http.StatusForbidden, "DOSSIER_FORBIDDEN", "role cannot manage sync")
		return false
	}
	if s.sync == nil {
		respondError(w, http.StatusServiceUnavailable, "DOSSIER_SYNC_DISABLED", "sync is not configured")
		return false
	}
	return true
}

func (s *Server) handleSyncWatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireSyncManage(w, r) {
		return
	}
	s.sync.WatchCase(chi.URLParam(r, "caseID"))
	respondJSON(w, http.StatusOK, s.sync.Status())
}

func (s *Server) handleSyncUnwatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireSyncManage(w, r) {
		return
	}
	s.sync.UnwatchCase(chi.URLParam(r, "caseID"))
	respondJSON(w, http.StatusOK, s.sync.Status())
}

// --- export / import ---

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	if !permission.Can(actor.Role, permission.ActionExport, casestate.New()) {
		respondError(w, http.StatusForbidden, "DOSSIER_FORBIDDEN", "role cannot export")
		return
	}
	data, err := eventstore.Export(r.Context(), s.manager.Store())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	if !permission.Can(actor.Role, permission.ActionImport, casestate.New()) {
		respondError(w, http.StatusForbidden, "DOSSIER_FORBIDDEN", "role cannot import")
		return
	}
	body := http.MaxBytesReader(w, r.Body, 32<<20)
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_BAD_REQUEST", err.Error())
		return
	}
	events, err := eventstore.DecodeSnapshot(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "DOSSIER_INVALID_FORMAT", err.Error())
		return
	}
	// Each event goes through the manager so live subscribers (replay
	// engine, board machines, push sync) see imports like any other write.
	for _, ev := range events {
		if err := s.manager.Ingest(r.Context(), ev); err != nil {
			if errors.Is(err, eventstore.ErrDuplicateID) {
				continue
			}
			respondStoreErr(w, err)
			return
		}
	}
	n, err := s.manager.Store().EventCount(r.Context(), "")
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"eventCount": n})
}

// --- helpers ---

func respondAppendErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, event.ErrValidation):
		respondError(w, http.StatusBadRequest, "DOSSIER_VALIDATION", err.Error())
	case errors.Is(err, eventstore.ErrDuplicateID):
		respondError(w, http.StatusConflict, "DOSSIER_DUPLICATE", err.Error())
	case errors.Is(err, eventstore.ErrNotInitialized):
		respondError(w, http.StatusServiceUnavailable, "DOSSIER_STORE_UNAVAILABLE", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "DOSSIER_INTERNAL", err.Error())
	}
}

func respondStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, eventstore.ErrNotInitialized) {
		respondError(w, http.StatusServiceUnavailable, "DOSSIER_STORE_UNAVAILABLE", err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "DOSSIER_INTERNAL", err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
		"code":  code,
	})
}
