package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/layout"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/persistence"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/reconcile"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/resolve"
)

// Service ties the remapping pipeline together: documents in, resolver and
// transform engine over them, every result funneled through the reconciler
// registry, generation driven by the orchestrator, snapshots persisted after
// each committed change.
type Service struct {
	store        *persistence.Store
	registry     *reconcile.Registry
	Orchestrator *Orchestrator
	logger       *zap.Logger

	mu        sync.RWMutex
	documents map[string]*models.Document
}

// NewService creates the orchestration service. A nil pool disables
// persistence; everything else works in memory.
func NewService(pool *pgxpool.Pool, registry *reconcile.Registry, orch *Orchestrator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	var store *persistence.Store
	if pool != nil {
		store = persistence.NewStore(pool, logger)
	}
	return &Service{
		store:        store,
		registry:     registry,
		Orchestrator: orch,
		logger:       logger,
		documents:    make(map[string]*models.Document),
	}
}

// EnsureSchema creates the persistence tables when a store is configured.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.EnsureSchema(ctx)
}

// RegisterDocument stores a parsed layer tree and returns its server-issued id.
func (s *Service) RegisterDocument(ctx context.Context, req *models.RegisterDocumentRequest) (*models.Document, error) {
	doc := &models.Document{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Root:      req.Root,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.documents[doc.ID] = doc
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to persist document: %w", err)
		}
	}

	s.logger.Info("document registered",
		zap.String("document_id", doc.ID),
		zap.String("name", doc.Name),
	)
	return doc, nil
}

// GetDocument returns a registered document, falling back to the store when
// it is not cached.
func (s *Service) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()
	if ok {
		return doc, nil
	}

	if s.store == nil {
		return nil, fmt.Errorf("document not found")
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.documents[doc.ID] = doc
	s.mu.Unlock()
	return doc, nil
}

// ListDocuments lists registered documents.
func (s *Service) ListDocuments(ctx context.Context) ([]models.DocumentSummary, error) {
	if s.store != nil {
		return s.store.ListDocuments(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]models.DocumentSummary, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, models.DocumentSummary{ID: d.ID, Name: d.Name})
	}
	return docs, nil
}

// ResolveContainer runs the name resolver against a registered document.
// Resolution failures come back as statuses inside the response, not as
// errors; only an unknown document is an error.
func (s *Service) ResolveContainer(ctx context.Context, documentID, name string) (*models.ResolveResponse, error) {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	result := resolve.Resolve(name, doc.Root)
	resp := &models.ResolveResponse{
		Status:  result.Status,
		Message: result.Message,
	}
	if result.Matched != nil {
		resp.MatchedID = result.Matched.ID
		resp.MatchedName = result.Matched.Name
		resp.ChildCount = len(result.Matched.Children)
	}
	return resp, nil
}

// ApplyLayout runs the transform engine for one slot, reconciles the result,
// and lets the orchestrator act on the placement strategy. The returned view
// reflects the slot after both steps.
func (s *Service) ApplyLayout(ctx context.Context, key reconcile.SlotKey, req *models.LayoutRequest) (models.SlotView, error) {
	layers, scale := layout.Transform(req.SourceLayers, req.SourceBox, req.TargetBox, req.Strategy)

	status := models.StatusSuccess
	if len(req.SourceLayers) == 0 && !req.Strategy.Generative() {
		status = models.StatusIdle
	}

	s.registry.Apply(key, models.Candidate{
		Status:            status,
		Layers:            layers,
		ScaleFactor:       scale,
		GenerationAllowed: s.Orchestrator.EffectiveAllowed(key),
	})
	s.Orchestrator.Observe(ctx, key, req.Strategy, scale)

	p, ok := s.registry.Get(key)
	if !ok {
		return models.SlotView{}, reconcile.ErrSlotNotFound
	}
	s.persistSnapshot(key, p)
	return p.View(), nil
}

// GetSlot returns the current view for a slot.
func (s *Service) GetSlot(key reconcile.SlotKey) (models.SlotView, error) {
	p, ok := s.registry.Get(key)
	if !ok {
		return models.SlotView{}, reconcile.ErrSlotNotFound
	}
	return p.View(), nil
}

// Seek steps the history cursor for a slot.
func (s *Service) Seek(key reconcile.SlotKey, direction int) (models.SlotView, error) {
	return s.registry.Seek(key, direction)
}

// Confirm promotes an image to canonical content for a slot. An empty
// imageRef confirms the currently displayed preview.
func (s *Service) Confirm(ctx context.Context, key reconcile.SlotKey, imageRef string) (models.SlotView, error) {
	if imageRef == "" {
		p, ok := s.registry.Get(key)
		if !ok {
			return models.SlotView{}, reconcile.ErrSlotNotFound
		}
		imageRef = p.View().DisplayedPreview
	}
	if imageRef == "" {
		return models.SlotView{}, fmt.Errorf("slot has no image to confirm")
	}

	p, err := s.Orchestrator.Confirm(ctx, key, imageRef)
	if err != nil {
		return models.SlotView{}, err
	}
	s.persistSnapshot(key, p)
	return p.View(), nil
}

// SetSlotGeneration opens or closes the per-slot generation gate.
func (s *Service) SetSlotGeneration(key reconcile.SlotKey, allowed bool) (models.SlotView, error) {
	p, err := s.Orchestrator.SetSlotAllowed(key, allowed)
	if err != nil {
		return models.SlotView{}, err
	}
	s.persistSnapshot(key, p)
	return p.View(), nil
}

// SetGlobalGeneration opens or closes the global generation gate.
func (s *Service) SetGlobalGeneration(allowed bool) {
	s.Orchestrator.SetGlobalAllowed(allowed)
}

// RemoveNode tears down every slot owned by a node, in memory and in the
// store, and returns how many slots were removed.
func (s *Service) RemoveNode(ctx context.Context, nodeID string) (int, error) {
	removed := s.registry.RemoveNode(nodeID)
	s.Orchestrator.Forget(nodeID)

	if s.store != nil {
		if _, err := s.store.DeleteNodeSnapshots(ctx, nodeID); err != nil {
			return removed, fmt.Errorf("failed to delete persisted slots: %w", err)
		}
	}

	s.logger.Info("node removed",
		zap.String("node_id", nodeID),
		zap.Int("slots_removed", removed),
	)
	return removed, nil
}

// RestoreSnapshots reloads persisted slot state into the registry. Restored
// payloads carry geometry and flags only; previews and history are session
// state and start empty.
func (s *Service) RestoreSnapshots(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	records, err := s.store.LoadSnapshots(ctx)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		confirmed := rec.Payload.Confirmed
		s.registry.Apply(reconcile.SlotKey{NodeID: rec.NodeID, SlotID: rec.SlotID}, models.Candidate{
			Status:            rec.Payload.Status,
			Layers:            rec.Payload.Layers,
			ScaleFactor:       rec.Payload.ScaleFactor,
			Confirmed:         &confirmed,
			GenerationID:      rec.Payload.GenerationID,
			GenerationAllowed: rec.Payload.GenerationAllowed,
			SourceReference:   rec.Payload.SourceReference,
			ErrorMessage:      rec.Payload.ErrorMessage,
		})
	}

	s.logger.Info("slot snapshots restored", zap.Int("count", len(records)))
	return len(records), nil
}

// persistSnapshot writes the stripped payload in the background. Snapshot
// failures never fail the user operation.
func (s *Service) persistSnapshot(key reconcile.SlotKey, payload models.SlotPayload) {
	if s.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.SaveSnapshot(ctx, key.NodeID, key.SlotID, payload); err != nil {
			s.logger.Error("failed to persist slot snapshot",
				zap.String("slot", key.String()),
				zap.Error(err),
			)
		}
	}()
}
