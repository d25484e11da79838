package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/metrics"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/models"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/reconcile"
)

// DistortionThreshold is the scale factor beyond which a generative
// placement needs explicit user confirmation even without explicit intent.
const DistortionThreshold = 2.0

// Orchestrator drives the asynchronous generation lifecycle per slot:
// prompt-change detection, gating, in-flight de-duplication, dispatch, and
// feeding results back through the reconciler. Slot state itself lives only
// in the registry; the orchestrator tracks dispatch bookkeeping.
type Orchestrator struct {
	registry *reconcile.Registry
	client   GenerationClientInterface
	metrics  *metrics.GenerationMetrics
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu             sync.Mutex
	globalAllowed  bool
	slotAllowed    map[reconcile.SlotKey]bool
	lastPrompt     map[reconcile.SlotKey]string
	lastDispatched map[reconcile.SlotKey]string
	approvedPrompt map[reconcile.SlotKey]string
	inFlight       map[reconcile.SlotKey]bool
	lastGenID      map[reconcile.SlotKey]int64
}

// NewOrchestrator creates an orchestrator with generation globally enabled.
// The limiter caps dispatch rate across all slots; generation metrics are
// optional.
func NewOrchestrator(registry *reconcile.Registry, client GenerationClientInterface, gm *metrics.GenerationMetrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:       registry,
		client:         client,
		metrics:        gm,
		limiter:        rate.NewLimiter(rate.Limit(4), 8),
		logger:         logger,
		globalAllowed:  true,
		slotAllowed:    make(map[reconcile.SlotKey]bool),
		lastPrompt:     make(map[reconcile.SlotKey]string),
		lastDispatched: make(map[reconcile.SlotKey]string),
		approvedPrompt: make(map[reconcile.SlotKey]string),
		inFlight:       make(map[reconcile.SlotKey]bool),
		lastGenID:      make(map[reconcile.SlotKey]int64),
	}
}

// Observe inspects a freshly reconciled slot and advances its generation
// state machine: revoking a confirmation when the prompt moved on, parking
// the slot in AWAITING_CONFIRMATION when the placement needs sign-off, and
// dispatching a request when the prompt is new and the gates are open.
func (o *Orchestrator) Observe(ctx context.Context, key reconcile.SlotKey, strategy *models.PlacementStrategy, scaleFactor float64) {
	if !strategy.Generative() {
		return
	}
	prompt := strategy.Prompt

	o.mu.Lock()
	o.lastPrompt[key] = prompt

	// Refinement: the prompt changed after a confirmation. The stored
	// confirmation is revoked but history survives.
	if approved, ok := o.approvedPrompt[key]; ok && approved != prompt {
		delete(o.approvedPrompt, key)
		o.mu.Unlock()
		if _, err := o.registry.Revoke(key); err == nil {
			o.logger.Info("confirmation revoked after prompt change", zap.String("slot", key.String()))
		}
		o.mu.Lock()
	}

	if !o.effectiveAllowedLocked(key) {
		o.mu.Unlock()
		return
	}

	needsApproval := (strategy.ExplicitIntent || scaleFactor > DistortionThreshold) &&
		o.approvedPrompt[key] != prompt
	if needsApproval {
		o.mu.Unlock()
		o.registry.SetStatus(key, models.StatusAwaitingConfirmation)
		return
	}

	if o.inFlight[key] || o.lastDispatched[key] == prompt {
		o.mu.Unlock()
		return
	}
	o.inFlight[key] = true
	o.lastDispatched[key] = prompt
	o.mu.Unlock()

	// Mark the slot as synthesizing before dispatch so the UI keeps the
	// stored preview visible during the request.
	cur, _ := o.registry.Get(key)
	o.registry.Apply(key, models.Candidate{
		Status:            cur.Status,
		Layers:            cur.Layers,
		ScaleFactor:       cur.ScaleFactor,
		Synthesizing:      true,
		GenerationAllowed: true,
	})

	reference := strategy.SourceReferenceImage
	if reference == "" {
		reference = cur.SourceReference
	}
	if o.metrics != nil {
		o.metrics.RecordRequested(ctx, key.NodeID, key.SlotID)
	}

	go o.dispatch(context.WithoutCancel(ctx), key, prompt, reference)
}

// dispatch performs one generation service round trip for a slot. It runs
// on its own goroutine; the result re-enters the slot only through the
// reconciler, so late or duplicate completions are handled by the stale
// guard and the gate, never by cancelling the network call.
func (o *Orchestrator) dispatch(ctx context.Context, key reconcile.SlotKey, prompt, reference string) {
	if err := o.limiter.Wait(ctx); err != nil {
		o.finishDispatch(key)
		if o.metrics != nil {
			o.metrics.RecordDiscarded(ctx, key.NodeID, key.SlotID, "dispatch_cancelled")
		}
		return
	}

	start := time.Now()
	result, err := o.client.Generate(ctx, GenerationRequest{
		TraceID:        uuid.New().String(),
		Prompt:         prompt,
		ReferenceImage: reference,
	})
	duration := time.Since(start)
	o.finishDispatch(key)

	cur, ok := o.registry.Get(key)
	if !ok {
		// Node deleted while the request was in flight.
		if o.metrics != nil {
			o.metrics.RecordDiscarded(ctx, key.NodeID, key.SlotID, "slot_removed")
		}
		return
	}

	if err != nil {
		o.logger.Error("generation failed",
			zap.String("slot", key.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if o.metrics != nil {
			o.metrics.RecordFailed(ctx, key.NodeID, key.SlotID, "service_error", duration)
		}
		// Last-known-good stays visible: the error candidate carries the
		// stored preview and the stored clock, so nothing is displaced.
		o.registry.Apply(key, models.Candidate{
			Status:            models.StatusError,
			Layers:            cur.Layers,
			ScaleFactor:       cur.ScaleFactor,
			PreviewURL:        cur.PreviewURL,
			GenerationID:      cur.GenerationID,
			GenerationAllowed: true,
			ErrorMessage:      err.Error(),
		})
		return
	}

	allowed := o.EffectiveAllowed(key)
	if !allowed && o.metrics != nil {
		o.metrics.RecordDiscarded(ctx, key.NodeID, key.SlotID, "gate_closed")
	}
	if allowed && o.metrics != nil {
		o.metrics.RecordCompleted(ctx, key.NodeID, key.SlotID, duration)
	}

	o.registry.Apply(key, models.Candidate{
		Status:            models.StatusSuccess,
		Layers:            cur.Layers,
		ScaleFactor:       cur.ScaleFactor,
		PreviewURL:        result.Image,
		Transient:         true,
		GenerationID:      o.nextGenerationID(key),
		GenerationAllowed: allowed,
		SourceReference:   reference,
	})
}

// Confirm promotes the given image to canonical content for the slot,
// approves the current prompt, anchors the next refinement on the confirmed
// image, and stamps a fresh generation id.
func (o *Orchestrator) Confirm(ctx context.Context, key reconcile.SlotKey, imageRef string) (models.SlotPayload, error) {
	p, err := o.registry.Promote(key, imageRef, o.nextGenerationID(key))
	if err != nil {
		return models.SlotPayload{}, err
	}

	o.mu.Lock()
	if prompt, ok := o.lastPrompt[key]; ok {
		o.approvedPrompt[key] = prompt
	}
	o.mu.Unlock()

	o.logger.Info("slot confirmed",
		zap.String("slot", key.String()),
		zap.Int64("generation_id", p.GenerationID),
	)
	return p, nil
}

// SetGlobalAllowed flips the global generation gate. Closing it strips
// generative state from every slot immediately; results of requests still
// in flight are discarded by the kill switch when they arrive.
func (o *Orchestrator) SetGlobalAllowed(allowed bool) {
	o.mu.Lock()
	o.globalAllowed = allowed
	o.mu.Unlock()

	for _, key := range o.registry.Keys() {
		o.registry.SetGenerationAllowed(key, o.EffectiveAllowed(key))
	}
	if !allowed {
		o.mu.Lock()
		o.lastDispatched = make(map[reconcile.SlotKey]string)
		o.mu.Unlock()
	}
	o.logger.Info("global generation gate changed", zap.Bool("allowed", allowed))
}

// SetSlotAllowed flips the per-slot gate.
func (o *Orchestrator) SetSlotAllowed(key reconcile.SlotKey, allowed bool) (models.SlotPayload, error) {
	o.mu.Lock()
	o.slotAllowed[key] = allowed
	if !allowed {
		delete(o.lastDispatched, key)
	}
	o.mu.Unlock()

	return o.registry.SetGenerationAllowed(key, o.EffectiveAllowed(key))
}

// EffectiveAllowed reports whether generation may currently proceed for the
// slot: global gate AND per-slot gate.
func (o *Orchestrator) EffectiveAllowed(key reconcile.SlotKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.effectiveAllowedLocked(key)
}

func (o *Orchestrator) effectiveAllowedLocked(key reconcile.SlotKey) bool {
	slot, ok := o.slotAllowed[key]
	if !ok {
		slot = true
	}
	return o.globalAllowed && slot
}

// Forget drops all orchestrator bookkeeping for a removed node.
func (o *Orchestrator) Forget(nodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range []map[reconcile.SlotKey]string{o.lastPrompt, o.lastDispatched, o.approvedPrompt} {
		for k := range m {
			if k.NodeID == nodeID {
				delete(m, k)
			}
		}
	}
	for k := range o.slotAllowed {
		if k.NodeID == nodeID {
			delete(o.slotAllowed, k)
		}
	}
	for k := range o.lastGenID {
		if k.NodeID == nodeID {
			delete(o.lastGenID, k)
		}
	}
	for k := range o.inFlight {
		if k.NodeID == nodeID {
			delete(o.inFlight, k)
		}
	}
}

func (o *Orchestrator) finishDispatch(key reconcile.SlotKey) {
	o.mu.Lock()
	o.inFlight[key] = false
	o.mu.Unlock()
}

// nextGenerationID issues a strictly increasing logical clock value per
// slot. Wall-clock milliseconds are fused with a per-slot sequence so two
// completions in the same millisecond can never collide.
func (o *Orchestrator) nextGenerationID(key reconcile.SlotKey) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := time.Now().UnixMilli()
	if id <= o.lastGenID[key] {
		id = o.lastGenID[key] + 1
	}
	o.lastGenID[key] = id
	return id
}
