package studio

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/threadswap/threadswap/pipeline"
)

// Generator runs the image processing pipeline. *pipeline.Pipeline
// satisfies it.
type Generator interface {
	Process(ctx context.Context, req pipeline.Request) pipeline.Result
}

// Draft is the payload for a new draft listing. Model linkage is not part
// of it: the model arrives on the draft through a follow-up patch.
type Draft struct {
	SellerID       string
	Title          string
	Description    string
	Category       string
	PriceCents     int64
	Currency       string
	SourceImageKey string
	FinalImageURL  string
	GenerationID   string
	Degraded       bool
}

// DraftStore persists studio drafts.
type DraftStore interface {
	CreateDraft(ctx context.Context, d Draft) (DraftRecord, error)
	AttachModel(ctx context.Context, productID, modelID, previewImageURL string) (DraftRecord, error)
}

// Describer writes listing copy from the final image. Optional; a plain
// template stands in when it is absent or failing.
type Describer interface {
	Describe(ctx context.Context, imageURL string) (title, description string, err error)
}

// Recorder keeps the user's generation gallery. Best effort: a recording
// failure never affects the session.
type Recorder interface {
	RecordGeneration(ctx context.Context, userID string, res pipeline.Result, imageKey string, category Category, modelID string) (string, error)
}

// Options configures Studio.
type Options struct {
	Generator     Generator
	Drafts        DraftStore
	Describer     Describer
	Recorder      Recorder
	Currency      string
	Timeout       time.Duration
	MaxConcurrent int64
	Logger        zerolog.Logger
}

// Studio owns every user's studio session and coordinates them with the
// pipeline and the stores. Session mutations hold the session lock;
// network calls never do.
type Studio struct {
	sessions *sessionStore
	gen      Generator
	drafts   DraftStore
	describe Describer
	record   Recorder
	currency string
	timeout  time.Duration
	sem      *semaphore.Weighted
	logger   zerolog.Logger
}

// New creates a Studio.
func New(opts Options) *Studio {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	currency := opts.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Studio{
		sessions: newSessionStore(),
		gen:      opts.Generator,
		drafts:   opts.Drafts,
		describe: opts.Describer,
		record:   opts.Recorder,
		currency: currency,
		timeout:  timeout,
		sem:      semaphore.NewWeighted(maxConcurrent),
		logger:   opts.Logger.With().Str("component", "studio").Logger(),
	}
}

// Session returns the current view of the user's session.
func (st *Studio) Session(userID string) Snapshot {
	s := st.sessions.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SelectImage starts a fresh flow around a new garment photo. Everything
// downstream of the image is cleared and any in-flight run is
// invalidated.
func (st *Studio) SelectImage(userID string, src pipeline.ImageSource, imageKey string) (Snapshot, error) {
	s := st.sessions.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return s.snapshotLocked(), ErrBusy
	}
	if src.IsEmpty() {
		return s.snapshotLocked(), ErrNoImage
	}
	s.epoch++
	s.source = src
	s.imageKey = imageKey
	s.category = ""
	s.model = nil
	s.result = nil
	s.generationID = ""
	s.draft = nil
	s.lastError = ""
	s.state = StateImageSelected
	return s.snapshotLocked(), nil
}

// SelectCategory declares the garment slot. Changing it drops a result
// generated for the old category.
func (st *Studio) SelectCategory(userID string, category Category) (Snapshot, error) {
	s := st.sessions.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return s.snapshotLocked(), ErrBusy
	}
	if s.source.IsEmpty() {
		return s.snapshotLocked(), ErrNoImage
	}
	if s.category != category {
		s.epoch++
		s.result = nil
		s.generationID = ""
		s.draft = nil
	}
	s.category = category
	s.lastError = ""
	if s.model != nil {
		s.state = StateModelSelected
	} else {
		s.state = StateCategorySelected
	}
	return s.snapshotLocked(), nil
}

// SelectModel picks a fashion model. Before generation it narrows the
// flow; once a draft exists it re-issues the model patch on that draft,
// never a second draft.
func (st *Studio) SelectModel(ctx context.Context, userID string, model *pipeline.ModelRef) (Snapshot, error) {
	s := st.sessions.get(userID)

	s.mu.Lock()
	if s.busy() {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrBusy
	}
	if s.state == StateDone {
		s.mu.Unlock()
		return st.patchDraftModel(ctx, s, model)
	}
	if s.category == "" {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNoCategory
	}
	if s.result != nil {
		// existing preview was generated with other picks
		s.epoch++
		s.result = nil
		s.generationID = ""
	}
	s.model = model
	s.state = StateModelSelected
	s.lastError = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, nil
}

// ClearModel lets the service pick a model at generation time.
func (st *Studio) ClearModel(userID string) (Snapshot, error) {
	s := st.sessions.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return s.snapshotLocked(), ErrBusy
	}
	if s.state == StateDone {
		return s.snapshotLocked(), ErrAlreadyKept
	}
	if s.category == "" {
		return s.snapshotLocked(), ErrNoCategory
	}
	if s.model != nil && s.result != nil {
		s.epoch++
		s.result = nil
		s.generationID = ""
	}
	s.model = nil
	s.state = StateAutoModel
	s.lastError = ""
	return s.snapshotLocked(), nil
}

// Generate runs the pipeline for the current picks. A second call while
// one is running is refused, and a result that arrives after the user has
// reset or restarted is discarded instead of clobbering the newer state.
func (st *Studio) Generate(ctx context.Context, userID string) (Snapshot, error) {
	s := st.sessions.get(userID)

	s.mu.Lock()
	if s.state == StateGenerating {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrGenerationInFlight
	}
	if s.busy() {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrBusy
	}
	if _, err := s.hasPicks(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	epoch := s.epoch
	req := pipeline.Request{
		Source:   s.source,
		Category: s.category.pipelineLabel(),
	}
	if s.model != nil {
		m := *s.model
		req.Model = &m
	}
	category := s.category
	imageKey := s.imageKey
	s.result = nil
	s.lastError = ""
	s.state = StateGenerating
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	if err := st.sem.Acquire(runCtx, 1); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch == epoch {
			s.state = s.preGenerateState()
			s.lastError = "The studio is busy, try again in a moment."
		}
		return s.snapshotLocked(), fmt.Errorf("acquire generation slot: %w", err)
	}
	res := st.gen.Process(runCtx, req)
	st.sem.Release(1)

	// The run happened, so it belongs in the gallery whether or not the
	// session still wants it.
	var generationID string
	if st.record != nil {
		modelID := ""
		if req.Model != nil {
			modelID = req.Model.ID
		}
		id, err := st.record.RecordGeneration(runCtx, userID, res, imageKey, category, modelID)
		if err != nil {
			st.logger.Warn().Err(err).Str("user", userID).Msg("recording generation failed")
		} else {
			generationID = id
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		st.logger.Info().Str("user", userID).Msg("discarding stale generation result")
		return s.snapshotLocked(), ErrStaleResult
	}
	r := res
	s.result = &r
	s.generationID = generationID
	s.state = StateResolved
	return s.snapshotLocked(), nil
}

// Keep persists the resolved result as a draft listing: one create, then
// one model patch when a model was picked. The image result survives any
// persistence failure, so Keep can simply be called again.
func (st *Studio) Keep(ctx context.Context, userID string) (Snapshot, error) {
	s := st.sessions.get(userID)

	s.mu.Lock()
	if s.busy() {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrBusy
	}
	if s.state == StateDone {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrAlreadyKept
	}
	if s.state != StateResolved || s.result == nil || !s.result.Succeeded {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNotResolved
	}
	epoch := s.epoch
	res := *s.result
	category := s.category
	imageKey := s.imageKey
	generationID := s.generationID
	var modelID string
	if s.model != nil {
		modelID = s.model.ID
	}
	s.state = StatePersisting
	s.mu.Unlock()

	persistCtx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	title, description := st.listingCopy(persistCtx, res.FinalImageURL, category)
	rec, err := st.drafts.CreateDraft(persistCtx, Draft{
		SellerID:       userID,
		Title:          title,
		Description:    description,
		Category:       string(category),
		PriceCents:     0,
		Currency:       st.currency,
		SourceImageKey: imageKey,
		FinalImageURL:  res.FinalImageURL,
		GenerationID:   generationID,
		Degraded:       res.Degraded,
	})

	var patchErr error
	if err == nil && modelID != "" {
		patched, aerr := st.drafts.AttachModel(persistCtx, rec.ID, modelID, res.FinalImageURL)
		if aerr != nil {
			patchErr = aerr
		} else {
			rec = patched
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// The user restarted while we were writing. The draft, if it was
		// created, stays in their drawer; this session has moved on.
		return s.snapshotLocked(), ErrStaleResult
	}
	if err != nil {
		s.state = StateResolved
		s.lastError = "Could not save the draft. Your preview is still here, try keeping it again."
		return s.snapshotLocked(), fmt.Errorf("create draft: %w", err)
	}
	s.draft = &rec
	s.adoptPreviewLocked(rec)
	s.state = StateDone
	if patchErr != nil {
		s.lastError = "Draft saved, but the model could not be attached. Pick the model again to retry."
		return s.snapshotLocked(), fmt.Errorf("attach model: %w", patchErr)
	}
	s.lastError = ""
	return s.snapshotLocked(), nil
}

// RunAgain abandons the current flow and returns to Idle. Allowed at any
// point, including mid generation: the epoch bump makes the in-flight
// result stale on arrival. A draft that was already saved stays saved.
func (st *Studio) RunAgain(userID string) Snapshot {
	s := st.sessions.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return s.snapshotLocked()
}

// patchDraftModel re-issues the draft's model attachment.
func (st *Studio) patchDraftModel(ctx context.Context, s *session, model *pipeline.ModelRef) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateDone || s.draft == nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNoDraft
	}
	epoch := s.epoch
	draftID := s.draft.ID
	preview := ""
	if s.result != nil {
		preview = s.result.FinalImageURL
	}
	modelID := ""
	if model != nil {
		modelID = model.ID
	}
	s.mu.Unlock()

	patchCtx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()
	rec, err := st.drafts.AttachModel(patchCtx, draftID, modelID, preview)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// The user started over while the patch was in flight. The
		// drawer copy is already updated; the fresh flow stays clean.
		return s.snapshotLocked(), ErrStaleResult
	}
	if err != nil {
		s.lastError = "Could not update the draft with the new model."
		return s.snapshotLocked(), fmt.Errorf("attach model: %w", err)
	}
	s.model = model
	s.draft = &rec
	s.adoptPreviewLocked(rec)
	s.lastError = ""
	return s.snapshotLocked(), nil
}

// listingCopy derives a draft title and description from the final image,
// falling back to a plain template when the describer is missing or
// failing. Draft creation never blocks on the describer.
func (st *Studio) listingCopy(ctx context.Context, imageURL string, category Category) (string, string) {
	title := "Pre-loved " + category.noun()
	description := "Photographed in the ThreadSwap studio. The seller will add measurements and details before publishing."
	if st.describe == nil || imageURL == "" {
		return title, description
	}

	dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	t, d, err := st.describe.Describe(dctx, imageURL)
	if err != nil {
		st.logger.Warn().Err(err).Msg("describer failed, using template copy")
		return title, description
	}
	if t != "" {
		title = t
	}
	if d != "" {
		description = d
	}
	return title, description
}
