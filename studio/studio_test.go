package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadswap/threadswap/pipeline"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	result  pipeline.Result
	block   chan struct{}
	lastReq pipeline.Request
}

func (f *fakeGenerator) Process(_ context.Context, req pipeline.Request) pipeline.Result {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.result
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDrafts struct {
	mu         sync.Mutex
	creates    int
	patches    int
	createErr  error
	patchErr   error
	patchBlock chan struct{}

	lastDraft        Draft
	lastPatchID      string
	lastPatchModel   string
	lastPatchPreview string

	createRecord DraftRecord
	patchRecord  DraftRecord
}

func (f *fakeDrafts) CreateDraft(_ context.Context, d Draft) (DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.lastDraft = d
	if f.createErr != nil {
		return DraftRecord{}, f.createErr
	}
	rec := f.createRecord
	if rec.ID == "" {
		rec = DraftRecord{ID: "draft-1", Title: d.Title, Status: "draft"}
	}
	return rec, nil
}

func (f *fakeDrafts) AttachModel(_ context.Context, productID, modelID, previewImageURL string) (DraftRecord, error) {
	f.mu.Lock()
	f.patches++
	f.lastPatchID = productID
	f.lastPatchModel = modelID
	f.lastPatchPreview = previewImageURL
	block := f.patchBlock
	patchErr := f.patchErr
	rec := f.patchRecord
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if patchErr != nil {
		return DraftRecord{}, patchErr
	}
	if rec.ID == "" {
		rec = DraftRecord{ID: productID, Status: "draft"}
	}
	return rec, nil
}

func (f *fakeDrafts) counts() (creates, patches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.patches
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRecorder) RecordGeneration(_ context.Context, _ string, _ pipeline.Result, _ string, _ Category, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "gen-1", nil
}

type fakeDescriber struct {
	title, description string
	err                error
}

func (f *fakeDescriber) Describe(_ context.Context, _ string) (string, string, error) {
	return f.title, f.description, f.err
}

func successResult() pipeline.Result {
	return pipeline.Result{
		Succeeded:     true,
		FinalImageURL: "https://cdn.example.com/final.png",
		SourceRef:     "upload://tee.png",
		Garment:       pipeline.GarmentTops,
		Gender:        pipeline.GenderFemale,
		Narrative:     "Background removed and model preview generated.",
	}
}

func newTestStudio(gen *fakeGenerator, drafts *fakeDrafts, opts ...func(*Options)) *Studio {
	o := Options{
		Generator:     gen,
		Drafts:        drafts,
		Currency:      "USD",
		Timeout:       2 * time.Second,
		MaxConcurrent: 2,
		Logger:        zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func uploadedImage() pipeline.ImageSource {
	return pipeline.ImageFromBytes([]byte("png-bytes"), "tee.png")
}

// drive a session to Resolved with the given model picked (or auto).
func generateOnce(t *testing.T, st *Studio, user string, model *pipeline.ModelRef) Snapshot {
	t.Helper()
	_, err := st.SelectImage(user, uploadedImage(), "studio_uploads/tee.png")
	require.NoError(t, err)
	_, err = st.SelectCategory(user, CategoryTop)
	require.NoError(t, err)
	if model != nil {
		_, err = st.SelectModel(context.Background(), user, model)
		require.NoError(t, err)
	}
	snap, err := st.Generate(context.Background(), user)
	require.NoError(t, err)
	return snap
}

func TestGenerateRequiresImageThenCategory(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	st := newTestStudio(gen, &fakeDrafts{})

	_, err := st.Generate(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, 0, gen.callCount(), "validation failures must not reach the pipeline")

	_, err = st.SelectImage("u1", uploadedImage(), "k")
	require.NoError(t, err)
	_, err = st.Generate(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoCategory)
	assert.Equal(t, 0, gen.callCount())
}

func TestCategoryMustFollowImage(t *testing.T) {
	st := newTestStudio(&fakeGenerator{}, &fakeDrafts{})
	_, err := st.SelectCategory("u1", CategoryTop)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestStudioCategoriesClassifyToTheirSlots(t *testing.T) {
	for category, want := range map[Category]pipeline.GarmentType{
		CategoryTop:      pipeline.GarmentTops,
		CategoryBottom:   pipeline.GarmentBottoms,
		CategoryFullBody: pipeline.GarmentOnePiece,
	} {
		assert.Equal(t, want, pipeline.ClassifyGarment(category.pipelineLabel()), "category %s", category)
	}
}

func TestHappyPathToDone(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{
		patchRecord: DraftRecord{ID: "draft-1", Status: "draft", AIPreviewURL: "https://s3.example.com/previews/draft-1.png"},
	}
	st := newTestStudio(gen, drafts)
	model := &pipeline.ModelRef{ID: "m1", Name: "Ava", Gender: "female"}

	snap := generateOnce(t, st, "u1", model)
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, OutcomeSuccess, snap.Outcome)
	require.NotNil(t, snap.Result)

	snap, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateDone, snap.State)
	require.NotNil(t, snap.Draft)
	assert.Equal(t, "draft-1", snap.Draft.ID)

	creates, patches := drafts.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, patches, "picked model is attached by a follow-up patch")
	assert.Equal(t, "m1", drafts.lastPatchModel)
	assert.Equal(t, "https://cdn.example.com/final.png", drafts.lastPatchPreview)

	// server-authoritative preview replaces the session's own address
	assert.Equal(t, "https://s3.example.com/previews/draft-1.png", snap.Result.FinalImageURL)
}

func TestAutoModelKeepSkipsPatch(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts)

	snap := generateOnce(t, st, "u1", nil)
	assert.Equal(t, OutcomeSuccess, snap.Outcome)

	_, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)

	creates, patches := drafts.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, patches)
	assert.Equal(t, "Pre-loved top", drafts.lastDraft.Title)
	assert.Equal(t, int64(0), drafts.lastDraft.PriceCents, "drafts start at a placeholder price")
}

func TestDegradedRunStillKeepable(t *testing.T) {
	degraded := pipeline.Result{
		Succeeded:     true,
		Degraded:      true,
		FinalImageURL: "https://cdn.example.com/cutout.png",
		Narrative:     "Model preview is unavailable right now, showing the cutout instead.",
	}
	gen := &fakeGenerator{result: degraded}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts)

	snap := generateOnce(t, st, "u1", nil)
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, OutcomeDegraded, snap.Outcome)
	assert.Contains(t, snap.Result.Narrative, "cutout")

	snap, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateDone, snap.State)
	assert.True(t, drafts.lastDraft.Degraded)
	assert.Equal(t, "https://cdn.example.com/cutout.png", drafts.lastDraft.FinalImageURL)
}

func TestFailedRunCannotBeKept(t *testing.T) {
	failed := pipeline.Result{
		Succeeded:     false,
		FinalImageURL: "upload://tee.png",
		Narrative:     "Background removal rejected the image (status 500).",
	}
	gen := &fakeGenerator{result: failed}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts)

	snap := generateOnce(t, st, "u1", nil)
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, OutcomeFailed, snap.Outcome)

	_, err := st.Keep(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotResolved)
	creates, _ := drafts.counts()
	assert.Equal(t, 0, creates)
}

func TestSecondGenerateWhileRunningIsRefused(t *testing.T) {
	gen := &fakeGenerator{result: successResult(), block: make(chan struct{})}
	st := newTestStudio(gen, &fakeDrafts{})

	_, err := st.SelectImage("u1", uploadedImage(), "k")
	require.NoError(t, err)
	_, err = st.SelectCategory("u1", CategoryTop)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		st.Generate(context.Background(), "u1")
	}()

	require.Eventually(t, func() bool {
		return st.Session("u1").State == StateGenerating
	}, time.Second, 5*time.Millisecond)

	_, err = st.Generate(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrGenerationInFlight)
	assert.Equal(t, 1, gen.callCount(), "the guard lives in the core, not the UI")

	close(gen.block)
	<-done
	assert.Equal(t, StateResolved, st.Session("u1").State)
}

func TestRunAgainDiscardsInFlightResult(t *testing.T) {
	gen := &fakeGenerator{result: successResult(), block: make(chan struct{})}
	st := newTestStudio(gen, &fakeDrafts{})

	_, err := st.SelectImage("u1", uploadedImage(), "k")
	require.NoError(t, err)
	_, err = st.SelectCategory("u1", CategoryTop)
	require.NoError(t, err)

	type outcome struct {
		snap Snapshot
		err  error
	}
	res := make(chan outcome, 1)
	go func() {
		snap, err := st.Generate(context.Background(), "u1")
		res <- outcome{snap, err}
	}()

	require.Eventually(t, func() bool {
		return st.Session("u1").State == StateGenerating
	}, time.Second, 5*time.Millisecond)

	snap := st.RunAgain("u1")
	assert.Equal(t, StateIdle, snap.State)

	close(gen.block)
	out := <-res
	assert.ErrorIs(t, out.err, ErrStaleResult)

	final := st.Session("u1")
	assert.Equal(t, StateIdle, final.State, "stale result must not clobber the reset session")
	assert.Nil(t, final.Result)
}

func TestMutationsRefusedWhileGenerating(t *testing.T) {
	gen := &fakeGenerator{result: successResult(), block: make(chan struct{})}
	st := newTestStudio(gen, &fakeDrafts{})

	_, err := st.SelectImage("u1", uploadedImage(), "k")
	require.NoError(t, err)
	_, err = st.SelectCategory("u1", CategoryTop)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		st.Generate(context.Background(), "u1")
	}()
	require.Eventually(t, func() bool {
		return st.Session("u1").State == StateGenerating
	}, time.Second, 5*time.Millisecond)

	_, err = st.SelectImage("u1", uploadedImage(), "k2")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = st.SelectCategory("u1", CategoryBottom)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = st.SelectModel(context.Background(), "u1", &pipeline.ModelRef{ID: "m1"})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = st.Keep(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrBusy)

	close(gen.block)
	<-done
}

func TestModelChangeAfterDonePatchesOnce(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts)

	generateOnce(t, st, "u1", &pipeline.ModelRef{ID: "m1", Gender: "female"})
	_, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)

	createsBefore, patchesBefore := drafts.counts()
	require.Equal(t, 1, createsBefore)
	require.Equal(t, 1, patchesBefore)

	snap, err := st.SelectModel(context.Background(), "u1", &pipeline.ModelRef{ID: "m2", Gender: "female"})
	require.NoError(t, err)

	creates, patches := drafts.counts()
	assert.Equal(t, 1, creates, "changing the model must never create a second draft")
	assert.Equal(t, 2, patches, "exactly one new patch per model change")
	assert.Equal(t, "m2", drafts.lastPatchModel)
	assert.Equal(t, "draft-1", drafts.lastPatchID)
	assert.Equal(t, StateDone, snap.State)
	assert.Equal(t, "m2", snap.Model.ID)
}

func TestModelPatchLandingAfterRestartIsDiscarded(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts)

	generateOnce(t, st, "u1", &pipeline.ModelRef{ID: "m1", Gender: "female"})
	_, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)

	drafts.mu.Lock()
	drafts.patchBlock = make(chan struct{})
	drafts.mu.Unlock()

	type outcome struct {
		snap Snapshot
		err  error
	}
	res := make(chan outcome, 1)
	go func() {
		snap, err := st.SelectModel(context.Background(), "u1", &pipeline.ModelRef{ID: "m2", Gender: "female"})
		res <- outcome{snap, err}
	}()

	require.Eventually(t, func() bool {
		_, patches := drafts.counts()
		return patches == 2
	}, time.Second, 5*time.Millisecond)

	// A new flow starts while the patch is still writing.
	_, err = st.SelectImage("u1", uploadedImage(), "studio_uploads/next.png")
	require.NoError(t, err)

	close(drafts.patchBlock)
	out := <-res
	assert.ErrorIs(t, out.err, ErrStaleResult)

	final := st.Session("u1")
	assert.Equal(t, StateImageSelected, final.State)
	assert.Nil(t, final.Draft, "the old draft must not leak into the new flow")
	assert.Nil(t, final.Model, "the old model pick must not leak into the new flow")
}

func TestKeepFailureRetainsResultAndRetries(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{createErr: errors.New("mongo down")}
	st := newTestStudio(gen, drafts)

	generateOnce(t, st, "u1", nil)

	snap, err := st.Keep(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, StateResolved, snap.State, "a failed save must not lose the image result")
	require.NotNil(t, snap.Result)
	assert.NotEmpty(t, snap.LastError)

	drafts.mu.Lock()
	drafts.createErr = nil
	drafts.mu.Unlock()

	snap, err = st.Keep(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateDone, snap.State)
}

func TestKeepPatchFailureIsRetriableFromDone(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{patchErr: errors.New("mongo hiccup")}
	st := newTestStudio(gen, drafts)

	generateOnce(t, st, "u1", &pipeline.ModelRef{ID: "m1"})

	snap, err := st.Keep(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, StateDone, snap.State, "the draft exists even when the patch failed")
	require.NotNil(t, snap.Draft)
	assert.NotEmpty(t, snap.LastError)

	drafts.mu.Lock()
	drafts.patchErr = nil
	drafts.mu.Unlock()

	snap, err = st.SelectModel(context.Background(), "u1", &pipeline.ModelRef{ID: "m1"})
	require.NoError(t, err)
	assert.Empty(t, snap.LastError)
	_, patches := drafts.counts()
	assert.Equal(t, 2, patches)
}

func TestDoubleKeepIsRefused(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts)

	generateOnce(t, st, "u1", nil)
	_, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)

	_, err = st.Keep(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrAlreadyKept)
	creates, _ := drafts.counts()
	assert.Equal(t, 1, creates)
}

func TestSelectImageResetsDownstreamPicks(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	st := newTestStudio(gen, &fakeDrafts{})

	generateOnce(t, st, "u1", &pipeline.ModelRef{ID: "m1"})
	_, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)

	snap, err := st.SelectImage("u1", uploadedImage(), "k2")
	require.NoError(t, err)
	assert.Equal(t, StateImageSelected, snap.State)
	assert.Empty(t, snap.Category)
	assert.Nil(t, snap.Model)
	assert.Nil(t, snap.Result)
	assert.Nil(t, snap.Draft)
}

func TestDescriberWritesTheCopyWhenItWorks(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts, func(o *Options) {
		o.Describer = &fakeDescriber{title: "Vintage silk blouse", description: "Cream silk, puff sleeves."}
	})

	generateOnce(t, st, "u1", nil)
	_, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "Vintage silk blouse", drafts.lastDraft.Title)
	assert.Equal(t, "Cream silk, puff sleeves.", drafts.lastDraft.Description)
}

func TestDescriberFailureFallsBackToTemplate(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	drafts := &fakeDrafts{}
	st := newTestStudio(gen, drafts, func(o *Options) {
		o.Describer = &fakeDescriber{err: errors.New("quota exhausted")}
	})

	generateOnce(t, st, "u1", nil)
	_, err := st.Keep(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Pre-loved top", drafts.lastDraft.Title)
}

func TestRecorderFailureDoesNotAffectTheRun(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	rec := &fakeRecorder{err: errors.New("insert failed")}
	st := newTestStudio(gen, &fakeDrafts{}, func(o *Options) { o.Recorder = rec })

	snap := generateOnce(t, st, "u1", nil)
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, 1, rec.calls)
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	gen := &fakeGenerator{result: successResult()}
	st := newTestStudio(gen, &fakeDrafts{})

	_, err := st.SelectImage("alice", uploadedImage(), "a")
	require.NoError(t, err)

	assert.Equal(t, StateIdle, st.Session("bob").State)
	assert.Equal(t, StateImageSelected, st.Session("alice").State)
}
