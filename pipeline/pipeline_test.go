package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCutout struct {
	calls   int
	result  StageResult
	lastSrc ImageSource
}

func (f *fakeCutout) RemoveBackground(_ context.Context, src ImageSource) StageResult {
	f.calls++
	f.lastSrc = src
	return f.result
}

type fakeOverlay struct {
	calls     int
	result    StageResult
	panicWith interface{}

	lastImageURL string
	lastGarment  GarmentType
	lastGender   ModelGender
	lastModel    *ModelRef
}

func (f *fakeOverlay) ApplyModel(_ context.Context, imageURL string, garment GarmentType, gender ModelGender, model *ModelRef) StageResult {
	f.calls++
	f.lastImageURL = imageURL
	f.lastGarment = garment
	f.lastGender = gender
	f.lastModel = model
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result
}

func newTestPipeline(cut *fakeCutout, over *fakeOverlay) *Pipeline {
	return New(Options{Cutout: cut, Overlay: over, Logger: zerolog.Nop()})
}

func TestProcessRejectsEmptySourceBeforeAnyCall(t *testing.T) {
	cut := &fakeCutout{}
	over := &fakeOverlay{}
	p := newTestPipeline(cut, over)

	res := p.Process(context.Background(), Request{Category: "T-Shirt"})

	assert.False(t, res.Succeeded)
	assert.NotEmpty(t, res.Narrative)
	assert.Equal(t, 0, cut.calls, "no network call without an image")
	assert.Equal(t, 0, over.calls)
}

func TestProcessRejectsEmptyCategoryBeforeAnyCall(t *testing.T) {
	cut := &fakeCutout{}
	over := &fakeOverlay{}
	p := newTestPipeline(cut, over)

	res := p.Process(context.Background(), Request{
		Source:   ImageFromURL("https://cdn.example.com/raw.jpg"),
		Category: "   ",
	})

	assert.False(t, res.Succeeded)
	assert.Equal(t, "https://cdn.example.com/raw.jpg", res.FinalImageURL)
	assert.Equal(t, 0, cut.calls)
	assert.Equal(t, 0, over.calls)
}

func TestProcessCutoutFailureShortCircuits(t *testing.T) {
	src := ImageFromURL("https://cdn.example.com/raw.jpg")
	cut := &fakeCutout{result: failedStage(src.Ref(), "Background removal rejected the image (status 500).")}
	over := &fakeOverlay{result: succeededStage("https://cdn.example.com/should-not-happen.png")}
	p := newTestPipeline(cut, over)

	res := p.Process(context.Background(), Request{Source: src, Category: "Mom Jeans"})

	require.Equal(t, 1, cut.calls)
	assert.Equal(t, 0, over.calls, "overlay must never run after a cutout failure")
	assert.False(t, res.Succeeded)
	assert.False(t, res.Degraded)
	assert.Equal(t, src.Ref(), res.FinalImageURL, "failed runs keep the original reference")
	assert.Equal(t, "Background removal rejected the image (status 500).", res.Narrative)
}

func TestProcessOverlayDegradeKeepsCutout(t *testing.T) {
	cutURL := "https://cdn.example.com/cutout.png"
	cut := &fakeCutout{result: succeededStage(cutURL)}
	over := &fakeOverlay{result: degradedStage(cutURL, "Model preview is unavailable right now, showing the cutout instead.")}
	p := newTestPipeline(cut, over)

	res := p.Process(context.Background(), Request{
		Source:   ImageFromBytes([]byte{0xFF, 0xD8}, "jeans.jpg"),
		Category: "Jeans",
	})

	require.Equal(t, 1, over.calls)
	assert.Equal(t, cutURL, over.lastImageURL, "overlay consumes the cutout output")
	assert.True(t, res.Succeeded, "a degraded run is still a usable run")
	assert.True(t, res.Degraded)
	assert.Equal(t, cutURL, res.FinalImageURL)
	assert.Contains(t, res.Narrative, "showing the cutout")
}

func TestProcessFullSuccess(t *testing.T) {
	cut := &fakeCutout{result: succeededStage("https://cdn.example.com/cutout.png")}
	over := &fakeOverlay{result: succeededStage("https://cdn.example.com/final.png")}
	p := newTestPipeline(cut, over)

	model := &ModelRef{ID: "m1", Name: "Ava", Gender: "female"}
	res := p.Process(context.Background(), Request{
		Source:           ImageFromURL("https://cdn.example.com/raw.jpg"),
		Category:         "Dress Shirt",
		GenderPreference: "male",
		Model:            model,
	})

	assert.True(t, res.Succeeded)
	assert.False(t, res.Degraded)
	assert.Equal(t, "https://cdn.example.com/final.png", res.FinalImageURL)
	assert.Equal(t, GarmentOnePiece, res.Garment)
	assert.Equal(t, GenderFemale, res.Gender, "a picked model overrides the stated preference")
	assert.Same(t, model, over.lastModel)
	assert.Equal(t, GarmentOnePiece, over.lastGarment)
}

func TestProcessGenderFallsBackToCategory(t *testing.T) {
	cut := &fakeCutout{result: succeededStage("https://cdn.example.com/cutout.png")}
	over := &fakeOverlay{result: succeededStage("https://cdn.example.com/final.png")}
	p := newTestPipeline(cut, over)

	res := p.Process(context.Background(), Request{
		Source:   ImageFromURL("https://cdn.example.com/raw.jpg"),
		Category: "Women's Jeans",
	})

	assert.Equal(t, GenderFemale, res.Gender)
	assert.Equal(t, GenderFemale, over.lastGender)
}

func TestProcessRecoversFromStagePanic(t *testing.T) {
	src := ImageFromURL("https://cdn.example.com/raw.jpg")
	cut := &fakeCutout{result: succeededStage("https://cdn.example.com/cutout.png")}
	over := &fakeOverlay{panicWith: "boom"}
	p := newTestPipeline(cut, over)

	var res Result
	require.NotPanics(t, func() {
		res = p.Process(context.Background(), Request{Source: src, Category: "Hoodie"})
	})

	assert.False(t, res.Succeeded)
	assert.Equal(t, src.Ref(), res.FinalImageURL)
	assert.Contains(t, res.Narrative, "internal error")
}

func TestImageSourceRef(t *testing.T) {
	assert.Equal(t, "https://x.test/a.jpg", ImageFromURL("https://x.test/a.jpg").Ref())
	assert.Equal(t, "upload://tee.png", ImageFromBytes([]byte{1}, "tee.png").Ref())
	assert.True(t, ImageSource{}.IsEmpty())
	assert.False(t, ImageFromBytes([]byte{1}, "tee.png").IsEmpty())
}
