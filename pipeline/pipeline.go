package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// CutoutStage removes the background from a garment photo.
type CutoutStage interface {
	RemoveBackground(ctx context.Context, src ImageSource) StageResult
}

// OverlayStage composites a garment cutout onto a fashion model.
type OverlayStage interface {
	ApplyModel(ctx context.Context, imageURL string, garment GarmentType, gender ModelGender, model *ModelRef) StageResult
}

// Request carries everything one processing run needs.
type Request struct {
	Source           ImageSource
	Category         string
	GenderPreference string
	Model            *ModelRef
}

// Result is the outcome of a full run. Succeeded means there is a
// processed image to show; Degraded means the overlay fell back to the
// cutout. FinalImageURL carries the original source reference when the
// run failed, so callers always have something to render.
type Result struct {
	Succeeded     bool        `json:"succeeded"`
	Degraded      bool        `json:"degraded"`
	FinalImageURL string      `json:"finalImageUrl"`
	SourceRef     string      `json:"sourceRef"`
	Garment       GarmentType `json:"garmentType"`
	Gender        ModelGender `json:"modelGender"`
	Narrative     string      `json:"narrative"`
}

// Pipeline runs the two processing stages strictly in order.
type Pipeline struct {
	cutout  CutoutStage
	overlay OverlayStage
	logger  zerolog.Logger
}

// Options configures Pipeline.
type Options struct {
	Cutout  CutoutStage
	Overlay OverlayStage
	Logger  zerolog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{
		cutout:  opts.Cutout,
		overlay: opts.Overlay,
		logger:  opts.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// Process validates the request, removes the background, classifies the
// garment and applies the model overlay. The overlay never runs when the
// cutout failed. Process never panics and never returns an error: every
// outcome, including an internal fault, is a renderable Result.
func (p *Pipeline) Process(ctx context.Context, req Request) (res Result) {
	res.SourceRef = req.Source.Ref()
	res.FinalImageURL = res.SourceRef

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("pipeline panic recovered")
			res = Result{
				SourceRef:     req.Source.Ref(),
				FinalImageURL: req.Source.Ref(),
				Narrative:     "Processing hit an internal error. The original photo is untouched.",
			}
		}
	}()

	if req.Source.IsEmpty() {
		res.Narrative = "No garment image was provided."
		return res
	}
	if strings.TrimSpace(req.Category) == "" {
		res.Narrative = "No garment category was selected."
		return res
	}

	res.Garment = ClassifyGarment(req.Category)

	// A hand-picked model dictates the gender; otherwise the stated
	// preference, falling back to whatever the category label implies.
	genderLabel := req.GenderPreference
	if req.Model != nil && req.Model.Gender != "" {
		genderLabel = req.Model.Gender
	}
	if genderLabel == "" {
		genderLabel = req.Category
	}
	res.Gender = ClassifyGender(genderLabel)

	cut := p.cutout.RemoveBackground(ctx, req.Source)
	if cut.Status != StageSucceeded {
		p.logger.Info().Str("ref", res.SourceRef).Str("reason", cut.Message).Msg("run stopped at cutout")
		res.Narrative = cut.Message
		return res
	}

	res.Succeeded = true
	res.FinalImageURL = cut.ImageURL

	over := p.overlay.ApplyModel(ctx, cut.ImageURL, res.Garment, res.Gender, req.Model)
	if over.Status == StageSucceeded {
		res.FinalImageURL = over.ImageURL
		res.Narrative = "Background removed and model preview generated."
		return res
	}

	res.Degraded = true
	if over.ImageURL != "" {
		res.FinalImageURL = over.ImageURL
	}
	res.Narrative = over.Message
	return res
}
