package products

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/pipeline"
	"github.com/threadswap/threadswap/studio"
	"github.com/threadswap/threadswap/utils"
)

// StudioDrafts adapts the product store to the studio's draft interface.
// Preview images come out of the pipeline as short-lived addresses on the
// processing services, so both writes rehost them into our bucket and
// report the presigned bucket address back as the canonical preview.
type StudioDrafts struct {
	store  *Store
	logger zerolog.Logger
}

// NewStudioDrafts creates the adapter.
func NewStudioDrafts(store *Store, logger zerolog.Logger) *StudioDrafts {
	return &StudioDrafts{
		store:  store,
		logger: logger.With().Str("component", "studio_drafts").Logger(),
	}
}

// CreateDraft persists a studio result as a draft listing.
func (d *StudioDrafts) CreateDraft(ctx context.Context, draft studio.Draft) (studio.DraftRecord, error) {
	previewKey := d.rehost(ctx, draft.FinalImageURL)

	images := []string{}
	if previewKey != "" {
		images = append(images, previewKey)
	}
	if draft.SourceImageKey != "" {
		images = append(images, draft.SourceImageKey)
	}

	p, err := d.store.CreateDraft(ctx, DraftFields{
		SellerID:       draft.SellerID,
		Title:          draft.Title,
		Description:    draft.Description,
		Category:       draft.Category,
		PriceCents:     draft.PriceCents,
		Currency:       draft.Currency,
		Images:         images,
		Origin:         models.ProductOriginStudio,
		SourceImageKey: draft.SourceImageKey,
		AIPreviewKey:   previewKey,
		GenerationID:   draft.GenerationID,
	})
	if err != nil {
		return studio.DraftRecord{}, err
	}
	return d.record(ctx, p), nil
}

// AttachModel patches the draft's model linkage and preview.
func (d *StudioDrafts) AttachModel(ctx context.Context, productID, modelID, previewImageURL string) (studio.DraftRecord, error) {
	previewKey := d.rehost(ctx, previewImageURL)
	p, err := d.store.AttachModel(ctx, productID, modelID, previewKey)
	if err != nil {
		return studio.DraftRecord{}, err
	}
	return d.record(ctx, p), nil
}

// rehost pulls a remote preview into our bucket and returns the object
// key. Addresses that are not remote (or that fail to transfer) are kept
// as they are; the draft still renders, just from the original host.
func (d *StudioDrafts) rehost(ctx context.Context, imageURL string) string {
	if imageURL == "" || !strings.HasPrefix(imageURL, "http") {
		return ""
	}
	keys, err := utils.RehostImages(ctx, d.logger, []string{imageURL}, "studio_previews")
	if err != nil || keys[imageURL] == "" {
		d.logger.Warn().Err(err).Str("url", imageURL).Msg("preview rehost failed, keeping remote address")
		return imageURL
	}
	return keys[imageURL]
}

func (d *StudioDrafts) record(ctx context.Context, p models.Product) studio.DraftRecord {
	return studio.DraftRecord{
		ID:           p.ID.Hex(),
		Title:        p.Title,
		Status:       p.Status,
		AIPreviewURL: utils.PresignImageURL(ctx, p.AIPreviewKey),
	}
}

// Generations records studio runs for the user's gallery. Implements
// studio.Recorder; recording is best effort by contract.
type Generations struct {
	col    *mongo.Collection
	logger zerolog.Logger
}

// NewGenerations creates the recorder over the given collection.
func NewGenerations(col *mongo.Collection, logger zerolog.Logger) *Generations {
	return &Generations{
		col:    col,
		logger: logger.With().Str("component", "generations").Logger(),
	}
}

// RecordGeneration writes one gallery row and returns its id. Failed runs
// are recorded too, so the gallery tells the user what happened.
func (g *Generations) RecordGeneration(ctx context.Context, userID string, res pipeline.Result, imageKey string, category studio.Category, modelID string) (string, error) {
	status := models.GenerationStatusCompleted
	if !res.Succeeded {
		status = models.GenerationStatusFailed
	}

	row := models.StudioGeneration{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		SourceImageKey: imageKey,
		FinalImageKey:  g.storeFinal(ctx, res),
		Category:       string(category),
		GarmentType:    string(res.Garment),
		ModelGender:    string(res.Gender),
		FashionModelID: modelID,
		Degraded:       res.Degraded,
		Narrative:      res.Narrative,
		Status:         status,
		CreatedAt:      time.Now(),
	}
	row.ThumbnailKey = g.thumbnail(ctx, row.FinalImageKey)

	if _, err := g.col.InsertOne(ctx, row); err != nil {
		return "", fmt.Errorf("insert generation: %w", err)
	}
	return row.ID.Hex(), nil
}

// LinkProduct stamps a gallery row with the draft created from it.
func (g *Generations) LinkProduct(ctx context.Context, generationID, productID string) error {
	objID, err := primitive.ObjectIDFromHex(generationID)
	if err != nil {
		return fmt.Errorf("invalid generation id: %w", err)
	}
	_, err = g.col.UpdateOne(ctx, bson.M{"_id": objID},
		bson.M{"$set": bson.M{"product_id": productID}})
	if err != nil {
		return fmt.Errorf("link product: %w", err)
	}
	return nil
}

// storeFinal rehosts the run's output into our bucket so the gallery
// outlives the processing services' retention.
func (g *Generations) storeFinal(ctx context.Context, res pipeline.Result) string {
	if !res.Succeeded || !strings.HasPrefix(res.FinalImageURL, "http") {
		return ""
	}
	keys, err := utils.RehostImages(ctx, g.logger, []string{res.FinalImageURL}, "studio_generations")
	if err != nil || keys[res.FinalImageURL] == "" {
		g.logger.Warn().Err(err).Msg("generation rehost failed, keeping remote address")
		return res.FinalImageURL
	}
	return keys[res.FinalImageURL]
}

// thumbnail renders a small gallery preview next to the full image. Any
// failure just leaves the gallery loading full-size images.
func (g *Generations) thumbnail(ctx context.Context, finalKey string) string {
	if finalKey == "" {
		return ""
	}
	data, err := g.fetch(ctx, finalKey)
	if err != nil {
		g.logger.Debug().Err(err).Msg("thumbnail source fetch failed")
		return ""
	}
	img, _, err := utils.DecodePreview(data)
	if err != nil {
		return ""
	}
	thumb, err := utils.Thumbnail(img, 320)
	if err != nil {
		return ""
	}
	key := fmt.Sprintf("studio_thumbnails/%d_thumb.jpg", time.Now().UnixNano())
	if _, err := utils.UploadFileToS3(ctx, bytes.NewReader(thumb), key, "image/jpeg"); err != nil {
		g.logger.Debug().Err(err).Msg("thumbnail upload failed")
		return ""
	}
	return key
}

func (g *Generations) fetch(ctx context.Context, keyOrURL string) ([]byte, error) {
	url := utils.PresignImageURL(ctx, keyOrURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := utils.NewHTTPClient(30 * time.Second).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}
