package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/threadswap/threadswap/catalog"
	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/pipeline"
	"github.com/threadswap/threadswap/studio"
	"github.com/threadswap/threadswap/utils"
)

// respondStudio maps studio core errors onto HTTP statuses. Validation
// gaps are the user's to fix, busy states are conflicts, anything else is
// on us.
func respondStudio(w http.ResponseWriter, snap studio.Snapshot, err error) {
	if err == nil {
		utils.RespondJSON(w, http.StatusOK, snap)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, studio.ErrNoImage),
		errors.Is(err, studio.ErrNoCategory),
		errors.Is(err, studio.ErrNotResolved),
		errors.Is(err, studio.ErrNoDraft):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, studio.ErrGenerationInFlight),
		errors.Is(err, studio.ErrBusy),
		errors.Is(err, studio.ErrAlreadyKept),
		errors.Is(err, studio.ErrStaleResult):
		status = http.StatusConflict
	}

	utils.RespondJSON(w, status, map[string]interface{}{
		"error":   err.Error(),
		"session": snap,
	})
}

// StudioSessionHandler returns the caller's current studio session.
func StudioSessionHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "studio_session").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	utils.RespondJSON(w, http.StatusOK, studioSvc.Session(userID))
}

// StudioUploadHandler takes the garment photo that starts a studio flow.
// The photo must decode to a previewable bitmap before the session
// accepts it.
func StudioUploadHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "studio_upload").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(int64(config.MaxUploadMB) << 20); err != nil {
		utils.RespondError(w, reqLogger, "Upload too large or malformed", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		utils.RespondError(w, reqLogger, "A garment photo is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, int64(config.MaxUploadMB)<<20))
	if err != nil {
		utils.RespondError(w, reqLogger, "Could not read upload", http.StatusBadRequest)
		return
	}
	if _, _, err := utils.DecodePreview(data); err != nil {
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	// Keep the original in the bucket up front: the session references
	// the key in gallery rows and drafts, whatever the run's outcome.
	key := fmt.Sprintf("studio_uploads/%s/%d_%s", userID, time.Now().UnixNano(), header.Filename)
	if _, err := utils.UploadFileToS3(ctx, bytes.NewReader(data), key, header.Header.Get("Content-Type")); err != nil {
		reqLogger.Error().Err(err).Msg("source upload failed")
		utils.RespondError(w, reqLogger, "Could not store the photo", http.StatusInternalServerError)
		return
	}

	snap, err := studioSvc.SelectImage(userID, pipeline.ImageFromBytes(data, header.Filename), key)
	respondStudio(w, snap, err)
}

// StudioCategoryHandler declares the garment slot.
func StudioCategoryHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "studio_category").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Category string `json:"category"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	category, err := studio.ParseCategory(req.Category)
	if err != nil {
		utils.RespondError(w, reqLogger, "Category must be one of Top, Bottom, Full-body", http.StatusBadRequest)
		return
	}

	snap, err := studioSvc.SelectCategory(userID, category)
	respondStudio(w, snap, err)
}

// StudioModelHandler picks or clears the fashion model. Picking while a
// draft already exists re-patches that draft instead of starting over.
func StudioModelHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "studio_model").Logger()

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			ModelID string `json:"model_id"`
		}
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ModelID == "" {
			utils.RespondError(w, reqLogger, "model_id is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		m, err := modelCatalog.Get(ctx, req.ModelID)
		if err != nil {
			utils.RespondError(w, reqLogger, "Fashion model not found", http.StatusNotFound)
			return
		}
		ref := &pipeline.ModelRef{
			ID:        m.ID.Hex(),
			Name:      m.Name,
			ImageURL:  utils.PresignImageURL(ctx, m.ImageKey),
			Gender:    m.Gender,
			BodyType:  m.BodyType,
			Ethnicity: m.Ethnicity,
			Category:  m.Category,
		}

		snap, err := studioSvc.SelectModel(ctx, userID, ref)
		if err == nil && snap.State == studio.StateDone {
			// The draft adopted the model; count the use.
			if uerr := modelCatalog.IncrementUsage(ctx, req.ModelID); uerr != nil {
				reqLogger.Warn().Err(uerr).Str("model", req.ModelID).Msg("usage increment failed")
			}
		}
		respondStudio(w, snap, err)

	case http.MethodDelete:
		snap, err := studioSvc.ClearModel(userID)
		respondStudio(w, snap, err)

	default:
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// StudioGenerateHandler runs the processing pipeline for the session.
func StudioGenerateHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "studio_generate").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snap, err := studioSvc.Generate(r.Context(), userID)
	respondStudio(w, snap, err)
}

// StudioKeepHandler persists the resolved result as a draft listing.
func StudioKeepHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "studio_keep").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snap, err := studioSvc.Keep(r.Context(), userID)
	if snap.Draft != nil && snap.GenerationID != "" && generations != nil {
		if lerr := generations.LinkProduct(r.Context(), snap.GenerationID, snap.Draft.ID); lerr != nil {
			reqLogger.Warn().Err(lerr).Msg("gallery link failed")
		}
	}
	respondStudio(w, snap, err)
}

// StudioRunAgainHandler abandons the current flow and starts fresh.
func StudioRunAgainHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "studio_run_again").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	utils.RespondJSON(w, http.StatusOK, studioSvc.RunAgain(userID))
}

// FashionModelsHandler lists the model catalog for the studio picker.
func FashionModelsHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "fashion_models").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page, limit, _ := utils.ParsePagination(r, 24, 100)
	q := r.URL.Query()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, total, err := modelCatalog.List(ctx, catalogFilter(q.Get("gender"), q.Get("category"), q.Get("search"), q.Get("featured") == "true", page, limit))
	if err != nil {
		reqLogger.Error().Err(err).Msg("catalog list failed")
		utils.RespondError(w, reqLogger, "Could not load models", http.StatusInternalServerError)
		return
	}
	for i := range list {
		list[i].ImageKey = utils.PresignImageURL(ctx, list[i].ImageKey)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"models":       list,
		"total":        total,
		"current_page": page,
		"total_pages":  totalPages(total, limit),
	})
}

func catalogFilter(gender, category, search string, featured bool, page, limit int64) catalog.Filter {
	return catalog.Filter{
		Gender:       gender,
		Category:     category,
		Search:       search,
		FeaturedOnly: featured,
		Page:         page,
		Limit:        limit,
	}
}

func totalPages(total, limit int64) int64 {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func presignProduct(ctx context.Context, p *models.Product) {
	p.Images = utils.PresignImageURLs(ctx, p.Images)
	p.AIPreviewKey = utils.PresignImageURL(ctx, p.AIPreviewKey)
	p.SourceImageKey = utils.PresignImageURL(ctx, p.SourceImageKey)
}
