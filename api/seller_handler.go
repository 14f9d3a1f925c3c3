package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/importer"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/pipeline"
	"github.com/threadswap/threadswap/products"
	"github.com/threadswap/threadswap/utils"
)

// MyListingsHandler lists the caller's own products in every status.
func MyListingsHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "my_listings").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, limit, _ := utils.ParsePagination(r, 20, 50)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, total, err := productStore.ListBySeller(ctx, userID, page, limit)
	if err != nil {
		reqLogger.Error().Err(err).Msg("seller listings failed")
		utils.RespondError(w, reqLogger, "Could not load listings", http.StatusInternalServerError)
		return
	}
	for i := range list {
		presignProduct(ctx, &list[i])
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"products":     list,
		"total":        total,
		"current_page": page,
		"total_pages":  totalPages(total, limit),
	})
}

// UpdateListingRequest carries partial edits to a listing. Absent fields
// are left untouched.
type UpdateListingRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Brand       *string `json:"brand"`
	Size        *string `json:"size"`
	Condition   *string `json:"condition"`
	Gender      *string `json:"gender"`
	PriceCents  *int64  `json:"price_cents"`
}

// UpdateListingHandler edits one of the caller's listings.
func UpdateListingHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "update_listing").Logger()

	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	productID := r.URL.Query().Get("id")
	if productID == "" {
		utils.RespondError(w, reqLogger, "Missing id parameter", http.StatusBadRequest)
		return
	}

	var req UpdateListingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PriceCents != nil && *req.PriceCents < 0 {
		utils.RespondError(w, reqLogger, "Price cannot be negative", http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := productStore.Update(ctx, userID, productID, products.Updates{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Brand:       req.Brand,
		Size:        req.Size,
		Condition:   req.Condition,
		Gender:      req.Gender,
		PriceCents:  req.PriceCents,
	})
	if err != nil {
		reqLogger.Warn().Err(err).Str("product", productID).Msg("listing update rejected")
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	presignProduct(ctx, &p)
	utils.RespondJSON(w, http.StatusOK, p)
}

// PublishListingHandler submits a draft for moderation.
func PublishListingHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "publish_listing").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	productID := r.URL.Query().Get("id")
	if productID == "" {
		utils.RespondError(w, reqLogger, "Missing id parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := productStore.Publish(ctx, userID, productID)
	if err != nil {
		reqLogger.Warn().Err(err).Str("product", productID).Msg("publish rejected")
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	presignProduct(ctx, &p)
	utils.RespondJSON(w, http.StatusOK, p)
}

// DeleteListingHandler removes one of the caller's listings.
func DeleteListingHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "delete_listing").Logger()

	if r.Method != http.MethodDelete {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	productID := r.URL.Query().Get("id")
	if productID == "" {
		utils.RespondError(w, reqLogger, "Missing id parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := productStore.SoftDelete(ctx, userID, productID); err != nil {
		reqLogger.Warn().Err(err).Str("product", productID).Msg("delete rejected")
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ImportListingRequest asks the importer to pull a listing from another
// marketplace URL.
type ImportListingRequest struct {
	URL string `json:"url"`
}

// ImportListingHandler scrapes an external listing and creates a draft
// from it. Remote images are rehosted so the draft survives the source
// page going away.
func ImportListingHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "import_listing").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ImportListingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		utils.RespondError(w, reqLogger, "A listing URL is required", http.StatusBadRequest)
		return
	}

	// Scraping can involve a headless browser, so this one gets a
	// generous deadline.
	ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
	defer cancel()

	imp, resolvedURL, err := importer.ForURL(ctx, req.URL, reqLogger, config.ChromeDriverPath)
	if err != nil {
		reqLogger.Warn().Err(err).Str("url", req.URL).Msg("no importer for url")
		utils.RespondError(w, reqLogger, "This site is not supported", http.StatusUnprocessableEntity)
		return
	}

	listing, err := imp.ImportListing(ctx, resolvedURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			utils.RespondError(w, reqLogger, "The listing page took too long to load", http.StatusGatewayTimeout)
			return
		}
		reqLogger.Error().Err(err).Str("url", resolvedURL).Msg("import failed")
		utils.RespondError(w, reqLogger, "Could not read the listing page", http.StatusUnprocessableEntity)
		return
	}

	images := listing.Images
	if rehosted, err := utils.RehostImages(ctx, reqLogger, listing.Images, "imports/"+userID); err == nil {
		keys := make([]string, 0, len(listing.Images))
		for _, src := range listing.Images {
			if key, ok := rehosted[src]; ok {
				keys = append(keys, key)
			}
		}
		if len(keys) > 0 {
			images = keys
		}
	} else {
		reqLogger.Warn().Err(err).Msg("image rehost failed, keeping remote urls")
	}

	category := listing.Category
	if category == "" {
		category = string(pipeline.ClassifyGarment(listing.Title))
	}
	gender := string(pipeline.ClassifyGender(listing.Title + " " + listing.Description))

	p, err := productStore.CreateDraft(ctx, products.DraftFields{
		SellerID:    userID,
		Title:       listing.Title,
		Description: listing.Description,
		Category:    category,
		Brand:       listing.Brand,
		Size:        listing.Size,
		Condition:   listing.Condition,
		Gender:      gender,
		PriceCents:  listing.PriceCents,
		Currency:    listing.Currency,
		Images:      images,
		Origin:      models.ProductOriginImport,
		SourceURL:   listing.SourceURL,
	})
	if err != nil {
		reqLogger.Error().Err(err).Msg("imported draft insert failed")
		utils.RespondError(w, reqLogger, "Could not save the imported draft", http.StatusInternalServerError)
		return
	}

	reqLogger.Info().Str("site", listing.Site).Str("product", p.ID.Hex()).Msg("listing imported")
	presignProduct(ctx, &p)
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"product": p,
		"site":    listing.Site,
	})
}
