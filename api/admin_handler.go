package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

// ModerationQueueHandler lists products awaiting review, oldest first so
// nobody's listing rots at the back of the queue.
func ModerationQueueHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "moderation_queue").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page, limit, _ := utils.ParsePagination(r, 20, 50)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, total, err := productStore.ListPending(ctx, page, limit)
	if err != nil {
		reqLogger.Error().Err(err).Msg("pending list failed")
		utils.RespondError(w, reqLogger, "Could not load the queue", http.StatusInternalServerError)
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

// ModerateRequest is an approve or reject decision on a pending listing.
type ModerateRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// ModerateListingHandler applies a moderation decision and emails the
// seller about it. The email is best effort.
func ModerateListingHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "moderate_listing").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	productID := r.URL.Query().Get("id")
	if productID == "" {
		utils.RespondError(w, reqLogger, "Missing id parameter", http.StatusBadRequest)
		return
	}

	var req ModerateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Approve && strings.TrimSpace(req.Note) == "" {
		utils.RespondError(w, reqLogger, "A rejection needs a note for the seller", http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := productStore.SetModeration(ctx, productID, req.Approve, req.Note)
	if err != nil {
		reqLogger.Warn().Err(err).Str("product", productID).Msg("moderation rejected")
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	go notifySeller(p, req.Approve, req.Note)

	presignProduct(ctx, &p)
	utils.RespondJSON(w, http.StatusOK, p)
}

func notifySeller(p models.Product, approved bool, note string) {
	sellerObjID, err := primitive.ObjectIDFromHex(p.SellerID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var seller models.User
	users := utils.GetCollection(config.MongoDBName, "users")
	if err := users.FindOne(ctx, bson.M{"_id": sellerObjID}).Decode(&seller); err != nil {
		logger.Warn().Err(err).Str("seller", p.SellerID).Msg("seller lookup failed, skipping notice")
		return
	}

	subject := fmt.Sprintf("Your listing %q is now live", p.Title)
	body := fmt.Sprintf("Good news %s, your listing %q passed review and buyers can see it now.", seller.Name, p.Title)
	if !approved {
		subject = fmt.Sprintf("Your listing %q needs changes", p.Title)
		body = fmt.Sprintf("Hi %s, we could not approve %q yet. Reviewer note: %s", seller.Name, p.Title, note)
	}
	if err := utils.SendEmail(seller.Name, seller.Email, subject, body, ""); err != nil {
		logger.Warn().Err(err).Str("seller", p.SellerID).Msg("moderation notice email failed")
	}
}

// FashionModelAdminHandler is the roster CRUD surface. POST creates,
// PUT updates by ?id=, DELETE soft deletes by ?id=. Create and update
// take multipart form data so the model photo rides along.
func FashionModelAdminHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "fashion_model_admin").Logger()

	switch r.Method {
	case http.MethodPost:
		createFashionModel(w, r, reqLogger)
	case http.MethodPut:
		updateFashionModel(w, r, reqLogger)
	case http.MethodDelete:
		deleteFashionModel(w, r, reqLogger)
	default:
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func modelFromForm(r *http.Request) (models.FashionModel, error) {
	m := models.FashionModel{
		Name:      strings.TrimSpace(r.FormValue("name")),
		Gender:    r.FormValue("gender"),
		BodyType:  r.FormValue("body_type"),
		Ethnicity: r.FormValue("ethnicity"),
		Category:  r.FormValue("category"),
	}
	if tags := strings.TrimSpace(r.FormValue("tags")); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				m.Tags = append(m.Tags, t)
			}
		}
	}
	if m.Gender == "" {
		m.Gender = "unisex"
	}
	if m.Category == "" {
		m.Category = "auto"
	}
	if m.Name == "" {
		return m, fmt.Errorf("name is required")
	}
	return m, nil
}

func readModelImage(ctx context.Context, r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	if _, _, err := utils.DecodePreview(data); err != nil {
		return "", fmt.Errorf("unsupported image: %w", err)
	}

	key := fmt.Sprintf("fashion_models/%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename))
	if _, err := utils.UploadFileToS3(ctx, bytes.NewReader(data), key, header.Header.Get("Content-Type")); err != nil {
		return "", err
	}
	return key, nil
}

func createFashionModel(w http.ResponseWriter, r *http.Request, reqLogger zerolog.Logger) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondError(w, reqLogger, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	m, err := modelFromForm(r)
	if err != nil {
		utils.RespondError(w, reqLogger, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	key, err := readModelImage(ctx, r)
	if err != nil {
		utils.RespondError(w, reqLogger, "A model photo is required", http.StatusBadRequest)
		return
	}
	m.ImageKey = key

	created, err := modelCatalog.Create(ctx, m)
	if err != nil {
		reqLogger.Error().Err(err).Msg("model create failed")
		utils.RespondError(w, reqLogger, "Could not create model", http.StatusInternalServerError)
		return
	}
	created.ImageKey = utils.PresignImageURL(ctx, created.ImageKey)
	utils.RespondJSON(w, http.StatusCreated, created)
}

func updateFashionModel(w http.ResponseWriter, r *http.Request, reqLogger zerolog.Logger) {
	id := r.URL.Query().Get("id")
	if id == "" {
		utils.RespondError(w, reqLogger, "Missing id parameter", http.StatusBadRequest)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondError(w, reqLogger, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	m, err := modelFromForm(r)
	if err != nil {
		utils.RespondError(w, reqLogger, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	// The photo is optional on update; an absent file keeps the old one.
	if key, err := readModelImage(ctx, r); err == nil {
		m.ImageKey = key
	}

	updated, err := modelCatalog.Update(ctx, id, m)
	if err != nil {
		reqLogger.Warn().Err(err).Str("model", id).Msg("model update rejected")
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	updated.ImageKey = utils.PresignImageURL(ctx, updated.ImageKey)
	utils.RespondJSON(w, http.StatusOK, updated)
}

func deleteFashionModel(w http.ResponseWriter, r *http.Request, reqLogger zerolog.Logger) {
	id := r.URL.Query().Get("id")
	if id == "" {
		utils.RespondError(w, reqLogger, "Missing id parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := modelCatalog.SoftDelete(ctx, id); err != nil {
		reqLogger.Warn().Err(err).Str("model", id).Msg("model delete rejected")
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// FeatureModelHandler toggles a model's featured flag via ?id= and
// ?featured=true|false.
func FeatureModelHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "feature_model").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		utils.RespondError(w, reqLogger, "Missing id parameter", http.StatusBadRequest)
		return
	}
	featured := r.URL.Query().Get("featured") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := modelCatalog.SetFeatured(ctx, id, featured); err != nil {
		reqLogger.Warn().Err(err).Str("model", id).Msg("feature toggle rejected")
		utils.RespondError(w, reqLogger, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "featured": featured})
}
