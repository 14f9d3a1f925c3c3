package api

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

// GalleryResponse is the paged view of a user's studio runs.
type GalleryResponse struct {
	Generations []models.StudioGeneration `json:"generations"`
	Total       int64                     `json:"total"`
	CurrentPage int64                     `json:"current_page"`
	TotalPages  int64                     `json:"total_pages"`
}

// GalleryHandler pages through the caller's studio generations, latest
// first.
func GalleryHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "gallery").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, limit, skip := utils.ParsePagination(r, 12, 50)

	collection := utils.GetCollection(config.MongoDBName, "studio_generations")
	filter := bson.M{"user_id": userID, "is_deleted": false}
	if r.URL.Query().Get("all") != "true" {
		filter["status"] = models.GenerationStatusCompleted
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		reqLogger.Error().Err(err).Msg("gallery count failed")
		utils.RespondError(w, reqLogger, "Could not load gallery", http.StatusInternalServerError)
		return
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		reqLogger.Error().Err(err).Msg("gallery find failed")
		utils.RespondError(w, reqLogger, "Could not load gallery", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var rows []models.StudioGeneration
	if err := cursor.All(ctx, &rows); err != nil {
		reqLogger.Error().Err(err).Msg("gallery decode failed")
		utils.RespondError(w, reqLogger, "Could not load gallery", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []models.StudioGeneration{}
	}

	for i := range rows {
		rows[i].SourceImageKey = utils.PresignImageURL(ctx, rows[i].SourceImageKey)
		rows[i].FinalImageKey = utils.PresignImageURL(ctx, rows[i].FinalImageKey)
		rows[i].ThumbnailKey = utils.PresignImageURL(ctx, rows[i].ThumbnailKey)
	}

	utils.RespondJSON(w, http.StatusOK, GalleryResponse{
		Generations: rows,
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages(total, limit),
	})
}

// GalleryDeleteHandler soft-deletes a generation from the gallery.
func GalleryDeleteHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "gallery_delete").Logger()

	if r.Method != http.MethodDelete {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id := r.URL.Query().Get("id")
	objID, err := parseObjectID(id)
	if err != nil {
		utils.RespondError(w, reqLogger, "A valid generation id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	collection := utils.GetCollection(config.MongoDBName, "studio_generations")
	res, err := collection.UpdateOne(ctx,
		bson.M{"_id": objID, "user_id": userID},
		bson.M{"$set": bson.M{"is_deleted": true}})
	if err != nil {
		reqLogger.Error().Err(err).Msg("gallery delete failed")
		utils.RespondError(w, reqLogger, "Could not delete generation", http.StatusInternalServerError)
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondError(w, reqLogger, "Generation not found", http.StatusNotFound)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Generation removed"})
}
