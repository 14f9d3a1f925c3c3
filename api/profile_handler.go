package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

// ProfileHandler reads or updates the caller's profile.
func ProfileHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "profile").Logger()

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "users")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		var user models.User
		if err := collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&user); err != nil {
			utils.RespondError(w, reqLogger, "Profile not found", http.StatusNotFound)
			return
		}
		user.AvatarKey = utils.PresignImageURL(ctx, user.AvatarKey)
		utils.RespondJSON(w, http.StatusOK, user)

	case http.MethodPut:
		var req struct {
			Name   *string `json:"name"`
			Gender *string `json:"gender"`
			Bio    *string `json:"bio"`
		}
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
			return
		}

		set := bson.M{"updated_at": time.Now()}
		if req.Name != nil && *req.Name != "" {
			set["name"] = *req.Name
		}
		if req.Gender != nil {
			set["gender"] = *req.Gender
		}
		if req.Bio != nil {
			set["bio"] = *req.Bio
		}

		if _, err := collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set}); err != nil {
			reqLogger.Error().Err(err).Msg("profile update failed")
			utils.RespondError(w, reqLogger, "Could not update profile", http.StatusInternalServerError)
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Profile updated"})

	default:
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// AvatarHandler uploads a profile photo.
func AvatarHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "avatar").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(int64(config.MaxUploadMB) << 20); err != nil {
		utils.RespondError(w, reqLogger, "Upload too large or malformed", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		utils.RespondError(w, reqLogger, "An avatar file is required", http.StatusBadRequest)
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

	key := fmt.Sprintf("avatars/%s/%d_%s", userID, time.Now().UnixNano(), header.Filename)
	if _, err := utils.UploadFileToS3(ctx, bytes.NewReader(data), key, header.Header.Get("Content-Type")); err != nil {
		reqLogger.Error().Err(err).Msg("avatar upload failed")
		utils.RespondError(w, reqLogger, "Could not store avatar", http.StatusInternalServerError)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "users")
	if _, err := collection.UpdateOne(ctx, bson.M{"_id": objID},
		bson.M{"$set": bson.M{"avatar_key": key, "updated_at": time.Now()}}); err != nil {
		reqLogger.Error().Err(err).Msg("avatar record failed")
		utils.RespondError(w, reqLogger, "Could not store avatar", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message":    "Avatar updated",
		"avatar_url": utils.PresignImageURL(ctx, key),
	})
}
