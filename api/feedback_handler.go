package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

// FeedbackHandler accepts a feedback form with optional screenshot
// attachments.
func FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "feedback").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userIDStr, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		utils.RespondError(w, reqLogger, "Invalid user ID", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondError(w, reqLogger, "Error parsing form data", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	message := strings.TrimSpace(r.FormValue("message"))
	topic := r.FormValue("topic")
	contactBack := r.FormValue("contact_back") == "true"

	if name == "" || email == "" || message == "" {
		utils.RespondError(w, reqLogger, "Name, email, and message are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var attachmentKeys []string
	for _, file := range r.MultipartForm.File["files"] {
		f, err := file.Open()
		if err != nil {
			utils.RespondError(w, reqLogger, fmt.Sprintf("Error opening file %s", file.Filename), http.StatusBadRequest)
			return
		}

		objectKey := fmt.Sprintf("feedback/%s/%s%s", userIDStr, uuid.New().String(), filepath.Ext(file.Filename))
		_, err = utils.UploadFileToS3(ctx, f, objectKey, file.Header.Get("Content-Type"))
		f.Close()
		if err != nil {
			reqLogger.Error().Err(err).Str("file", file.Filename).Msg("attachment upload failed")
			utils.RespondError(w, reqLogger, "Could not upload attachment", http.StatusInternalServerError)
			return
		}
		attachmentKeys = append(attachmentKeys, objectKey)
	}

	feedback := models.Feedback{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		Name:           name,
		Email:          email,
		Topic:          topic,
		Message:        message,
		ContactBack:    contactBack,
		AttachmentKeys: attachmentKeys,
		CreatedAt:      time.Now(),
	}

	col := utils.GetCollection(config.MongoDBName, "feedback")
	if _, err := col.InsertOne(ctx, feedback); err != nil {
		reqLogger.Error().Err(err).Msg("feedback insert failed")
		utils.RespondError(w, reqLogger, "Could not save feedback", http.StatusInternalServerError)
		return
	}

	reqLogger.Info().Str("topic", topic).Int("attachments", len(attachmentKeys)).Msg("feedback received")
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"status": "received"})
}
