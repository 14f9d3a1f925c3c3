package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

const maxMessageLen = 2000

// conversationKey is order independent so both participants read and
// write the same thread.
func conversationKey(userA, userB, productID string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return fmt.Sprintf("%s|%s|%s", pair[0], pair[1], productID)
}

// SendMessageRequest is the payload for sending a chat message.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	ProductID   string `json:"product_id,omitempty"`
	Body        string `json:"body"`
}

// SendMessageHandler appends a message to a buyer/seller thread.
func SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "send_message").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req SendMessageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.RecipientID == "" || req.Body == "" {
		utils.RespondError(w, reqLogger, "Recipient and body are required", http.StatusBadRequest)
		return
	}
	if req.RecipientID == userID {
		utils.RespondError(w, reqLogger, "You cannot message yourself", http.StatusUnprocessableEntity)
		return
	}
	if len(req.Body) > maxMessageLen {
		utils.RespondError(w, reqLogger, "Message is too long", http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	msg := models.Message{
		ID:              primitive.NewObjectID(),
		ConversationKey: conversationKey(userID, req.RecipientID, req.ProductID),
		SenderID:        userID,
		RecipientID:     req.RecipientID,
		ProductID:       req.ProductID,
		Body:            req.Body,
		SentAt:          time.Now(),
	}
	messages := utils.GetCollection(config.MongoDBName, "messages")
	if _, err := messages.InsertOne(ctx, msg); err != nil {
		reqLogger.Error().Err(err).Msg("message insert failed")
		utils.RespondError(w, reqLogger, "Could not send message", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, msg)
}

// ConversationHandler returns messages in one thread, oldest first.
// Clients poll with ?since=<RFC3339> to fetch only new messages.
func ConversationHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "conversation").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	otherID := r.URL.Query().Get("with")
	if otherID == "" {
		utils.RespondError(w, reqLogger, "Missing with parameter", http.StatusBadRequest)
		return
	}
	productID := r.URL.Query().Get("product_id")

	filter := bson.M{"conversation_key": conversationKey(userID, otherID, productID)}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			utils.RespondError(w, reqLogger, "Invalid since timestamp", http.StatusBadRequest)
			return
		}
		filter["sent_at"] = bson.M{"$gt": t}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	messages := utils.GetCollection(config.MongoDBName, "messages")
	cursor, err := messages.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: 1}}).
		SetLimit(200))
	if err != nil {
		reqLogger.Error().Err(err).Msg("conversation find failed")
		utils.RespondError(w, reqLogger, "Could not load conversation", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var list []models.Message
	if err := cursor.All(ctx, &list); err != nil {
		reqLogger.Error().Err(err).Msg("conversation decode failed")
		utils.RespondError(w, reqLogger, "Could not load conversation", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Message{}
	}

	// Mark the other side's messages as read up to now.
	now := time.Now()
	if _, err := messages.UpdateMany(ctx, bson.M{
		"conversation_key": conversationKey(userID, otherID, productID),
		"recipient_id":     userID,
		"read_at":          nil,
	}, bson.M{"$set": bson.M{"read_at": now}}); err != nil {
		reqLogger.Warn().Err(err).Msg("read receipt update failed")
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"messages": list})
}

// ConversationSummary is one row in the caller's inbox.
type ConversationSummary struct {
	ConversationKey string         `json:"conversation_key"`
	OtherUserID     string         `json:"other_user_id"`
	ProductID       string         `json:"product_id,omitempty"`
	LastMessage     models.Message `json:"last_message"`
	UnreadCount     int64          `json:"unread_count"`
}

// ConversationsHandler lists the caller's threads, most recent first.
func ConversationsHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "conversations").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	messages := utils.GetCollection(config.MongoDBName, "messages")
	cursor, err := messages.Find(ctx, bson.M{
		"$or": []bson.M{{"sender_id": userID}, {"recipient_id": userID}},
	}, options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(500))
	if err != nil {
		reqLogger.Error().Err(err).Msg("inbox find failed")
		utils.RespondError(w, reqLogger, "Could not load conversations", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var all []models.Message
	if err := cursor.All(ctx, &all); err != nil {
		reqLogger.Error().Err(err).Msg("inbox decode failed")
		utils.RespondError(w, reqLogger, "Could not load conversations", http.StatusInternalServerError)
		return
	}

	// Messages arrive newest first, so the first message seen per key is
	// the thread's latest.
	var (
		order     []string
		summaries = make(map[string]*ConversationSummary)
	)
	for _, m := range all {
		s, ok := summaries[m.ConversationKey]
		if !ok {
			other := m.SenderID
			if other == userID {
				other = m.RecipientID
			}
			s = &ConversationSummary{
				ConversationKey: m.ConversationKey,
				OtherUserID:     other,
				ProductID:       m.ProductID,
				LastMessage:     m,
			}
			summaries[m.ConversationKey] = s
			order = append(order, m.ConversationKey)
		}
		if m.RecipientID == userID && m.ReadAt == nil {
			s.UnreadCount++
		}
	}

	list := make([]ConversationSummary, 0, len(order))
	for _, key := range order {
		list = append(list, *summaries[key])
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"conversations": list})
}
