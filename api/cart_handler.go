package api

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

// CartHandler lists, adds to, or removes from the caller's cart.
// Listings are one of a kind, so adding is a set-insert, not a quantity
// bump.
func CartHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "cart").Logger()

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	collection := utils.GetCollection(config.MongoDBName, "carts")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		cursor, err := collection.Find(ctx, bson.M{"user_id": userID},
			options.Find().SetSort(bson.D{{Key: "added_at", Value: -1}}))
		if err != nil {
			reqLogger.Error().Err(err).Msg("cart find failed")
			utils.RespondError(w, reqLogger, "Could not load cart", http.StatusInternalServerError)
			return
		}
		defer cursor.Close(ctx)

		var items []models.CartItem
		if err := cursor.All(ctx, &items); err != nil {
			reqLogger.Error().Err(err).Msg("cart decode failed")
			utils.RespondError(w, reqLogger, "Could not load cart", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []models.CartItem{}
		}

		// Hydrate each line with the current listing; sold or removed
		// products are surfaced to the client as unavailable.
		type cartLine struct {
			models.CartItem
			Product   *models.Product `json:"product,omitempty"`
			Available bool            `json:"available"`
		}
		lines := make([]cartLine, 0, len(items))
		var totalCents int64
		for _, item := range items {
			line := cartLine{CartItem: item}
			if p, err := productStore.Get(ctx, item.ProductID); err == nil {
				presignProduct(ctx, p)
				line.Product = p
				line.Available = p.Status == models.ProductStatusActive
				if line.Available {
					totalCents += p.PriceCents
				}
			}
			lines = append(lines, line)
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"items":       lines,
			"total_cents": totalCents,
		})

	case http.MethodPost:
		var req struct {
			ProductID string `json:"product_id"`
		}
		if err := utils.DecodeJSON(r, &req); err != nil || req.ProductID == "" {
			utils.RespondError(w, reqLogger, "product_id is required", http.StatusBadRequest)
			return
		}

		p, err := productStore.Get(ctx, req.ProductID)
		if err != nil {
			utils.RespondError(w, reqLogger, "Product not found", http.StatusNotFound)
			return
		}
		if p.Status != models.ProductStatusActive {
			utils.RespondError(w, reqLogger, "This listing is no longer available", http.StatusConflict)
			return
		}
		if p.SellerID == userID {
			utils.RespondError(w, reqLogger, "You cannot buy your own listing", http.StatusConflict)
			return
		}

		var existing models.CartItem
		err = collection.FindOne(ctx, bson.M{"user_id": userID, "product_id": req.ProductID}).Decode(&existing)
		if err == nil {
			utils.RespondError(w, reqLogger, "Already in your cart", http.StatusConflict)
			return
		}
		if err != mongo.ErrNoDocuments {
			reqLogger.Error().Err(err).Msg("cart lookup failed")
			utils.RespondError(w, reqLogger, "Could not update cart", http.StatusInternalServerError)
			return
		}

		item := models.CartItem{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			ProductID: req.ProductID,
			AddedAt:   time.Now(),
		}
		if _, err := collection.InsertOne(ctx, item); err != nil {
			reqLogger.Error().Err(err).Msg("cart insert failed")
			utils.RespondError(w, reqLogger, "Could not update cart", http.StatusInternalServerError)
			return
		}
		utils.RespondJSON(w, http.StatusCreated, item)

	case http.MethodDelete:
		productID := r.URL.Query().Get("product_id")
		if productID == "" {
			utils.RespondError(w, reqLogger, "product_id is required", http.StatusBadRequest)
			return
		}
		res, err := collection.DeleteOne(ctx, bson.M{"user_id": userID, "product_id": productID})
		if err != nil {
			reqLogger.Error().Err(err).Msg("cart delete failed")
			utils.RespondError(w, reqLogger, "Could not update cart", http.StatusInternalServerError)
			return
		}
		if res.DeletedCount == 0 {
			utils.RespondError(w, reqLogger, "Not in your cart", http.StatusNotFound)
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Removed from cart"})

	default:
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
