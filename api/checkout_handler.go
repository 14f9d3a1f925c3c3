package api

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/models"
	"github.com/threadswap/threadswap/utils"
)

// CheckoutRequest is the payload for placing an order from the cart.
type CheckoutRequest struct {
	ShippingName    string `json:"shipping_name"`
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

// CheckoutHandler turns the caller's cart into an order. Each listing is
// one of a kind: the order only includes items that could actually be
// flipped to sold, and anything that got away is reported back.
func CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "checkout").Logger()

	if r.Method != http.MethodPost {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CheckoutRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, reqLogger, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ShippingName == "" || req.ShippingAddress == "" {
		utils.RespondError(w, reqLogger, "Shipping name and address are required", http.StatusBadRequest)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "cod"
	}

	carts := utils.GetCollection(config.MongoDBName, "carts")
	orders := utils.GetCollection(config.MongoDBName, "orders")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	cursor, err := carts.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		reqLogger.Error().Err(err).Msg("cart find failed")
		utils.RespondError(w, reqLogger, "Could not read cart", http.StatusInternalServerError)
		return
	}
	var cartItems []models.CartItem
	if err := cursor.All(ctx, &cartItems); err != nil {
		reqLogger.Error().Err(err).Msg("cart decode failed")
		utils.RespondError(w, reqLogger, "Could not read cart", http.StatusInternalServerError)
		return
	}
	if len(cartItems) == 0 {
		utils.RespondError(w, reqLogger, "Your cart is empty", http.StatusUnprocessableEntity)
		return
	}

	var (
		items       []models.OrderItem
		unavailable []string
		totalCents  int64
		currency    string
	)
	for _, item := range cartItems {
		// MarkSold is the atomicity point: only one checkout can win a
		// given listing.
		p, err := productStore.MarkSold(ctx, item.ProductID)
		if err != nil {
			unavailable = append(unavailable, item.ProductID)
			continue
		}
		imageKey := ""
		if len(p.Images) > 0 {
			imageKey = p.Images[0]
		}
		items = append(items, models.OrderItem{
			ProductID:  item.ProductID,
			SellerID:   p.SellerID,
			Title:      p.Title,
			PriceCents: p.PriceCents,
			ImageKey:   imageKey,
		})
		totalCents += p.PriceCents
		if currency == "" {
			currency = p.Currency
		}
	}

	if len(items) == 0 {
		utils.RespondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":       "Everything in your cart has already sold",
			"unavailable": unavailable,
		})
		return
	}

	now := time.Now()
	order := models.Order{
		ID:              primitive.NewObjectID(),
		BuyerID:         userID,
		Items:           items,
		TotalCents:      totalCents,
		Currency:        currency,
		ShippingName:    req.ShippingName,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   "pending",
		Status:          models.OrderStatusPlaced,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := orders.InsertOne(ctx, order); err != nil {
		reqLogger.Error().Err(err).Msg("order insert failed")
		utils.RespondError(w, reqLogger, "Could not place order", http.StatusInternalServerError)
		return
	}

	if _, err := carts.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		reqLogger.Warn().Err(err).Msg("cart clear failed after checkout")
	}

	reqLogger.Info().Str("order", order.ID.Hex()).Int("items", len(items)).Msg("order placed")
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"order":       order,
		"unavailable": unavailable,
	})
}

// OrdersHandler lists the caller's orders, newest first.
func OrdersHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "orders").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, reqLogger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, limit, skip := utils.ParsePagination(r, 10, 50)

	orders := utils.GetCollection(config.MongoDBName, "orders")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := bson.M{"buyer_id": userID}
	total, err := orders.CountDocuments(ctx, filter)
	if err != nil {
		reqLogger.Error().Err(err).Msg("orders count failed")
		utils.RespondError(w, reqLogger, "Could not load orders", http.StatusInternalServerError)
		return
	}

	cursor, err := orders.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		reqLogger.Error().Err(err).Msg("orders find failed")
		utils.RespondError(w, reqLogger, "Could not load orders", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var list []models.Order
	if err := cursor.All(ctx, &list); err != nil {
		reqLogger.Error().Err(err).Msg("orders decode failed")
		utils.RespondError(w, reqLogger, "Could not load orders", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Order{}
	}

	for i := range list {
		for j := range list[i].Items {
			list[i].Items[j].ImageKey = utils.PresignImageURL(ctx, list[i].Items[j].ImageKey)
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"orders":       list,
		"total":        total,
		"current_page": page,
		"total_pages":  totalPages(total, limit),
	})
}
