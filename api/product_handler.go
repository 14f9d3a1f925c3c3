package api

import (
	"context"
	"net/http"
	"time"

	"github.com/threadswap/threadswap/products"
	"github.com/threadswap/threadswap/utils"
)

// BrowseProductsHandler lists active listings for buyers.
func BrowseProductsHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "browse").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page, limit, _ := utils.ParsePagination(r, 20, 100)
	q := r.URL.Query()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, total, err := productStore.Browse(ctx, products.BrowseFilter{
		Category: q.Get("category"),
		Gender:   q.Get("gender"),
		Size:     q.Get("size"),
		Search:   q.Get("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		reqLogger.Error().Err(err).Msg("browse failed")
		utils.RespondError(w, reqLogger, "Could not load products", http.StatusInternalServerError)
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

// ProductDetailHandler returns one listing.
func ProductDetailHandler(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.With().Str("handler", "product_detail").Logger()

	if r.Method != http.MethodGet {
		utils.RespondError(w, reqLogger, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		utils.RespondError(w, reqLogger, "A product id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := productStore.Get(ctx, id)
	if err != nil {
		utils.RespondError(w, reqLogger, "Product not found", http.StatusNotFound)
		return
	}

	presignProduct(ctx, p)
	utils.RespondJSON(w, http.StatusOK, p)
}
