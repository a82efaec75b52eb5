package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/freshmart/internal/storefront"
)

// WishlistHandler はウィッシュリストのHTTPハンドラー。
type WishlistHandler struct {
	base
}

// NewWishlistHandler はWishlistHandlerを生成する。
func NewWishlistHandler(states StateOpener, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{base{states: states, logger: logger}}
}

// Add は商品をウィッシュリストに追加する。
// POST /api/wishlist
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		item, err := st.Wishlist().Add(r.Context(), req.ProductID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	})
}
