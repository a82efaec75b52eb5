package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/freshmart/internal/middleware"
	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/storefront"
)

// CartHandler はローカルカートのHTTPハンドラー。
type CartHandler struct {
	base
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(states StateOpener, logger *slog.Logger) *CartHandler {
	return &CartHandler{base{states: states, logger: logger}}
}

type cartLineResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Unit      string `json:"unit"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Total     string             `json:"total"`
}

func toCartLineResponse(l model.CartLine) cartLineResponse {
	return cartLineResponse{
		ProductID: l.ProductID,
		Name:      l.Name,
		UnitPrice: l.UnitPrice.StringFixed(2),
		Unit:      l.Unit,
		Quantity:  l.Quantity,
		Subtotal:  l.Subtotal().StringFixed(2),
	}
}

func newCartResponse(st *storefront.State) cartResponse {
	lines := st.Cart.Lines()
	totals := st.Cart.Totals()

	resp := cartResponse{
		Lines:     make([]cartLineResponse, 0, len(lines)),
		ItemCount: totals.ItemCount,
		Total:     totals.Amount.StringFixed(2),
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, toCartLineResponse(l))
	}
	return resp
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
}

type changeQuantityRequest struct {
	Delta int `json:"delta"`
}

// Get はカートの明細と合計を返す。
// GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		writeJSON(w, http.StatusOK, newCartResponse(st))
	})
}

// AddItem はカタログ上の商品をカートに1つ追加する。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.ProductID <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("product_id must be a positive integer"))
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		if _, err := st.AddToCart(r.Context(), req.ProductID); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartResponse(st))
	})
}

// ChangeQuantity は明細の数量を増減する。0以下になった明細は削除される。
// PATCH /api/cart/items/{productID}
func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := int64Param(w, r, "productID")
	if !ok {
		return
	}
	var req changeQuantityRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		if err := st.Cart.ChangeQuantity(r.Context(), productID, req.Delta); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartResponse(st))
	})
}

// Clear はカートを空にする。
// DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		if err := st.Cart.Clear(r.Context()); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartResponse(st))
	})
}

// Server はリモートAPI側に同期済みのカートをそのまま返す。ログインが必要。
// GET /api/cart/server
func (h *CartHandler) Server(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		sc, err := st.ServerCart(r.Context())
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sc)
	})
}
