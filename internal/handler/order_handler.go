package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/freshmart/internal/storefront"
)

// OrderHandler はチェックアウト・注文履歴・支払いQRコードのHTTPハンドラー。
type OrderHandler struct {
	base
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(states StateOpener, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{base{states: states, logger: logger}}
}

type checkoutRequest struct {
	Notes string `json:"notes"`
}

// Checkout はカートをサーバーへ同期して注文を作成する。
// 同期が途中で失敗した場合、ローカルカートは保持され、同期済みの商品IDがレスポンスに含まれる。
// POST /api/checkout
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		order, err := st.Checkout().Checkout(r.Context(), req.Notes)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	})
}

// List はログイン中ユーザーの注文履歴を返す。
// GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		orders, err := st.Orders(r.Context())
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	})
}

// Get は注文1件を返す。
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		order, err := st.Order(r.Context(), orderID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	})
}

// QRCode は注文の支払い用QRコード情報を返す。
// GET /api/orders/{id}/qr-code
func (h *OrderHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	orderID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		qr, err := st.Payment().QRCode(r.Context(), orderID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, qr)
	})
}

// QRImage はQRコード画像そのものを返す。外部URLの画像はSSRF対策済みのクライアントで取得する。
// GET /api/orders/{id}/qr-code/image
func (h *OrderHandler) QRImage(w http.ResponseWriter, r *http.Request) {
	orderID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		img, err := st.Payment().QRImage(r.Context(), orderID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		w.Header().Set("Content-Type", img.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		w.Write(img.Data)
	})
}
