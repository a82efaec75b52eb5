package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/freshmart/internal/admin"
	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/storefront"
)

// AdminHandler は管理者向けのHTTPハンドラー。
type AdminHandler struct {
	base
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(states StateOpener, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{base{states: states, logger: logger}}
}

type updatePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type pricePreviewRequest struct {
	Current decimal.Decimal `json:"current"`
	New     decimal.Decimal `json:"new"`
}

// Stats は商品数の集計を返す。管理者のみ。
// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		if !st.Session.IsAdmin() {
			handleServiceError(w, h.logger, model.NewAdminRequiredError())
			return
		}
		writeJSON(w, http.StatusOK, st.Admin().DashboardStats())
	})
}

// UpdatePrice は商品価格を更新し、カタログスナップショットにも反映する。
// PUT /api/admin/products/{id}/price
func (h *AdminHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	productID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req updatePriceRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		product, err := st.Admin().UpdatePrice(r.Context(), productID, req.Price)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	})
}

// PricePreview は価格変更の差額と変化率を計算する。状態には触れない。
// POST /api/admin/price-preview
func (h *AdminHandler) PricePreview(w http.ResponseWriter, r *http.Request) {
	var req pricePreviewRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	writeJSON(w, http.StatusOK, admin.PreviewChange(req.Current, req.New))
}
