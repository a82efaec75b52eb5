package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/freshmart/internal/catalog"
	"github.com/hitoshi/freshmart/internal/middleware"
	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/storefront"
)

// catalogRefreshTimeout はリクエストから切り離したカタログ再取得全体の上限。
const catalogRefreshTimeout = 30 * time.Second

// CatalogReader はカタログスナップショットの読み取り操作。*catalog.Cache が実装する。
type CatalogReader interface {
	Snapshot() catalog.Snapshot
	Search(query string) []model.Product
	Named(filter string) []model.Product
	InCategory(categoryID int64) []model.Product
	Categories() []model.Category
}

// CatalogRefresher はカタログを再取得する。*storefront.Factory が実装する。
type CatalogRefresher interface {
	RefreshCatalog(ctx context.Context) (catalog.Snapshot, error)
}

// CatalogHandler はカタログ閲覧のHTTPハンドラー。
type CatalogHandler struct {
	base
	catalog   CatalogReader
	refresher CatalogRefresher
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(cat CatalogReader, refresher CatalogRefresher, states StateOpener, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		base:      base{states: states, logger: logger},
		catalog:   cat,
		refresher: refresher,
	}
}

type catalogResponse struct {
	Products          []model.Product `json:"products"`
	Total             int             `json:"total"`
	RefreshedAt       *time.Time      `json:"refreshed_at,omitempty"`
	DefaultCategories bool            `json:"default_categories"`
}

// List は商品一覧を返す。q（検索）・filter（名前付きフィルタ）・category（カテゴリID）で絞り込む。
// 複数指定した場合は category → filter → q の順に積み重ねる。
// GET /api/catalog
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	snap := h.catalog.Snapshot()
	products := snap.Products

	if raw := query.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("category must be a positive integer"))
			return
		}
		products = intersect(products, h.catalog.InCategory(id))
	}
	if filter := query.Get("filter"); filter != "" && filter != catalog.FilterAll {
		products = intersect(products, h.catalog.Named(filter))
	}
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		products = intersect(products, h.catalog.Search(q))
	}

	resp := catalogResponse{
		Products:          products,
		Total:             len(products),
		DefaultCategories: snap.DefaultCategories,
	}
	if !snap.RefreshedAt.IsZero() {
		resp.RefreshedAt = &snap.RefreshedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// Categories はカテゴリ一覧を返す。
// GET /api/categories
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Categories())
}

// Refresh はカタログを再取得する。管理者のみ。
// 商品の取得に失敗した場合も、空の商品一覧とデフォルトカテゴリのスナップショットで応答し、
// エラーはwarningとして含める。
// POST /api/catalog/refresh
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		if !st.Session.IsAdmin() {
			handleServiceError(w, h.logger, model.NewAdminRequiredError())
			return
		}
		h.refresh(w, r)
	})
}

// refresh は共有スナップショットを置き換えるため、クライアントの切断で中断させない。
func (h *CatalogHandler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), catalogRefreshTimeout)
	defer cancel()

	snap, err := h.refresher.RefreshCatalog(ctx)

	body := map[string]any{
		"categories":         len(snap.Categories),
		"products":           len(snap.Products),
		"default_categories": snap.DefaultCategories,
		"refreshed_at":       snap.RefreshedAt,
	}
	if err != nil {
		h.logger.Warn("カタログの再取得に失敗しました", slog.String("error", err.Error()))
		body["warning"] = upstreamMessage(err)
	}
	writeJSON(w, http.StatusOK, body)
}

// intersect はbaseのうちsubsetに含まれる商品をbaseの順序で返す。
func intersect(base, subset []model.Product) []model.Product {
	ids := make(map[int64]struct{}, len(subset))
	for _, p := range subset {
		ids[p.ID] = struct{}{}
	}
	out := make([]model.Product, 0, len(base))
	for _, p := range base {
		if _, ok := ids[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
