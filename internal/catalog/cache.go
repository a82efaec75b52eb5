// Package catalog はリモートAPIから取得した商品・カテゴリのスナップショットを保持する。
// スナップショットはプロセス内の全クライアントで共有する。
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/freshmart/internal/metrics"
	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/security"
)

// LowStockThreshold 未満の在庫数を在庫僅少とみなす。
const LowStockThreshold = 10

// 名前付きフィルタ
const (
	FilterAll        = "all"
	FilterOrganic    = "organic"
	FilterVegetables = "vegetables"
	FilterFruits     = "fruits"
)

// Source はカタログの取得元。*gateway.Client が実装する。
type Source interface {
	Categories(ctx context.Context) ([]model.Category, error)
	Products(ctx context.Context) ([]model.Product, error)
}

// Snapshot はある時点のカタログ全体。
type Snapshot struct {
	Categories        []model.Category `json:"categories"`
	Products          []model.Product  `json:"products"`
	RefreshedAt       time.Time        `json:"refreshed_at"`
	DefaultCategories bool             `json:"default_categories"`
}

// Stats は管理ダッシュボード用の集計値。
type Stats struct {
	Total    int `json:"total_products"`
	Active   int `json:"active_products"`
	LowStock int `json:"low_stock"`
}

// DefaultCategories はカテゴリ取得失敗時に使う固定のカテゴリ一覧を返す。
func DefaultCategories() []model.Category {
	return []model.Category{
		{ID: 1, Name: "Vegetables", IsActive: true},
		{ID: 2, Name: "Fruits", IsActive: true},
		{ID: 3, Name: "Leafy Greens", IsActive: true},
		{ID: 4, Name: "Root Vegetables", IsActive: true},
		{ID: 5, Name: "Citrus Fruits", IsActive: true},
		{ID: 6, Name: "Berries", IsActive: true},
	}
}

// Cache はカタログスナップショットをRWMutexで保護して保持する。
// スナップショットはRefreshで丸ごと置き換え、PatchPriceでのみ部分更新する。
type Cache struct {
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// NewCache はデフォルトカテゴリ・商品なしの状態でCacheを生成する。
func NewCache(sanitizer security.TextSanitizer, logger *slog.Logger, mc metrics.MetricsCollector) *Cache {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		sanitizer: sanitizer,
		metrics:   mc,
		logger:    logger,
		snap: Snapshot{
			Categories:        DefaultCategories(),
			DefaultCategories: true,
		},
	}
}

// Refresh はカテゴリと商品を取得し、スナップショットを丸ごと置き換える。
// カテゴリ取得に失敗した場合はデフォルトカテゴリを使い、エラーは返さない。
// 商品取得に失敗した場合は商品を空にしたスナップショットに置き換え、そのエラーを返す。
// いずれの場合も戻り値のSnapshotは有効な値である。
func (c *Cache) Refresh(ctx context.Context, src Source) (Snapshot, error) {
	next := Snapshot{RefreshedAt: time.Now()}

	categories, err := src.Categories(ctx)
	if err != nil {
		c.logger.Warn("カテゴリの取得に失敗したためデフォルトカテゴリを使用します",
			slog.String("error", err.Error()),
		)
		next.Categories = DefaultCategories()
		next.DefaultCategories = true
	} else {
		next.Categories = c.sanitizeCategories(categories)
	}

	products, perr := src.Products(ctx)
	if perr != nil {
		c.logger.Error("商品の取得に失敗しました", slog.String("error", perr.Error()))
		next.Products = []model.Product{}
	} else {
		next.Products = c.sanitizeProducts(products)
	}

	c.mu.Lock()
	c.snap = next
	c.mu.Unlock()

	c.metrics.RecordCatalogRefresh(perr == nil, len(next.Products))

	if perr != nil {
		return next.clone(), perr
	}

	c.logger.Info("カタログを更新しました",
		slog.Int("categories", len(next.Categories)),
		slog.Int("products", len(next.Products)),
	)
	return next.clone(), nil
}

// Snapshot は現在のスナップショットのコピーを返す。
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.clone()
}

// Filter は条件に一致する商品を返す。ネットワークI/Oは行わない。
func (c *Cache) Filter(pred func(model.Product) bool) []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Product, 0, len(c.snap.Products))
	for _, p := range c.snap.Products {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// Search は商品名・説明に対する大文字小文字を区別しない部分一致検索を行う。
// 空のクエリは全商品を返す。
func (c *Cache) Search(query string) []model.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Filter(func(model.Product) bool { return true })
	}
	return c.Filter(func(p model.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q)
	})
}

// Named はall/organic/vegetables/fruitsの名前付きフィルタを適用する。
// 不明な名前はallとして扱う。
func (c *Cache) Named(filter string) []model.Product {
	switch strings.ToLower(filter) {
	case FilterOrganic:
		return c.Filter(func(p model.Product) bool { return p.IsOrganic })
	case FilterVegetables:
		return c.Filter(categoryContains("vegetable"))
	case FilterFruits:
		return c.Filter(categoryContains("fruit"))
	default:
		return c.Filter(func(model.Product) bool { return true })
	}
}

func categoryContains(word string) func(model.Product) bool {
	return func(p model.Product) bool {
		return strings.Contains(strings.ToLower(p.CategoryName()), word)
	}
}

// InCategory は指定カテゴリIDの商品を返す。
func (c *Cache) InCategory(categoryID int64) []model.Product {
	return c.Filter(func(p model.Product) bool { return p.CategoryID == categoryID })
}

// Product は指定IDの商品を返す。
func (c *Cache) Product(id int64) (model.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.snap.Products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// Categories はカテゴリ一覧のコピーを返す。
func (c *Cache) Categories() []model.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Category, len(c.snap.Categories))
	copy(out, c.snap.Categories)
	return out
}

// PatchPrice はスナップショット内の商品価格を再取得なしで更新する。
// 該当商品がない場合はfalseを返す。
func (c *Cache) PatchPrice(id int64, price decimal.Decimal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.snap.Products {
		if c.snap.Products[i].ID == id {
			c.snap.Products[i].Price = price
			return true
		}
	}
	return false
}

// Stats は商品総数・有効商品数・在庫僅少数を返す。
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Total: len(c.snap.Products)}
	for _, p := range c.snap.Products {
		if p.IsActive {
			s.Active++
		}
		if p.StockQuantity < LowStockThreshold {
			s.LowStock++
		}
	}
	return s
}

func (c *Cache) sanitizeCategories(in []model.Category) []model.Category {
	out := make([]model.Category, len(in))
	for i, cat := range in {
		cat.Name = c.sanitizer.Text(cat.Name)
		cat.Description = c.sanitizer.Text(cat.Description)
		out[i] = cat
	}
	return out
}

func (c *Cache) sanitizeProducts(in []model.Product) []model.Product {
	out := make([]model.Product, len(in))
	for i, p := range in {
		p.Name = c.sanitizer.Text(p.Name)
		p.Description = c.sanitizer.Text(p.Description)
		p.Unit = c.sanitizer.Text(p.Unit)
		p.Origin = c.sanitizer.Text(p.Origin)
		if p.Category != nil {
			cat := *p.Category
			cat.Name = c.sanitizer.Text(cat.Name)
			cat.Description = c.sanitizer.Text(cat.Description)
			p.Category = &cat
		}
		out[i] = p
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Categories = append([]model.Category(nil), s.Categories...)
	out.Products = append([]model.Product{}, s.Products...)
	return out
}
