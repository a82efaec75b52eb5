// Package admin は管理者向けの価格編集とダッシュボード集計を提供する。
package admin

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/freshmart/internal/catalog"
	"github.com/hitoshi/freshmart/internal/metrics"
	"github.com/hitoshi/freshmart/internal/model"
)

// API は価格更新に使うリモートAPI操作。*gateway.Client が実装する。
type API interface {
	UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) (*model.Product, error)
}

// RoleChecker は現在のセッションが管理者かを返す。*session.Store が実装する。
type RoleChecker interface {
	IsAdmin() bool
}

// CatalogPatcher はカタログスナップショット上の価格を書き換える。*catalog.Cache が実装する。
type CatalogPatcher interface {
	PatchPrice(id int64, price decimal.Decimal) bool
	Stats() catalog.Stats
}

// PriceChange は価格変更のプレビュー。
type PriceChange struct {
	Current decimal.Decimal `json:"current"`
	New     decimal.Decimal `json:"new"`
	Delta   decimal.Decimal `json:"delta"`
	Percent decimal.Decimal `json:"percent"`
}

// Flow は管理者の価格編集フロー。
type Flow struct {
	api     API
	roles   RoleChecker
	catalog CatalogPatcher
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewFlow はFlowを生成する。
func NewFlow(api API, roles RoleChecker, cat CatalogPatcher, logger *slog.Logger, mc metrics.MetricsCollector) *Flow {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Flow{api: api, roles: roles, catalog: cat, logger: logger, metrics: mc}
}

// UpdatePrice は価格を検証し、管理者であればサーバーへ保存した上で
// カタログスナップショットの該当商品を再取得せずに更新する。
// 権限チェックはクライアント側の事前確認であり、最終判断はサーバーが行う。
func (f *Flow) UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) (*model.Product, error) {
	if !price.IsPositive() {
		return nil, model.NewNonPositivePriceError()
	}
	if !f.roles.IsAdmin() {
		return nil, model.NewAdminRequiredError()
	}

	updated, err := f.api.UpdatePrice(ctx, productID, price)
	if err != nil {
		f.metrics.RecordPriceUpdate(false)
		return nil, err
	}

	if !f.catalog.PatchPrice(productID, price) {
		f.logger.Warn("価格を更新した商品がカタログスナップショットにありません", slog.Int64("product_id", productID))
	}
	f.metrics.RecordPriceUpdate(true)
	f.logger.Info("商品価格を更新しました",
		slog.Int64("product_id", productID),
		slog.String("price", price.StringFixed(2)),
	)
	return updated, nil
}

// DashboardStats はカタログスナップショットから商品数・有効商品数・在庫僅少数を集計する。
func (f *Flow) DashboardStats() catalog.Stats {
	return f.catalog.Stats()
}

// PreviewChange は現在価格と新価格の差分と変化率（小数第1位で丸め）を返す。
// 現在価格が0の場合、変化率は0とする。
func PreviewChange(current, next decimal.Decimal) PriceChange {
	delta := next.Sub(current)
	percent := decimal.Zero
	if !current.IsZero() {
		percent = delta.Div(current).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return PriceChange{
		Current: current,
		New:     next,
		Delta:   delta,
		Percent: percent,
	}
}
