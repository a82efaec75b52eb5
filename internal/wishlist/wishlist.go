// Package wishlist はログイン済みユーザーのウィッシュリスト操作を提供する。
package wishlist

import (
	"context"
	"log/slog"

	"github.com/hitoshi/freshmart/internal/model"
)

// API はウィッシュリスト追加に使うリモートAPI操作。*gateway.Client が実装する。
type API interface {
	AddToWishlist(ctx context.Context, productID int64) (*model.WishlistItem, error)
}

// SessionReader は現在のセッションを返す。*session.Store が実装する。
type SessionReader interface {
	Get() model.Session
}

// Service は1クライアント分のウィッシュリスト操作。
type Service struct {
	api     API
	session SessionReader
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api API, session SessionReader, logger *slog.Logger) *Service {
	return &Service{api: api, session: session, logger: logger}
}

// Add は商品をウィッシュリストに追加する。未ログインの場合は通信せずにエラーを返す。
// 追加済みの商品はサーバーが400で拒否する。
func (s *Service) Add(ctx context.Context, productID int64) (*model.WishlistItem, error) {
	if productID <= 0 {
		return nil, &model.ValidationError{Field: "product_id", Message: "must be positive"}
	}
	if !s.session.Get().Authenticated() {
		return nil, model.NewLoginRequiredError("add items to your wishlist")
	}

	item, err := s.api.AddToWishlist(ctx, productID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ウィッシュリストに追加しました", slog.Int64("product_id", productID))
	return item, nil
}
