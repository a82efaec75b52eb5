// Package storefront はリクエストごとのアプリケーション状態を組み立てる。
// セッション・カートはクライアントごと、カタログとGatewayはプロセス全体で共有する。
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/freshmart/internal/admin"
	"github.com/hitoshi/freshmart/internal/auth"
	"github.com/hitoshi/freshmart/internal/cart"
	"github.com/hitoshi/freshmart/internal/catalog"
	"github.com/hitoshi/freshmart/internal/checkout"
	"github.com/hitoshi/freshmart/internal/gateway"
	"github.com/hitoshi/freshmart/internal/metrics"
	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/payment"
	"github.com/hitoshi/freshmart/internal/repository"
	"github.com/hitoshi/freshmart/internal/security"
	"github.com/hitoshi/freshmart/internal/session"
	"github.com/hitoshi/freshmart/internal/wishlist"
)

// ErrEmptyClientID はクライアントIDが空の場合のエラー。
var ErrEmptyClientID = errors.New("client id is required")

// Deps はFactoryが共有する依存関係。
type Deps struct {
	Repo      repository.StateRepository
	Gateway   *gateway.Gateway
	Catalog   *catalog.Cache
	Sanitizer security.TextSanitizer
	Images    *payment.ImageFetcher
	Metrics   metrics.MetricsCollector
	Logger    *slog.Logger
}

// Factory はクライアントごとのStateを生成する。
type Factory struct {
	deps  Deps
	locks *clientLocks
}

// NewFactory はFactoryを生成する。
func NewFactory(deps Deps) *Factory {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{deps: deps, locks: newClientLocks()}
}

// Open はclientIDのロックを取得し、永続化済みのセッションとカートを読み込んだStateを返す。
// 呼び出し元は処理完了後に必ずreleaseを呼ぶ。
func (f *Factory) Open(ctx context.Context, clientID string) (*State, func(), error) {
	if clientID == "" {
		return nil, nil, ErrEmptyClientID
	}

	release, err := f.locks.acquire(ctx, clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock client state: %w", err)
	}

	logger := f.deps.Logger.With(slog.String("client_id", clientID))

	sess, err := session.Load(ctx, f.deps.Repo, clientID, logger)
	if err != nil {
		release()
		return nil, nil, err
	}

	c, err := cart.Load(ctx, cart.NewRepositoryPersistence(f.deps.Repo, clientID), logger)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}

	st := &State{
		ClientID: clientID,
		Session:  sess,
		Cart:     c,
		Catalog:  f.deps.Catalog,
		API:      f.deps.Gateway.Client(sess),
		deps:     &f.deps,
		logger:   logger,
	}
	return st, release, nil
}

// RefreshCatalog は匿名でカタログを再取得する。
func (f *Factory) RefreshCatalog(ctx context.Context) (catalog.Snapshot, error) {
	return f.deps.Catalog.Refresh(ctx, f.deps.Gateway.Client(nil))
}

// State は1クライアント分のアプリケーション状態。1リクエストの間だけ使う。
type State struct {
	ClientID string
	Session  *session.Store
	Cart     *cart.Cart
	Catalog  *catalog.Cache
	API      *gateway.Client

	deps   *Deps
	logger *slog.Logger
}

// AddToCart はカタログスナップショット上の商品名・価格・単位でカートに追加する。
func (s *State) AddToCart(ctx context.Context, productID int64) (model.CartLine, error) {
	p, ok := s.Catalog.Product(productID)
	if !ok {
		return model.CartLine{}, model.NewProductNotFoundError(productID)
	}
	if err := s.Cart.AddItem(ctx, p.ID, p.Name, p.Price, p.Unit); err != nil {
		return model.CartLine{}, err
	}
	line, _ := s.Cart.Line(p.ID)
	return line, nil
}

// Auth は認証フローを返す。
func (s *State) Auth() *auth.Service {
	return auth.NewService(s.API, s.Session, s.logger)
}

// Checkout はチェックアウトの状態機械を返す。
func (s *State) Checkout() *checkout.Orchestrator {
	return checkout.NewOrchestrator(s.API, s.Session, s.Cart, s.logger, s.deps.Metrics)
}

// Admin は価格編集フローを返す。
func (s *State) Admin() *admin.Flow {
	return admin.NewFlow(s.API, s.Session, s.Catalog, s.logger, s.deps.Metrics)
}

// Wishlist はウィッシュリスト操作を返す。
func (s *State) Wishlist() *wishlist.Service {
	return wishlist.NewService(s.API, s.Session, s.logger)
}

// Payment は支払いQRコード操作を返す。
func (s *State) Payment() *payment.Service {
	return payment.NewService(s.API, s.Session, s.deps.Sanitizer, s.deps.Images, s.logger)
}

// Orders はログイン中ユーザーの注文履歴を返す。
func (s *State) Orders(ctx context.Context) ([]model.Order, error) {
	if !s.Session.Get().Authenticated() {
		return nil, model.NewLoginRequiredError("view your orders")
	}
	return s.API.Orders(ctx)
}

// Order はログイン中ユーザーの注文1件を返す。
func (s *State) Order(ctx context.Context, orderID int64) (*model.Order, error) {
	if !s.Session.Get().Authenticated() {
		return nil, model.NewLoginRequiredError("view your orders")
	}
	return s.API.Order(ctx, orderID)
}

// ServerCart はリモートAPI側に同期済みのカートを返す。
// チェックアウトの同期が途中で止まった後に、どこまで反映されたかを確認するために使う。
func (s *State) ServerCart(ctx context.Context) (*model.ServerCart, error) {
	if !s.Session.Get().Authenticated() {
		return nil, model.NewLoginRequiredError("view your server cart")
	}
	return s.API.ServerCart(ctx)
}
