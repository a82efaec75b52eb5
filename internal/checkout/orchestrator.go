// Package checkout はローカルカートをサーバー側の注文へ確定させる手続きを提供する。
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/freshmart/internal/metrics"
	"github.com/hitoshi/freshmart/internal/model"
)

const (
	// DefaultDeliveryAddress はユーザープロフィールに住所がない場合の配送先。
	DefaultDeliveryAddress = "Default Address"
	// DefaultNotes は呼び出し元が備考を指定しない場合の備考。
	DefaultNotes = "Order from FreshMart web interface"
)

// State はチェックアウトの進行状態。
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSyncingCart
	StateCreatingOrder
	StateConfirmed
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSyncingCart:
		return "syncing_cart"
	case StateCreatingOrder:
		return "creating_order"
	case StateConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// API はチェックアウトが使うリモートAPI操作。*gateway.Client が実装する。
type API interface {
	AddToServerCart(ctx context.Context, productID int64, quantity int) error
	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error)
}

// SessionReader は現在のセッションを返す。*session.Store が実装する。
type SessionReader interface {
	Get() model.Session
}

// Cart はチェックアウト対象のローカルカート。*cart.Cart が実装する。
type Cart interface {
	Lines() []model.CartLine
	Clear(ctx context.Context) error
}

// SyncError はサーバー側カートへの同期が途中で失敗したことを表す。
// Syncedはサーバーへ反映済みの明細、Failedは失敗した明細、Pendingは未送信の明細。
// 反映済みの明細はロールバックしない。
type SyncError struct {
	Synced  []model.CartLine
	Failed  model.CartLine
	Pending []model.CartLine
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	return fmt.Sprintf("cart sync failed at product %d (%d synced, %d pending): %v",
		e.Failed.ProductID, len(e.Synced), len(e.Pending), e.Err)
}

// Unwrap は下位のエラーを返す。
func (e *SyncError) Unwrap() error {
	return e.Err
}

// SyncedProductIDs はサーバーへ反映済みの商品IDを返す。
func (e *SyncError) SyncedProductIDs() []int64 {
	return productIDs(e.Synced)
}

// PendingProductIDs は失敗した明細を含む、未反映の商品IDを返す。
func (e *SyncError) PendingProductIDs() []int64 {
	return append([]int64{e.Failed.ProductID}, productIDs(e.Pending)...)
}

// Orchestrator は1クライアント分のチェックアウト状態機械。
type Orchestrator struct {
	api     API
	session SessionReader
	cart    Cart
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu    sync.Mutex
	state State
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(api API, session SessionReader, cart Cart, logger *slog.Logger, mc metrics.MetricsCollector) *Orchestrator {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Orchestrator{
		api:     api,
		session: session,
		cart:    cart,
		logger:  logger,
		metrics: mc,
		state:   StateIdle,
	}
}

// State は現在の状態を返す。
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("チェックアウト状態が変化しました", slog.String("state", s.String()))
}

// Checkout はカートの各明細を順番にサーバー側カートへ追加し、注文を作成する。
// 成功時はローカルカートをクリアして注文を返す。
// 失敗時は状態をIdleへ戻し、ローカルカートは変更しない。
func (o *Orchestrator) Checkout(ctx context.Context, notes string) (*model.Order, error) {
	order, err := o.run(ctx, notes)
	if err != nil {
		o.transition(StateIdle)
		return nil, err
	}
	return order, nil
}

func (o *Orchestrator) run(ctx context.Context, notes string) (*model.Order, error) {
	o.transition(StateValidating)

	sess := o.session.Get()
	if !sess.Authenticated() {
		o.metrics.RecordCheckout(metrics.OutcomeRejected)
		return nil, model.NewLoginRequiredError("checkout")
	}
	lines := o.cart.Lines()
	if len(lines) == 0 {
		o.metrics.RecordCheckout(metrics.OutcomeRejected)
		return nil, model.NewEmptyCartError()
	}

	o.transition(StateSyncingCart)
	if err := o.syncCart(ctx, lines); err != nil {
		o.metrics.RecordCheckout(metrics.OutcomeSyncFailed)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		o.metrics.RecordCheckout(metrics.OutcomeOrderFailed)
		return nil, fmt.Errorf("checkout aborted before order creation: %w", err)
	}

	o.transition(StateCreatingOrder)
	order, err := o.api.CreateOrder(ctx, model.OrderRequest{
		DeliveryAddress: deliveryAddress(sess.User),
		Notes:           orderNotes(notes),
	})
	if err != nil {
		o.logger.Warn("カート同期後の注文作成に失敗しました",
			slog.Int("synced_lines", len(lines)),
			slog.String("error", err.Error()),
		)
		o.metrics.RecordCheckout(metrics.OutcomeOrderFailed)
		return nil, err
	}

	o.transition(StateConfirmed)
	if err := o.cart.Clear(ctx); err != nil {
		// 注文は作成済みのため、保存失敗は記録のみ行い注文を返す
		o.logger.Error("注文後のカートクリアの保存に失敗しました",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		o.metrics.RecordCheckout(metrics.OutcomeCartNotStored)
	} else {
		o.metrics.RecordCheckout(metrics.OutcomeConfirmed)
	}

	o.logger.Info("注文が確定しました",
		slog.Int64("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.Int("lines", len(lines)),
	)
	return order, nil
}

// syncCart は明細をカート順に1件ずつ送信する。並列化しない。
func (o *Orchestrator) syncCart(ctx context.Context, lines []model.CartLine) error {
	for i, line := range lines {
		err := ctx.Err()
		if err == nil {
			err = o.api.AddToServerCart(ctx, line.ProductID, line.Quantity)
		}
		if err != nil {
			o.metrics.RecordCartLinesSynced(i)
			syncErr := &SyncError{
				Synced:  lines[:i],
				Failed:  line,
				Pending: lines[i+1:],
				Err:     err,
			}
			o.logger.Warn("カート同期が途中で停止しました",
				slog.Int("synced", i),
				slog.Int("total", len(lines)),
				slog.Int64("failed_product_id", line.ProductID),
				slog.String("error", err.Error()),
			)
			return syncErr
		}
	}
	o.metrics.RecordCartLinesSynced(len(lines))
	return nil
}

func deliveryAddress(u *model.User) string {
	if u == nil || strings.TrimSpace(u.Address) == "" {
		return DefaultDeliveryAddress
	}
	return u.Address
}

func orderNotes(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return DefaultNotes
	}
	return notes
}

func productIDs(lines []model.CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}
