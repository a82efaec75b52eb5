// Package cart はクライアントが保持するカート（商品IDごとの数量と価格スナップショット）を扱う。
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/freshmart/internal/model"
)

// MaxQuantity は1明細あたりの数量の上限。
const MaxQuantity = 999

// Cart は商品IDごとに1明細を持つ、追加順を保ったカート。
// 各操作はメモリ上の状態を更新した後に永続化する。
type Cart struct {
	store  Persistence
	logger *slog.Logger

	mu    sync.Mutex
	lines []model.CartLine
}

// Load は永続化済みのカートを読み込む。
// 読み込めない（壊れた）内容は空のカートとして扱う。
func Load(ctx context.Context, store Persistence, logger *slog.Logger) (*Cart, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cart{store: store, logger: logger}

	lines, err := store.Load(ctx)
	if errors.Is(err, ErrCorrupt) {
		logger.Warn("読み込めないカートを破棄します", slog.String("error", err.Error()))
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity < 1 || l.Quantity > MaxQuantity || c.index(l.ProductID) >= 0 {
			logger.Warn("不正なカート明細を除外します",
				slog.Int64("product_id", l.ProductID),
				slog.Int("quantity", l.Quantity),
			)
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c, nil
}

// AddItem は商品を1つ追加する。既に明細がある場合は数量を1増やし、
// 渡された名前・価格は無視する（追加時点の価格を維持する）。
func (c *Cart) AddItem(ctx context.Context, productID int64, name string, price decimal.Decimal, unit string) error {
	if productID <= 0 {
		return &model.ValidationError{Field: "product_id", Message: "product id must be positive"}
	}
	if !price.IsPositive() {
		return model.NewNonPositivePriceError()
	}

	c.mu.Lock()
	if i := c.index(productID); i >= 0 {
		if c.lines[i].Quantity >= MaxQuantity {
			c.mu.Unlock()
			return newQuantityLimitError()
		}
		c.lines[i].Quantity++
	} else {
		c.lines = append(c.lines, model.CartLine{
			ProductID: productID,
			Name:      name,
			UnitPrice: price,
			Unit:      unit,
			Quantity:  1,
		})
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	return c.store.Save(ctx, snapshot)
}

// ChangeQuantity は数量にdeltaを加算し、0以下になった明細は削除する。
// 明細がない商品、またはdelta=0の場合は何もしない。
// 加算後の数量がMaxQuantityを超える場合はValidationErrorを返し、明細は変更しない。
func (c *Cart) ChangeQuantity(ctx context.Context, productID int64, delta int) error {
	if delta == 0 {
		return nil
	}

	c.mu.Lock()
	i := c.index(productID)
	if i < 0 {
		c.mu.Unlock()
		return nil
	}
	// 加算前に比較してintのオーバーフローを避ける
	switch q := c.lines[i].Quantity; {
	case delta <= -q:
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	case delta > MaxQuantity-q:
		c.mu.Unlock()
		return newQuantityLimitError()
	default:
		c.lines[i].Quantity = q + delta
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	return c.store.Save(ctx, snapshot)
}

// Totals は数量の合計と金額の合計を返す。
func (c *Cart) Totals() model.CartTotals {
	c.mu.Lock()
	defer c.mu.Unlock()

	totals := model.CartTotals{Amount: decimal.Zero}
	for _, l := range c.lines {
		totals.ItemCount += l.Quantity
		totals.Amount = totals.Amount.Add(l.Subtotal())
	}
	return totals
}

// Clear はカートを空にして永続化する。
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()

	return c.store.Save(ctx, []model.CartLine{})
}

// Lines は追加順の明細のコピーを返す。
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Line は指定商品の明細を返す。
func (c *Cart) Line(productID int64) (model.CartLine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return model.CartLine{}, false
}

// IsEmpty は明細がないかを返す。
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func newQuantityLimitError() *model.ValidationError {
	return &model.ValidationError{
		Field:   "quantity",
		Message: fmt.Sprintf("quantity must not exceed %d", MaxQuantity),
	}
}

func (c *Cart) index(productID int64) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) snapshotLocked() []model.CartLine {
	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}
