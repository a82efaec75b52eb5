// Package model はドメインモデルを定義する。
package model

import "github.com/shopspring/decimal"

// CartLine はカートの1明細。
// UnitPriceは追加時点の価格スナップショットであり、カタログの価格変更には追従しない。
type CartLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Unit      string          `json:"unit"`
	Quantity  int             `json:"quantity"`
}

// Subtotal は明細の小計（単価 × 数量）を返す。
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotals はカートの集計値。
type CartTotals struct {
	ItemCount int             `json:"item_count"`
	Amount    decimal.Decimal `json:"amount"`
}

// ServerCartItem はGET /cart が返すサーバー側カートの1明細。
type ServerCartItem struct {
	ID        int64    `json:"id"`
	ProductID int64    `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// ServerCart はGET /cart のレスポンス。
type ServerCart struct {
	Items       []ServerCartItem `json:"items"`
	TotalItems  int              `json:"total_items"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
}

// WishlistItem はPOST /wishlist/add が返すウィッシュリスト項目。
type WishlistItem struct {
	ID        int64    `json:"id"`
	ProductID int64    `json:"product_id"`
	Product   *Product `json:"product,omitempty"`
}
