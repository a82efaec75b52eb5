// Package model はドメインモデルを定義する。
package model

import "github.com/shopspring/decimal"

// Category は商品カテゴリを表す。
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Product はサーバーが所有するカタログエントリ。
// クライアントは読み取り専用のスナップショットとして保持する。
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Unit          string          `json:"unit"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
	IsOrganic     bool            `json:"is_organic"`
	CategoryID    int64           `json:"category_id"`
	Category      *Category       `json:"category,omitempty"`
	Origin        string          `json:"origin,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
}

// CategoryName はカテゴリ名を返す。カテゴリ未設定の場合は空文字列。
func (p *Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}
