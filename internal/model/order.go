// Package model はドメインモデルを定義する。
package model

import "github.com/shopspring/decimal"

// OrderStatus はサーバー側注文の状態。
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order はPOST /orders が返す注文結果。クライアントは表示のみを行う。
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status,omitempty"`
	PaymentStatus   string          `json:"payment_status,omitempty"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// OrderRequest はPOST /orders のリクエストボディ。
type OrderRequest struct {
	DeliveryAddress string `json:"delivery_address"`
	Notes           string `json:"notes"`
}

// PaymentQR はGET /orders/{id}/qr-code が返す支払い用QRコード情報。
// Imageはdata: URIまたは画像URL。
type PaymentQR struct {
	Image        string          `json:"qr_code_image"`
	OrderNumber  string          `json:"order_number"`
	Amount       decimal.Decimal `json:"amount"`
	Instructions string          `json:"payment_instructions"`
}
