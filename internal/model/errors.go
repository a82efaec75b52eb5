// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, checkout, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeLoginRequired   = "LOGIN_REQUIRED"
	ErrCodeAdminRequired   = "ADMIN_REQUIRED"
	ErrCodeUpstreamFailed  = "UPSTREAM_FAILED"
	ErrCodeCartSyncPartial = "CART_SYNC_PARTIAL"
	ErrCodeProductNotFound = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
)

// RequestError はリモートAPI呼び出しの失敗を表す（NetworkErrorカテゴリ）。
// HTTPステータスが2xx以外の場合はStatusにそのコードを、
// 通信自体が失敗した場合はStatus=0を設定する。
type RequestError struct {
	Status  int
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// Unwrap は下位のトランスポートエラーを返す。
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsTransport は通信レベルの失敗（レスポンスなし）かを返す。
func (e *RequestError) IsTransport() bool {
	return e.Status == 0
}

// ValidationError はネットワーク呼び出し前に検出したクライアント側の前提条件違反。
type ValidationError struct {
	Field   string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// AuthorizationError は現在のセッションに必要な権限がない場合のエラー。
// LoginRequiredがtrueの場合は未ログインであり、認証画面への誘導が必要。
type AuthorizationError struct {
	LoginRequired bool
	RequiredRole  Role
	Message       string
}

// Error はerrorインターフェースを実装する。
func (e *AuthorizationError) Error() string {
	return "authorization failed: " + e.Message
}

// NewEmptyCartError はカートが空の場合のエラーを生成する。
func NewEmptyCartError() *ValidationError {
	return &ValidationError{Field: "cart", Message: "your cart is empty"}
}

// NewNonPositivePriceError は価格が0以下の場合のエラーを生成する。
func NewNonPositivePriceError() *ValidationError {
	return &ValidationError{Field: "price", Message: "price must be positive"}
}

// NewLoginRequiredError はログインが必要な操作を未ログインで実行した場合のエラーを生成する。
func NewLoginRequiredError(operation string) *AuthorizationError {
	return &AuthorizationError{
		LoginRequired: true,
		Message:       fmt.Sprintf("please sign in to %s", operation),
	}
}

// NewAdminRequiredError は管理者権限が必要な操作のエラーを生成する。
func NewAdminRequiredError() *AuthorizationError {
	return &AuthorizationError{
		RequiredRole: RoleAdmin,
		Message:      "admin access required",
	}
}

// IsValidation はerrがValidationErrorかを返す。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewProductNotFoundError はカタログに存在しない商品を指定した場合のエラーを生成する。
func NewProductNotFoundError(productID int64) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %d", productID),
		Category: "validation",
		Action:   "商品一覧を再読み込みしてから、もう一度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
