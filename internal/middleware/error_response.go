package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/freshmart/internal/model"
)

// ミドルウェアが返すエラーコード
const (
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeCSRFFailed     = "CSRF_VALIDATION_FAILED"
	ErrCodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	ErrCodeClientRequired = "CLIENT_ID_REQUIRED"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteErrorResponseWithExtra(w, statusCode, apiErr, nil)
}

// WriteErrorResponseWithExtra は統一フォーマットに追加フィールドを加えて書き込む。
// 部分同期の商品IDなど、エラー種別固有の情報を返すために使う。
func WriteErrorResponseWithExtra(w http.ResponseWriter, statusCode int, apiErr *model.APIError, extra map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if len(extra) == 0 {
		json.NewEncoder(w).Encode(body)
		return
	}

	merged := map[string]any{
		"code":     body.Code,
		"message":  body.Message,
		"category": body.Category,
		"action":   body.Action,
	}
	for k, v := range extra {
		if _, reserved := merged[k]; !reserved {
			merged[k] = v
		}
	}
	json.NewEncoder(w).Encode(merged)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

func writeCSRFError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから、もう一度お試しください。",
	})
}

func writeClientRequired(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     ErrCodeClientRequired,
		Message:  "クライアントIDがありません。",
		Category: "system",
		Action:   "Cookieを有効にしてから、ページを再読み込みしてください。",
	})
}
