// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/freshmart/internal/checkout"
	"github.com/hitoshi/freshmart/internal/middleware"
	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/payment"
)

// handleServiceError はドメイン層から返されたエラーを統一エラーフォーマットのレスポンスに変換する。
// SyncErrorはRequestErrorを包むため、先に判定する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		syncErr  *checkout.SyncError
		valErr   *model.ValidationError
		authzErr *model.AuthorizationError
		reqErr   *model.RequestError
		apiErr   *model.APIError
	)

	switch {
	case errors.As(err, &syncErr):
		logger.Warn("カート同期が部分的に失敗しました", slog.String("error", err.Error()))
		middleware.WriteErrorResponseWithExtra(w, http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeCartSyncPartial,
			Message:  fmt.Sprintf("商品 %d のサーバー側カートへの追加に失敗しました: %s", syncErr.Failed.ProductID, upstreamMessage(syncErr.Err)),
			Category: "checkout",
			Action:   "カートの内容を確認してから、もう一度チェックアウトしてください。",
		}, map[string]any{
			"synced_product_ids":  syncErr.SyncedProductIDs(),
			"pending_product_ids": syncErr.PendingProductIDs(),
		})

	case errors.As(err, &valErr):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  valErr.Error(),
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})

	case errors.As(err, &authzErr):
		if authzErr.LoginRequired {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, loginRequired(authzErr.Message))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
			Code:     model.ErrCodeAdminRequired,
			Message:  authzErr.Message,
			Category: "auth",
			Action:   "管理者アカウントでログインしてください。",
		})

	case errors.As(err, &reqErr):
		status, apiErr := mapRequestError(reqErr)
		if status >= http.StatusInternalServerError {
			logger.Error("リモートAPIの呼び出しに失敗しました", slog.String("error", err.Error()))
		}
		middleware.WriteErrorResponse(w, status, apiErr)

	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("リクエストが中断されました", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     model.ErrCodeUpstreamFailed,
			Message:  "処理が中断されました。",
			Category: "upstream",
			Action:   "もう一度お試しください。",
		})

	case errors.Is(err, payment.ErrUnsupportedImage), errors.Is(err, payment.ErrImageUnavailable):
		logger.Warn("QRコード画像を取得できませんでした", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeUpstreamFailed,
			Message:  "QRコード画像を表示できません。",
			Category: "upstream",
			Action:   "支払い情報を再取得してください。",
		})

	default:
		logger.Error("内部エラーが発生しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// mapRequestError はリモートAPIのエラーをクライアント向けのステータスとエラー内容に変換する。
// 401はトークン拒否でセッションが破棄済みのため、再ログインを促す。
func mapRequestError(e *model.RequestError) (int, *model.APIError) {
	switch {
	case e.IsTransport():
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeUpstreamFailed,
			Message:  e.Message,
			Category: "upstream",
			Action:   "ストアのサーバーに接続できません。時間をおいて再度お試しください。",
		}
	case e.Status == http.StatusUnauthorized:
		return http.StatusUnauthorized, loginRequired(e.Message)
	case e.Status == http.StatusForbidden:
		return http.StatusForbidden, &model.APIError{
			Code:     model.ErrCodeAdminRequired,
			Message:  e.Message,
			Category: "auth",
			Action:   "権限のあるアカウントでログインしてください。",
		}
	case e.Status >= 400 && e.Status < 500:
		return e.Status, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  e.Message,
			Category: "validation",
			Action:   "入力内容を確認してください。",
		}
	default:
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeUpstreamFailed,
			Message:  e.Message,
			Category: "upstream",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeLoginRequired:
		return http.StatusUnauthorized
	case model.ErrCodeAdminRequired:
		return http.StatusForbidden
	case model.ErrCodeUpstreamFailed, model.ErrCodeCartSyncPartial:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func loginRequired(message string) *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeLoginRequired,
		Message:  message,
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

func upstreamMessage(err error) string {
	var reqErr *model.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return err.Error()
}
