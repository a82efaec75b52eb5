package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/freshmart/internal/middleware"
	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/storefront"
)

const maxRequestBody = 64 << 10

// StateOpener はクライアントごとのアプリケーション状態を開く。*storefront.Factory が実装する。
type StateOpener interface {
	Open(ctx context.Context, clientID string) (*storefront.State, func(), error)
}

// base は各ハンドラーが共有する依存関係。
type base struct {
	states StateOpener
	logger *slog.Logger
}

// withState はクライアントIDに対応するStateを開いてfnを実行する。
// 同一クライアントのリクエストはfnの実行中、直列化される。
func (b *base) withState(w http.ResponseWriter, r *http.Request, fn func(st *storefront.State)) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("client id is missing"))
		return
	}

	st, release, err := b.states.Open(r.Context(), clientID)
	if err != nil {
		b.logger.Error("クライアント状態の読み込みに失敗しました",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, b.logger, err)
		return
	}
	defer release()

	fn(st)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをdstにデコードする。失敗時はエラーレスポンスを書き込みfalseを返す。
// 空ボディはallowEmptyの場合のみ許可する。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
	return false
}

// int64Param はURLパラメータを正の整数として解析する。失敗時はエラーレスポンスを書き込む。
func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}
