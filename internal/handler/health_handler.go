package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger は状態ストアへの疎通を確認する。repository.StateRepository が実装する。
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 3 * time.Second

// healthHandler は状態ストアへの疎通を含むヘルスチェックを返す。
// GET /health
func healthHandler(pinger Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				logger.Error("状態ストアへの疎通確認に失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
