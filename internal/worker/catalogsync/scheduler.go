// Package catalogsync はカタログスナップショットの定期再取得を提供する。
// 失敗が続いた場合は指数バックオフで再取得を間引く。
package catalogsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/freshmart/internal/catalog"
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 30 * time.Second
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 10 * time.Minute
)

// Refresher はカタログを再取得する。*storefront.Factory が実装する。
type Refresher interface {
	RefreshCatalog(ctx context.Context) (catalog.Snapshot, error)
}

// Scheduler はカタログ再取得のスケジューリングを行う。
type Scheduler struct {
	refresher Refresher
	logger    *slog.Logger
	now       func() time.Time

	mu                sync.Mutex
	consecutiveErrors int
	nextAttempt       time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(refresher Refresher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30秒、2倍ずつ増加、最大10分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("カタログ再取得スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("カタログ再取得スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はバックオフ中でなければカタログを1回再取得する。
// 再取得を実行した場合はtrueを返す。
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	if now := s.now(); now.Before(s.nextAttempt) {
		s.mu.Unlock()
		s.logger.Debug("バックオフ中のためカタログ再取得をスキップします")
		return false
	}
	s.mu.Unlock()

	snap, err := s.refresher.RefreshCatalog(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.consecutiveErrors++
		delay := CalculateBackoff(s.consecutiveErrors)
		s.nextAttempt = s.now().Add(delay)
		s.logger.Warn("カタログの再取得に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", s.consecutiveErrors),
			slog.Duration("backoff", delay),
		)
		return true
	}

	s.consecutiveErrors = 0
	s.nextAttempt = time.Time{}
	s.logger.Info("カタログを再取得しました",
		slog.Int("product_count", len(snap.Products)),
		slog.Bool("default_categories", snap.DefaultCategories),
	)
	return true
}

// ConsecutiveErrors は連続失敗回数を返す。
func (s *Scheduler) ConsecutiveErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveErrors
}
