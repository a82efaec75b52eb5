package catalogsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/freshmart/internal/catalog"
	"github.com/hitoshi/freshmart/internal/model"
)

// --- モック定義 ---

type mockRefresher struct {
	refreshFunc func(ctx context.Context) (catalog.Snapshot, error)
	calls       atomic.Int32
}

func (m *mockRefresher) RefreshCatalog(ctx context.Context) (catalog.Snapshot, error) {
	m.calls.Add(1)
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx)
	}
	return catalog.Snapshot{Products: []model.Product{{ID: 1}}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock はテスト用の手動クロック。
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// --- テスト ---

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		errors int
		want   time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{5, 8 * time.Minute},
		{6, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.errors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}

func TestRunOnce_Success(t *testing.T) {
	ref := &mockRefresher{}
	s := NewScheduler(ref, discardLogger())

	if !s.RunOnce(context.Background()) {
		t.Fatal("RunOnce がスキップされた")
	}
	if ref.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", ref.calls.Load())
	}
	if s.ConsecutiveErrors() != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", s.ConsecutiveErrors())
	}
}

func TestRunOnce_BacksOffAfterFailure(t *testing.T) {
	fail := true
	ref := &mockRefresher{
		refreshFunc: func(ctx context.Context) (catalog.Snapshot, error) {
			if fail {
				return catalog.Snapshot{}, errors.New("upstream down")
			}
			return catalog.Snapshot{}, nil
		},
	}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewScheduler(ref, discardLogger())
	s.now = clock.Now

	s.RunOnce(context.Background())
	if s.ConsecutiveErrors() != 1 {
		t.Fatalf("ConsecutiveErrors = %d, want 1", s.ConsecutiveErrors())
	}

	// バックオフ期間中はスキップ
	clock.Advance(10 * time.Second)
	if s.RunOnce(context.Background()) {
		t.Error("バックオフ中に再取得が実行された")
	}
	if ref.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", ref.calls.Load())
	}

	// バックオフ経過後は再実行し、成功で連続失敗をリセットする
	fail = false
	clock.Advance(30 * time.Second)
	if !s.RunOnce(context.Background()) {
		t.Fatal("バックオフ経過後に再取得が実行されない")
	}
	if s.ConsecutiveErrors() != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", s.ConsecutiveErrors())
	}
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ref := &mockRefresher{}
	s := NewScheduler(ref, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ref.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ref.calls.Load() != 1 {
		t.Errorf("起動直後の再取得が実行されない: calls = %d", ref.calls.Load())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後もStartが終了しない")
	}
}
