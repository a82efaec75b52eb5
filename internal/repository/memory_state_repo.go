package repository

import (
	"context"
	"sync"
)

// MemoryStateRepo はプロセス内メモリにクライアント状態を保持するリポジトリ。
// 開発用バックエンド（STATE_BACKEND=memory）およびテストで使用する。
type MemoryStateRepo struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStateRepo はMemoryStateRepoを生成する。
func NewMemoryStateRepo() *MemoryStateRepo {
	return &MemoryStateRepo{values: make(map[string][]byte)}
}

// Get は値のコピーを返す。存在しない場合はnilを返す。
func (r *MemoryStateRepo) Get(_ context.Context, clientID, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[clientID+"|"+key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put は値のコピーを保存する。
func (r *MemoryStateRepo) Put(_ context.Context, clientID, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	r.values[clientID+"|"+key] = v
	return nil
}

// Delete は値を削除する。
func (r *MemoryStateRepo) Delete(_ context.Context, clientID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.values, clientID+"|"+key)
	return nil
}

// Ping は常に成功する。
func (r *MemoryStateRepo) Ping(_ context.Context) error {
	return nil
}

// Len は保持しているエントリ数を返す。テスト用。
func (r *MemoryStateRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

var _ StateRepository = (*MemoryStateRepo)(nil)
