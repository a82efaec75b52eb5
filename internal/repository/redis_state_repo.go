package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateRepo はRedisを使用したクライアント状態リポジトリ。
// 各キーにTTLを設定し、アクセスのないクライアントの状態は自動的に失効する。
type RedisStateRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateRepo はRedisStateRepoを生成する。
// ttlが0以下の場合は失効させない。
func NewRedisStateRepo(client *redis.Client, ttl time.Duration) *RedisStateRepo {
	return &RedisStateRepo{client: client, ttl: ttl}
}

// Get は指定クライアント・キーの値を取得する。存在しない場合はnilを返す。
func (r *RedisStateRepo) Get(ctx context.Context, clientID, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, stateKey(clientID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Put は値を保存し、TTLを更新する。
func (r *RedisStateRepo) Put(ctx context.Context, clientID, key string, value []byte) error {
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, stateKey(clientID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete は値を削除する。
func (r *RedisStateRepo) Delete(ctx context.Context, clientID, key string) error {
	if err := r.client.Del(ctx, stateKey(clientID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (r *RedisStateRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func stateKey(clientID, key string) string {
	return fmt.Sprintf("freshmart:state:%s:%s", clientID, key)
}

var _ StateRepository = (*RedisStateRepo)(nil)
