package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStateRepo はPostgreSQLを使用したクライアント状態リポジトリ。
type PostgresStateRepo struct {
	db *sql.DB
}

// NewPostgresStateRepo はPostgresStateRepoを生成する。
func NewPostgresStateRepo(db *sql.DB) *PostgresStateRepo {
	return &PostgresStateRepo{db: db}
}

// Get は指定クライアント・キーの値を取得する。存在しない場合はnilを返す。
func (r *PostgresStateRepo) Get(ctx context.Context, clientID, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM client_states WHERE client_id = $1 AND state_key = $2`,
		clientID, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client state: %w", err)
	}

	return value, nil
}

// Put は値をUPSERTする。updated_atは保存時刻に更新される。
func (r *PostgresStateRepo) Put(ctx context.Context, clientID, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_states (client_id, state_key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (client_id, state_key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		clientID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put client state: %w", err)
	}
	return nil
}

// Delete は値を削除する。
func (r *PostgresStateRepo) Delete(ctx context.Context, clientID, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_states WHERE client_id = $1 AND state_key = $2`,
		clientID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete client state: %w", err)
	}
	return nil
}

// Ping はデータベースへの疎通を確認する。
func (r *PostgresStateRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// compile-time interface check
var _ StateRepository = (*PostgresStateRepo)(nil)
