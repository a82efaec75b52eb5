// Package session はクライアントごとの認証セッション（トークンとユーザー）を保持する。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/repository"
)

// ErrIncompleteSession はトークンとユーザーの片方だけを設定しようとした場合のエラー。
var ErrIncompleteSession = errors.New("session requires both token and user")

// Store は1クライアント分のセッションを保持する。
// トークンとユーザーは1つのJSONレコードとして同時に保存・削除する。
type Store struct {
	repo     repository.StateRepository
	clientID string
	logger   *slog.Logger

	mu      sync.RWMutex
	current model.Session
}

// Load は永続化済みのセッションを読み込んでStoreを返す。
// 片方しか揃っていない、または壊れたレコードは未ログインとして扱い、削除する。
func Load(ctx context.Context, repo repository.StateRepository, clientID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{repo: repo, clientID: clientID, logger: logger}

	data, err := repo.Get(ctx, clientID, repository.KeySession)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if data == nil {
		return s, nil
	}

	var persisted model.Session
	if err := json.Unmarshal(data, &persisted); err != nil || !persisted.Authenticated() {
		logger.Warn("不完全なセッションレコードを破棄します",
			slog.String("client_id", clientID),
			slog.Bool("decodable", err == nil),
		)
		if derr := repo.Delete(ctx, clientID, repository.KeySession); derr != nil {
			return nil, fmt.Errorf("failed to delete incomplete session: %w", derr)
		}
		return s, nil
	}

	s.current = persisted
	return s, nil
}

// Get は現在のセッションのコピーを返す。
func (s *Store) Get() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.current
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// Set はトークンとユーザーを同時に設定し、永続化する。
// 永続化に失敗した場合もメモリ上の状態は更新済みのまま、エラーを返す。
func (s *Store) Set(ctx context.Context, token string, user *model.User) error {
	if token == "" || user == nil {
		return ErrIncompleteSession
	}

	u := *user
	next := model.Session{Token: token, User: &u}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	if err := s.repo.Put(ctx, s.clientID, repository.KeySession, data); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Clear はセッションを破棄する。ネットワーク呼び出しは行わない。
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = model.Session{}
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, s.clientID, repository.KeySession); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// IsAdmin はログイン中のユーザーが管理者かを返す。表示制御用の参考値であり、
// 権限の最終判断はリモートAPIが行う。
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Authenticated() && s.current.User.IsAdmin()
}

// Token は現在のBearerトークンを返す。未ログインの場合は空文字列。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Revoke はリモートAPIがトークンを拒否した際に呼ばれ、セッションを破棄する。
func (s *Store) Revoke(ctx context.Context) error {
	s.logger.Info("リモートAPIがセッショントークンを拒否しました", slog.String("client_id", s.clientID))
	return s.Clear(ctx)
}
