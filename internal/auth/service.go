// Package auth はリモートAPIに対するログイン・会員登録・ログアウトのフローを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/freshmart/internal/model"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// API は認証フローが使うリモートAPI操作。*gateway.Client が実装する。
type API interface {
	IssueToken(ctx context.Context, username, password string) (*model.TokenResponse, error)
	CurrentUserWithToken(ctx context.Context, token string) (*model.User, error)
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
}

// SessionWriter はセッションの書き込み先。*session.Store が実装する。
type SessionWriter interface {
	Set(ctx context.Context, token string, user *model.User) error
	Clear(ctx context.Context) error
}

// Service は1クライアント分の認証フローを実行する。
type Service struct {
	api     API
	session SessionWriter
	logger  *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api API, session SessionWriter, logger *slog.Logger) *Service {
	return &Service{api: api, session: session, logger: logger}
}

// Login はトークンを取得し、そのトークンでプロフィールを取得した後に
// トークンとユーザーを1回の書き込みでセッションに保存する。
// 途中で失敗した場合、既存のセッションは変更しない。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, &model.ValidationError{Field: "username", Message: "username and password are required"}
	}

	tok, err := s.api.IssueToken(ctx, username, password)
	if err != nil {
		return nil, err
	}

	user, err := s.api.CurrentUserWithToken(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	if err := s.session.Set(ctx, tok.AccessToken, user); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("ログインしました",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Register は入力を事前検証してから会員登録し、続けて自動ログインする。
func (s *Service) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)

	if err := validateRegistration(reg); err != nil {
		return nil, err
	}

	if _, err := s.api.Register(ctx, reg); err != nil {
		return nil, err
	}

	s.logger.Info("会員登録しました", slog.String("username", reg.Username))
	return s.Login(ctx, reg.Username, reg.Password)
}

// Logout はセッションのみを破棄する。カートは保持する。
func (s *Service) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

func validateRegistration(reg model.Registration) error {
	if utf8.RuneCountInString(reg.Username) < minUsernameLength {
		return &model.ValidationError{Field: "username", Message: fmt.Sprintf("must be at least %d characters", minUsernameLength)}
	}
	if utf8.RuneCountInString(reg.Password) < minPasswordLength {
		return &model.ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if reg.Email == "" {
		return &model.ValidationError{Field: "email", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return &model.ValidationError{Field: "email", Message: "email is invalid"}
	}
	return nil
}
