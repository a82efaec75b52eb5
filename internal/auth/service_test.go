package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/freshmart/internal/model"
)

// --- モック定義 ---

type mockAPI struct {
	issueTokenFunc  func(ctx context.Context, username, password string) (*model.TokenResponse, error)
	currentUserFunc func(ctx context.Context, token string) (*model.User, error)
	registerFunc    func(ctx context.Context, reg model.Registration) (*model.User, error)
	calls           []string
}

func (m *mockAPI) IssueToken(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	m.calls = append(m.calls, "token")
	return m.issueTokenFunc(ctx, username, password)
}

func (m *mockAPI) CurrentUserWithToken(ctx context.Context, token string) (*model.User, error) {
	m.calls = append(m.calls, "users/me")
	return m.currentUserFunc(ctx, token)
}

func (m *mockAPI) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	m.calls = append(m.calls, "register")
	return m.registerFunc(ctx, reg)
}

type mockSession struct {
	setCalls int
	token    string
	user     *model.User
	cleared  bool
	setErr   error
}

func (m *mockSession) Set(_ context.Context, token string, user *model.User) error {
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.token, m.user = token, user
	return nil
}

func (m *mockSession) Clear(_ context.Context) error {
	m.cleared = true
	m.token, m.user = "", nil
	return nil
}

func newAPI() *mockAPI {
	return &mockAPI{
		issueTokenFunc: func(_ context.Context, username, _ string) (*model.TokenResponse, error) {
			return &model.TokenResponse{AccessToken: "tok-" + username, TokenType: "bearer"}, nil
		},
		currentUserFunc: func(_ context.Context, token string) (*model.User, error) {
			return &model.User{ID: 1, Username: token[4:], Role: model.RoleCustomer}, nil
		},
		registerFunc: func(_ context.Context, reg model.Registration) (*model.User, error) {
			return &model.User{ID: 1, Username: reg.Username}, nil
		},
	}
}

func newService(api API, sess SessionWriter) *Service {
	return NewService(api, sess, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- テスト ---

func TestLogin_FetchesProfileWithNewTokenThenSetsOnce(t *testing.T) {
	api := newAPI()
	var seenToken string
	api.currentUserFunc = func(_ context.Context, token string) (*model.User, error) {
		seenToken = token
		return &model.User{ID: 2, Username: "alice", Role: model.RoleAdmin}, nil
	}
	sess := &mockSession{}

	user, err := newService(api, sess).Login(context.Background(), "alice", "password1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if seenToken != "tok-alice" {
		t.Errorf("プロフィール取得に新しいトークンが使われていない: %q", seenToken)
	}
	if sess.setCalls != 1 || sess.token != "tok-alice" || sess.user.Username != "alice" {
		t.Errorf("session = %+v", sess)
	}
	if !user.IsAdmin() {
		t.Error("user should be admin")
	}
}

func TestLogin_TokenRejected_SessionUntouched(t *testing.T) {
	api := newAPI()
	api.issueTokenFunc = func(context.Context, string, string) (*model.TokenResponse, error) {
		return nil, &model.RequestError{Status: 401, Message: "Incorrect username or password"}
	}
	sess := &mockSession{}

	_, err := newService(api, sess).Login(context.Background(), "alice", "wrong")
	var re *model.RequestError
	if !errors.As(err, &re) || re.Message != "Incorrect username or password" {
		t.Fatalf("err = %v", err)
	}
	if sess.setCalls != 0 {
		t.Error("ログイン失敗時にセッションが書き込まれた")
	}
}

func TestLogin_ProfileFails_SessionUntouched(t *testing.T) {
	api := newAPI()
	api.currentUserFunc = func(context.Context, string) (*model.User, error) {
		return nil, &model.RequestError{Message: "Network error"}
	}
	sess := &mockSession{}

	if _, err := newService(api, sess).Login(context.Background(), "alice", "password1"); err == nil {
		t.Fatal("expected error")
	}
	if sess.setCalls != 0 {
		t.Error("プロフィール取得失敗時にセッションが書き込まれた")
	}
}

func TestLogin_EmptyCredentials_NoNetwork(t *testing.T) {
	api := newAPI()
	_, err := newService(api, &mockSession{}).Login(context.Background(), " ", "")
	if !model.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("calls = %v, want none", api.calls)
	}
}

func TestRegister_ValidatesBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		reg   model.Registration
		field string
	}{
		{"ユーザー名が短い", model.Registration{Username: "ab", Password: "password1", Email: "a@example.com"}, "username"},
		{"パスワードが短い", model.Registration{Username: "alice", Password: "short", Email: "a@example.com"}, "password"},
		{"メール未入力", model.Registration{Username: "alice", Password: "password1"}, "email"},
		{"メール不正", model.Registration{Username: "alice", Password: "password1", Email: "not-an-email"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newAPI()
			_, err := newService(api, &mockSession{}).Register(context.Background(), tt.reg)

			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			if len(api.calls) != 0 {
				t.Errorf("calls = %v, want none", api.calls)
			}
		})
	}
}

func TestRegister_AutoLogin(t *testing.T) {
	api := newAPI()
	sess := &mockSession{}

	user, err := newService(api, sess).Register(context.Background(), model.Registration{
		Username: "bob", Password: "password1", Email: "bob@example.com", Address: "2 Side St",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	want := []string{"register", "token", "users/me"}
	if len(api.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", api.calls, want)
	}
	for i := range want {
		if api.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, api.calls[i], want[i])
		}
	}
	if user.Username != "bob" || sess.token != "tok-bob" {
		t.Errorf("user = %+v, session token = %q", user, sess.token)
	}
}

func TestRegister_ServerRejects_NoLogin(t *testing.T) {
	api := newAPI()
	api.registerFunc = func(context.Context, model.Registration) (*model.User, error) {
		return nil, &model.RequestError{Status: 400, Message: "Username already registered"}
	}
	sess := &mockSession{}

	_, err := newService(api, sess).Register(context.Background(), model.Registration{
		Username: "bob", Password: "password1", Email: "bob@example.com",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(api.calls) != 1 || sess.setCalls != 0 {
		t.Errorf("登録失敗後にログインが実行された: calls=%v", api.calls)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	sess := &mockSession{token: "t", user: &model.User{ID: 1}}
	if err := newService(newAPI(), sess).Logout(context.Background()); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if !sess.cleared || sess.token != "" {
		t.Error("セッションが破棄されていない")
	}
}
