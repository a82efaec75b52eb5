package wishlist

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
	addFunc func(ctx context.Context, productID int64) (*model.WishlistItem, error)
	calls   int
}

func (m *mockAPI) AddToWishlist(ctx context.Context, productID int64) (*model.WishlistItem, error) {
	m.calls++
	if m.addFunc != nil {
		return m.addFunc(ctx, productID)
	}
	return &model.WishlistItem{ID: 1, ProductID: productID}, nil
}

type mockSession struct {
	session model.Session
}

func (m mockSession) Get() model.Session { return m.session }

func newService(api API, sess SessionReader) *Service {
	return NewService(api, sess, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var signedIn = mockSession{session: model.Session{Token: "t", User: &model.User{ID: 1}}}

// --- テスト ---

func TestAdd_RequiresLogin(t *testing.T) {
	api := &mockAPI{}
	_, err := newService(api, mockSession{}).Add(context.Background(), 3)

	var ae *model.AuthorizationError
	if !errors.As(err, &ae) || !ae.LoginRequired {
		t.Fatalf("expected login-required error, got %v", err)
	}
	if api.calls != 0 {
		t.Errorf("calls = %d, want 0", api.calls)
	}
}

func TestAdd_Success(t *testing.T) {
	api := &mockAPI{}
	item, err := newService(api, signedIn).Add(context.Background(), 3)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if item.ProductID != 3 || api.calls != 1 {
		t.Errorf("item = %+v, calls = %d", item, api.calls)
	}
}

func TestAdd_AlreadyInWishlist(t *testing.T) {
	api := &mockAPI{addFunc: func(context.Context, int64) (*model.WishlistItem, error) {
		return nil, &model.RequestError{Status: 400, Message: "Item already in wishlist"}
	}}

	_, err := newService(api, signedIn).Add(context.Background(), 3)
	var re *model.RequestError
	if !errors.As(err, &re) || re.Message != "Item already in wishlist" {
		t.Fatalf("err = %v", err)
	}
}

func TestAdd_InvalidProductID(t *testing.T) {
	api := &mockAPI{}
	if _, err := newService(api, signedIn).Add(context.Background(), 0); !model.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if api.calls != 0 {
		t.Errorf("calls = %d, want 0", api.calls)
	}
}
