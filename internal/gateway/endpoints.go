package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/freshmart/internal/model"
)

// Categories はGET /categories を呼び出す。
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	if err := c.Call(ctx, http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Products はGET /products を呼び出す。
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	if err := c.Call(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IssueToken はPOST /token でアクセストークンを取得する。
func (c *Client) IssueToken(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var out model.TokenResponse
	if err := c.PostForm(ctx, "/token", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser はGET /users/me を呼び出す。
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.Call(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register はPOST /register を呼び出す。
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	var out model.User
	if err := c.Call(ctx, http.MethodPost, "/register", reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddToServerCart はPOST /cart/add で1明細をサーバー側カートへ加算する。
func (c *Client) AddToServerCart(ctx context.Context, productID int64, quantity int) error {
	body := struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}{productID, quantity}
	return c.Call(ctx, http.MethodPost, "/cart/add", body, nil)
}

// ServerCart はGET /cart を呼び出す。
func (c *Client) ServerCart(ctx context.Context) (*model.ServerCart, error) {
	var out model.ServerCart
	if err := c.Call(ctx, http.MethodGet, "/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder はPOST /orders を呼び出す。
func (c *Client) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	var out model.Order
	if err := c.Call(ctx, http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orders はGET /orders を呼び出す。
func (c *Client) Orders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	if err := c.Call(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Order はGET /orders/{id} を呼び出す。
func (c *Client) Order(ctx context.Context, orderID int64) (*model.Order, error) {
	var out model.Order
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentQR はGET /orders/{id}/qr-code を呼び出す。
func (c *Client) PaymentQR(ctx context.Context, orderID int64) (*model.PaymentQR, error) {
	var out model.PaymentQR
	if err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/qr-code", orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePrice はPUT /products/{id}/price を呼び出す。
func (c *Client) UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) (*model.Product, error) {
	body := struct {
		Price decimal.Decimal `json:"price"`
	}{price}

	var out model.Product
	if err := c.Call(ctx, http.MethodPut, fmt.Sprintf("/products/%d/price", productID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddToWishlist はPOST /wishlist/add を呼び出す。
func (c *Client) AddToWishlist(ctx context.Context, productID int64) (*model.WishlistItem, error) {
	body := struct {
		ProductID int64 `json:"product_id"`
	}{productID}

	var out model.WishlistItem
	if err := c.Call(ctx, http.MethodPost, "/wishlist/add", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUserWithToken は指定トークンでGET /users/me を呼び出す。
func (c *Client) CurrentUserWithToken(ctx context.Context, token string) (*model.User, error) {
	return c.WithToken(token).CurrentUser(ctx)
}
