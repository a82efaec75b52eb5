// Package model はドメインモデルを定義する。
package model

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleCustomer は一般購入者。APIのワイヤ表現は "user"。
	RoleCustomer Role = "user"
	// RoleAdmin は価格編集などの管理操作が可能な管理者。
	RoleAdmin Role = "admin"
)

// User はGET /users/me が返すユーザープロフィールを表す。
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

// IsAdmin はユーザーが管理者ロールを持つかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session はクライアントが保持する認証情報。
// TokenとUserは常に同時に設定・破棄される。どちらか一方のみの状態は未ログインとして扱う。
type Session struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// Authenticated はトークンとユーザーの両方が揃っているかを返す。
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Registration はPOST /register のリクエストボディ。
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// TokenResponse はPOST /token のレスポンス。
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserRole    Role   `json:"user_role"`
}
