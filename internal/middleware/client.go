// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ClientCookieName はブラウザを識別するクライアントIDを保持するCookieの名前。
const ClientCookieName = "freshmart_client"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// clientIDIssuedContextKey はこのリクエストでクライアントIDを新規発行したかを格納するキー。
var clientIDIssuedContextKey = contextKey("client_id_issued")

// ClientCookieConfig はクライアントID Cookieの設定。
type ClientCookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// NewClientIDMiddleware はCookieからクライアントIDを読み取り、リクエストコンテキストに注入する。
// Cookieがない、またはUUIDとして不正な場合は新しいIDを発行してCookieに設定する。
// ログインの有無にかかわらずすべてのリクエストを通す。
func NewClientIDMiddleware(config ClientCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			issued := false
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				clientID = uuid.NewString()
				issued = true
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			recordClientID(r.Context(), clientID)
			ctx := ContextWithClientID(r.Context(), clientID)
			if issued {
				ctx = context.WithValue(ctx, clientIDIssuedContextKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントIDミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}

// ClientIDIssued はクライアントIDがこのリクエストで新規発行された（有効なCookieがなかった）かを返す。
func ClientIDIssued(ctx context.Context) bool {
	issued, _ := ctx.Value(clientIDIssuedContextKey).(bool)
	return issued
}
