// Package repository はクライアント状態の永続化インターフェースと実装を提供する。
// ブラウザのlocalStorageに相当するキー・バリューストアを、client_idごとに分離して保持する。
package repository

import "context"

// 定義済みの状態キー
const (
	// KeySession は認証トークンとユーザープロフィールを1レコードで保持するキー。
	KeySession = "session"
	// KeyCart はカート明細を保持するキー。
	KeyCart = "cart"
)

// StateRepository はクライアント状態の永続化インターフェース。
// 値はJSONエンコード済みのバイト列として扱い、解釈は呼び出し側に委ねる。
type StateRepository interface {
	// Get は指定クライアント・キーの値を取得する。存在しない場合はnilを返す。
	Get(ctx context.Context, clientID, key string) ([]byte, error)

	// Put は値を上書き保存する。
	Put(ctx context.Context, clientID, key string, value []byte) error

	// Delete は値を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, clientID, key string) error

	// Ping はバックエンドへの疎通を確認する。ヘルスチェック用。
	Ping(ctx context.Context) error
}
