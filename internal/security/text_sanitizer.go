package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はサーバーから受け取った表示用テキストからマークアップを除去する。
// 商品名・説明・カテゴリ名・支払い案内文はすべてプレーンテキストとして扱う。
type TextSanitizer interface {
	Text(s string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
// bluemonday.Policyはゴルーチンセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はすべてのタグを除去し、前後の空白を取り除いたテキストを返す。
// StrictPolicyがエスケープした実体参照は元に戻す（JSONで返すためHTMLエスケープは不要）。
func (s *textSanitizer) Text(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}
