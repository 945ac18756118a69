// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizerService はユニットの説明文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// 説明文はプレーンテキストとして扱うため、bluemondayの
// 厳格ポリシーで全てのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService はユニット説明文のサニタイズ機能のインターフェースを定義する。
// ユニット作成時の説明文保存前に使用される。
type DescriptionSanitizerService interface {
	// Sanitize は説明文から全てのHTMLタグを除去してプレーンテキストを返す。
	// 前後の空白も除去する。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// descriptionSanitizer はDescriptionSanitizerServiceの実装。
// bluemondayの厳格ポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
// 説明文はマークアップを一切許可しないため、StrictPolicy（全タグ除去）を使用する。
func NewDescriptionSanitizer() *descriptionSanitizer {
	return &descriptionSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は説明文から全てのHTMLタグを除去してプレーンテキストを返す。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
