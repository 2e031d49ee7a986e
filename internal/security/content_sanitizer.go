// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はプロフィールと職歴の入力テキストをサニタイズする。
// 氏名・役職・会社名などの1行項目はタグを一切許可せずプレーンテキスト化し、
// 自己紹介と職務内容は許可リストベースのポリシーで最小限の書式だけを残す。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// フォーム層がドラフトをストアへ渡す前に使用する。
type TextSanitizer interface {
	// PlainText は全てのHTMLタグを除去したプレーンテキストを返す。前後の空白も除去する。
	PlainText(s string) string

	// RichText は自己紹介・職務内容向けに最小限の書式タグだけを残したHTMLを返す。
	// 許可タグ: p, br, ul, ol, li, strong, em, a（hrefはhttpsのみ）。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	RichText(s string) string
}

type textSanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	rich.AllowAttrs("href").OnElements("a")
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)
	rich.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &textSanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// PlainText はタグを除去し、エスケープされた実体参照を元の文字に戻す。
// 出力はHTMLとしてではなくテキストとして扱われる前提。
func (s *textSanitizer) PlainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(in)))
}

// RichText は許可リストに含まれない要素と属性を除去する。
func (s *textSanitizer) RichText(in string) string {
	return strings.TrimSpace(s.rich.Sanitize(in))
}
