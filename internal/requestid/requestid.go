// Package requestid はリクエストIDの生成とコンテキストへの格納を提供する。
// HTTPミドルウェアで付与したIDを、上流APIへの呼び出しとログに引き継ぐ。
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header はリクエストIDを運ぶHTTPヘッダー名。
const Header = "X-Request-ID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var requestIDContextKey = contextKey("request_id")

// New は新しいリクエストIDを生成する。
func New() string {
	return uuid.NewString()
}

// Normalize は受信したリクエストIDを検証する。
// UUIDとして解析できればその正規形を、できなければ新しいIDを返す。
func Normalize(incoming string) string {
	if incoming == "" {
		return New()
	}
	id, err := uuid.Parse(incoming)
	if err != nil {
		return New()
	}
	return id.String()
}

// WithID はリクエストIDを格納したコンテキストを返す。
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// FromContext はコンテキストからリクエストIDを取得する。
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
