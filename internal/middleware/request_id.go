package middleware

import (
	"net/http"

	"github.com/hitoshi/linkedout/internal/requestid"
)

// NewRequestIDMiddleware はリクエストごとにIDを割り当てるミドルウェアを返す。
// 受信したX-Request-IDがUUIDであれば引き継ぎ、そうでなければ新しく生成する。
// IDはリクエストコンテキストとレスポンスヘッダーに設定され、上流APIの呼び出しにも伝播する。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestid.Normalize(r.Header.Get(requestid.Header))
			w.Header().Set(requestid.Header, id)
			ctx := requestid.WithID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
