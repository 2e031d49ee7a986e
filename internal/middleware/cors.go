package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/hitoshi/linkedout/internal/requestid"
)

// NewCORSMiddleware は許可オリジンのリストに対するCORSミドルウェアを返す。
// オリジン末尾のスラッシュは除去して比較する。
// プリフライトリクエストはgo-chi/corsが応答し、後続のハンドラーには渡さない。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestid.Header},
		ExposedHeaders:   []string{requestid.Header, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
