package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/linkedout/internal/model"
	"github.com/hitoshi/linkedout/internal/requestid"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// RequestIDはX-Request-IDヘッダーと同じ値で、アクセスログとの突き合わせに使う。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	RequestID string `json:"requestId,omitempty"`
}

// NewErrorResponseBody はAPIErrorとリクエストからレスポンスボディを組み立てる。
func NewErrorResponseBody(r *http.Request, apiErr *model.APIError) ErrorResponseBody {
	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if r != nil {
		body.RequestID, _ = requestid.FromContext(r.Context())
	}
	return body
}

// WriteError はハンドラーとミドルウェアで共通のエラーレスポンスを書き込む。
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(NewErrorResponseBody(r, apiErr))
}

// WriteInternalServerError は500の統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusInternalServerError, model.NewInternalError())
}
