package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/linkedout/internal/api"
	"github.com/hitoshi/linkedout/internal/middleware"
	"github.com/hitoshi/linkedout/internal/model"
)

// errInvalidRequest はリクエストボディを解析できなかった場合のエラー。
var errInvalidRequest = &model.APIError{
	Code:     "INVALID_REQUEST",
	Message:  "リクエストボディの解析に失敗しました。",
	Category: "validation",
	Action:   "正しいJSON形式でリクエストしてください。",
}

// maxJSONBodyBytes はJSONリクエストボディの上限サイズ。
const maxJSONBodyBytes = 1 << 20

// decodeJSON はリクエストボディをvにデコードする。未知のフィールドは拒否する。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, errInvalidRequest)
		return false
	}
	return true
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	middleware.WriteError(w, r, statusCode, apiErr)
}

// handleServiceError はストア・Repositoryから返されたエラーを適切なHTTPステータスコードに変換する。
// Repositoryの4xxはそのままのステータスで返し、通信エラーと5xxは502として返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if reqErr, ok := api.AsRequestError(err); ok {
		status := http.StatusBadGateway
		if reqErr.StatusCode >= 400 && reqErr.StatusCode < 500 {
			status = reqErr.StatusCode
		}
		slog.WarnContext(r.Context(), "repository request failed",
			slog.String("op", reqErr.Op),
			slog.Int("upstream_status", reqErr.StatusCode),
			slog.String("error", reqErr.Message),
		)
		writeAPIErrorResponse(w, r, status, model.NewRepositoryError(reqErr.Message))
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, r, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w, r)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound, model.ErrCodeExperienceNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidation, model.ErrCodeInvalidImageURL, model.ErrCodeInvalidFilter, errInvalidRequest.Code:
		return http.StatusBadRequest
	case model.ErrCodeImageTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeRepository, model.ErrCodeUploadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
