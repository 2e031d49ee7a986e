package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/linkedout/internal/model"
)

// Pinger は上流Repositoryの疎通確認を行うインターフェース。
// *api.Client が実装する。
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingTimeout は疎通確認のタイムアウト。
const pingTimeout = 3 * time.Second

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	store  DirectoryStore
	pinger Pinger
}

// NewHealthHandler はHealthHandlerを生成する。pingerがnilの場合は上流の確認を省略する。
func NewHealthHandler(s DirectoryStore, pinger Pinger) *HealthHandler {
	return &HealthHandler{store: s, pinger: pinger}
}

// healthResponse はヘルスチェックのAPIレスポンス。
type healthResponse struct {
	Status            string            `json:"status"`
	Upstream          string            `json:"upstream"`
	FetchStatus       model.FetchStatus `json:"fetchStatus"`
	CachedUsers       int               `json:"cachedUsers"`
	CachedExperiences int               `json:"cachedExperiences"`
}

// Health はプロセスと上流Repositoryの状態を返す。上流に到達できない場合は503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.store.Snapshot()
	resp := healthResponse{
		Status:            "ok",
		Upstream:          "skipped",
		FetchStatus:       state.Status,
		CachedUsers:       state.Len(),
		CachedExperiences: state.ExperienceCount(),
	}

	status := http.StatusOK
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "upstream health check failed", slog.String("error", err.Error()))
			resp.Status = "degraded"
			resp.Upstream = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Upstream = "ok"
		}
	}
	writeJSON(w, status, resp)
}
