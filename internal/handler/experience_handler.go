package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkedout/internal/model"
)

// ExperienceHandler は職歴管理のHTTPハンドラー。
type ExperienceHandler struct {
	store     DirectoryStore
	validator DraftValidator
}

// NewExperienceHandler はExperienceHandlerを生成する。
func NewExperienceHandler(s DirectoryStore, validator DraftValidator) *ExperienceHandler {
	return &ExperienceHandler{
		store:     s,
		validator: validator,
	}
}

// CreateExperience はユーザーに職歴を追加する。
// 所属ユーザーはパスのIDで決まり、ボディのuserIdは無視する。
// POST /api/users/{id}/experiences
func (h *ExperienceHandler) CreateExperience(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req model.ExperienceDraft
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UserID = userID

	draft, err := h.validator.ExperienceDraft(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	created, err := h.store.CreateExperience(r.Context(), draft)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if created.UserID == "" {
		created.UserID = draft.UserID
	}
	writeJSON(w, http.StatusCreated, toExperienceResponse(created))
}

// UpdateExperience は職歴を更新する。
// ボディにuserIdが無い場合はキャッシュ済みの職歴から補う。
// PUT /api/experiences/{id}
func (h *ExperienceHandler) UpdateExperience(w http.ResponseWriter, r *http.Request) {
	experienceID := chi.URLParam(r, "id")

	var req model.ExperienceDraft
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		if cached, ok := h.store.ExperienceByID(experienceID); ok {
			req.UserID = cached.UserID
		}
	}

	draft, err := h.validator.ExperienceDraft(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	updated, err := h.store.UpdateExperience(r.Context(), experienceID, draft)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExperienceResponse(updated))
}

// DeleteExperience は職歴を削除する。
// 未キャッシュの職歴もRepository上では削除し、ストアへの反映だけを省略する。
// DELETE /api/experiences/{id}
func (h *ExperienceHandler) DeleteExperience(w http.ResponseWriter, r *http.Request) {
	experienceID := chi.URLParam(r, "id")

	target, ok := h.store.ExperienceByID(experienceID)
	if !ok {
		target = model.Experience{ID: experienceID}
	}

	if err := h.store.DeleteExperience(r.Context(), target); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
