package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkedout/internal/api"
	"github.com/hitoshi/linkedout/internal/model"
	"github.com/hitoshi/linkedout/internal/query"
	"github.com/hitoshi/linkedout/internal/store"
)

// DirectoryStore はハンドラーが必要とするストアの操作。
// *store.Store が実装する。
type DirectoryStore interface {
	FetchAllUsers(ctx context.Context) error
	LoadUser(ctx context.Context, id string) (model.User, error)
	CreateUser(ctx context.Context, draft model.UserDraft) (model.User, error)
	UpdateUser(ctx context.Context, id string, draft model.UserDraft) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
	CreateExperience(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error)
	UpdateExperience(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error)
	DeleteExperience(ctx context.Context, experience model.Experience) error

	Snapshot() store.State
	UserByID(id string) (model.User, bool)
	ExperienceByID(id string) (model.Experience, bool)
}

// DraftValidator はドラフトの検証・正規化を行うインターフェース。
// *form.Validator が実装する。
type DraftValidator interface {
	UserDraft(in model.UserDraft) (model.UserDraft, error)
	ExperienceDraft(in model.ExperienceDraft) (model.ExperienceDraft, error)
}

// FilterCompiler はユーザー一覧のフィルタ式をコンパイルするインターフェース。
type FilterCompiler interface {
	Compile(source string) (*query.Filter, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	store     DirectoryStore
	validator DraftValidator
	filters   FilterCompiler
	now       func() time.Time
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(s DirectoryStore, validator DraftValidator, filters FilterCompiler) *UserHandler {
	return &UserHandler{
		store:     s,
		validator: validator,
		filters:   filters,
		now:       time.Now,
	}
}

// userListResponse はユーザー一覧のAPIレスポンス。
// status と error はユーザー一覧取得のライフサイクルを表す。
type userListResponse struct {
	Status model.FetchStatus `json:"status"`
	Error  *string           `json:"error"`
	Users  []userResponse    `json:"users"`
}

// userResponse はユーザー情報に表示用の派生項目を加えたAPIレスポンス。
type userResponse struct {
	model.User
	FullName        string               `json:"fullName"`
	Age             int                  `json:"age"`
	CurrentPosition string               `json:"currentPosition"`
	WorkExperiences []experienceResponse `json:"workExperiences"`
}

// experienceResponse は職歴に在籍期間ラベルを加えたAPIレスポンス。
type experienceResponse struct {
	model.Experience
	Period string `json:"period"`
}

// ListUsers はキャッシュ済みのユーザー一覧を返す。
// filterクエリが指定された場合は式に一致するユーザーだけを返す。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	state := h.store.Snapshot()
	users := state.Users()

	if src := r.URL.Query().Get("filter"); src != "" {
		f, err := h.filters.Compile(src)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		users, err = f.Apply(users, h.now())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, h.toUserListResponse(state, users))
}

// RefreshUsers はRepositoryから全ユーザーを取得し直し、未キャッシュのユーザーを追加する。
// 取得に失敗した場合もストアの状態（status=failed）は更新される。
// POST /api/users/refresh
func (h *UserHandler) RefreshUsers(w http.ResponseWriter, r *http.Request) {
	if err := h.store.FetchAllUsers(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	state := h.store.Snapshot()
	writeJSON(w, http.StatusOK, h.toUserListResponse(state, state.Users()))
}

// GetUser はユーザー詳細を返す。未キャッシュの場合はRepositoryから取得してキャッシュする。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if u, ok := h.store.UserByID(userID); ok {
		writeJSON(w, http.StatusOK, h.toUserResponse(u))
		return
	}

	u, err := h.store.LoadUser(r.Context(), userID)
	if err != nil {
		if reqErr, ok := api.AsRequestError(err); ok && reqErr.NotFound() {
			writeAPIErrorResponse(w, r, http.StatusNotFound, model.NewUserNotFoundError(userID))
			return
		}
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toUserResponse(u))
}

// CreateUser はユーザーを作成する。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserDraft
	if !decodeJSON(w, r, &req) {
		return
	}

	draft, err := h.validator.UserDraft(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	created, err := h.store.CreateUser(r.Context(), draft)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toUserResponse(created))
}

// UpdateUser はユーザーのスカラー項目を更新する。職歴は変更しない。
// PUT /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req model.UserDraft
	if !decodeJSON(w, r, &req) {
		return
	}

	draft, err := h.validator.UserDraft(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	updated, err := h.store.UpdateUser(r.Context(), userID, draft)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// キャッシュ済みであれば職歴付きの値を返す
	if cached, ok := h.store.UserByID(updated.ID); ok {
		updated = cached
	}
	writeJSON(w, http.StatusOK, h.toUserResponse(updated))
}

// DeleteUser はユーザーを職歴ごと削除する。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.store.DeleteUser(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

func (h *UserHandler) toUserListResponse(state store.State, users []model.User) userListResponse {
	resp := userListResponse{
		Status: state.Status,
		Users:  make([]userResponse, 0, len(users)),
	}
	if state.Error != "" {
		msg := state.Error
		resp.Error = &msg
	}
	for _, u := range users {
		resp.Users = append(resp.Users, h.toUserResponse(u))
	}
	return resp
}

// toUserResponse は表示用の派生項目を計算する。職歴は開始日の新しい順に並べる。
func (h *UserHandler) toUserResponse(u model.User) userResponse {
	sorted := model.SortExperiences(u.WorkExperiences)
	exps := make([]experienceResponse, 0, len(sorted))
	for _, e := range sorted {
		exps = append(exps, toExperienceResponse(e))
	}
	return userResponse{
		User:            u,
		FullName:        u.FullName(),
		Age:             u.Age(h.now()),
		CurrentPosition: u.CurrentPosition(),
		WorkExperiences: exps,
	}
}

func toExperienceResponse(e model.Experience) experienceResponse {
	return experienceResponse{
		Experience: e,
		Period:     e.PeriodLabel(),
	}
}
