package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/linkedout/internal/form"
	"github.com/hitoshi/linkedout/internal/media"
	"github.com/hitoshi/linkedout/internal/model"
	"github.com/hitoshi/linkedout/internal/query"
	"github.com/hitoshi/linkedout/internal/security"
	"github.com/hitoshi/linkedout/internal/store"
)

// --- モック定義 ---

// mockRepository はrepository.Repositoryのモック実装。
type mockRepository struct {
	listUsersFn        func(ctx context.Context) ([]model.User, error)
	getUserFn          func(ctx context.Context, id string) (model.User, error)
	createUserFn       func(ctx context.Context, draft model.UserDraft) (model.User, error)
	updateUserFn       func(ctx context.Context, id string, draft model.UserDraft) (model.User, error)
	deleteUserFn       func(ctx context.Context, id string) error
	createExperienceFn func(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error)
	updateExperienceFn func(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error)
	deleteExperienceFn func(ctx context.Context, id string) error
}

var errNotConfigured = errors.New("mock: not configured")

func (m *mockRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return nil, errNotConfigured
}

func (m *mockRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return model.User{}, errNotConfigured
}

func (m *mockRepository) CreateUser(ctx context.Context, draft model.UserDraft) (model.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, draft)
	}
	return model.User{}, errNotConfigured
}

func (m *mockRepository) UpdateUser(ctx context.Context, id string, draft model.UserDraft) (model.User, error) {
	if m.updateUserFn != nil {
		return m.updateUserFn(ctx, id, draft)
	}
	return model.User{}, errNotConfigured
}

func (m *mockRepository) DeleteUser(ctx context.Context, id string) error {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, id)
	}
	return errNotConfigured
}

func (m *mockRepository) CreateExperience(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error) {
	if m.createExperienceFn != nil {
		return m.createExperienceFn(ctx, draft)
	}
	return model.Experience{}, errNotConfigured
}

func (m *mockRepository) UpdateExperience(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error) {
	if m.updateExperienceFn != nil {
		return m.updateExperienceFn(ctx, id, draft)
	}
	return model.Experience{}, errNotConfigured
}

func (m *mockRepository) DeleteExperience(ctx context.Context, id string) error {
	if m.deleteExperienceFn != nil {
		return m.deleteExperienceFn(ctx, id)
	}
	return errNotConfigured
}

// mockUploader はImageUploaderのモック実装。
type mockUploader struct {
	enabled  bool
	maxBytes int64
	uploadFn func(ctx context.Context, filename string, r io.Reader) (media.Image, error)
}

func (m *mockUploader) Enabled() bool   { return m.enabled }
func (m *mockUploader) MaxBytes() int64 { return m.maxBytes }

func (m *mockUploader) Upload(ctx context.Context, filename string, r io.Reader) (media.Image, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, filename, r)
	}
	return media.Image{}, errNotConfigured
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

func strPtr(s string) *string { return &s }

func testUser(id, firstName string, exps ...model.Experience) model.User {
	if exps == nil {
		exps = []model.Experience{}
	}
	return model.User{
		ID:              id,
		FirstName:       firstName,
		LastName:        "Smith",
		BirthDate:       "1990-04-01",
		WorkExperiences: exps,
	}
}

func testExperience(id, userID, jobTitle string, current bool) model.Experience {
	e := model.Experience{
		ID:          id,
		UserID:      userID,
		JobTitle:    jobTitle,
		CompanyName: "Acme",
		StartDate:   "2021-11-01",
		IsCurrent:   current,
	}
	if !current {
		e.EndDate = strPtr("2022-11-01")
	}
	return e
}

// seededStore はusersを取得済みのストアを返す。
func seededStore(t *testing.T, repo *mockRepository, users ...model.User) *store.Store {
	t.Helper()
	listFn := repo.listUsersFn
	repo.listUsersFn = func(ctx context.Context) ([]model.User, error) { return users, nil }
	s := store.NewStore(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.FetchAllUsers(context.Background()); err != nil {
		t.Fatalf("seed FetchAllUsers() error = %v", err)
	}
	repo.listUsersFn = listFn
	return s
}

// newTestRouter はモックRepositoryを背にした実ストアでルーターを構成する。
func newTestRouter(s *store.Store, uploader ImageUploader, pinger Pinger) http.Handler {
	return NewRouter(&RouterDeps{
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		Store:              s,
		Validator:          form.NewValidator(security.NewTextSanitizer(), security.NewSSRFGuard()),
		Filters:            query.NewCompiler(),
		Uploader:           uploader,
		Pinger:             pinger,
	})
}

// doRequest はルーターにリクエストを送り、レスポンスを返す。
func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
