package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/linkedout/internal/model"
)

// --- モック ---

type mockRepo struct {
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

func (m *mockRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	if m.listUsersFn == nil {
		return nil, errNotConfigured
	}
	return m.listUsersFn(ctx)
}
func (m *mockRepo) GetUser(ctx context.Context, id string) (model.User, error) {
	if m.getUserFn == nil {
		return model.User{}, errNotConfigured
	}
	return m.getUserFn(ctx, id)
}
func (m *mockRepo) CreateUser(ctx context.Context, draft model.UserDraft) (model.User, error) {
	if m.createUserFn == nil {
		return model.User{}, errNotConfigured
	}
	return m.createUserFn(ctx, draft)
}
func (m *mockRepo) UpdateUser(ctx context.Context, id string, draft model.UserDraft) (model.User, error) {
	if m.updateUserFn == nil {
		return model.User{}, errNotConfigured
	}
	return m.updateUserFn(ctx, id, draft)
}
func (m *mockRepo) DeleteUser(ctx context.Context, id string) error {
	if m.deleteUserFn == nil {
		return errNotConfigured
	}
	return m.deleteUserFn(ctx, id)
}
func (m *mockRepo) CreateExperience(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error) {
	if m.createExperienceFn == nil {
		return model.Experience{}, errNotConfigured
	}
	return m.createExperienceFn(ctx, draft)
}
func (m *mockRepo) UpdateExperience(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error) {
	if m.updateExperienceFn == nil {
		return model.Experience{}, errNotConfigured
	}
	return m.updateExperienceFn(ctx, id, draft)
}
func (m *mockRepo) DeleteExperience(ctx context.Context, id string) error {
	if m.deleteExperienceFn == nil {
		return errNotConfigured
	}
	return m.deleteExperienceFn(ctx, id)
}

type recordedMutation struct {
	operation string
	err       error
}

type mockRecorder struct {
	mu        sync.Mutex
	mutations []recordedMutation
}

func (r *mockRecorder) RecordMutation(operation string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, recordedMutation{operation: operation, err: err})
}

// --- テストデータ ---

func strPtr(s string) *string { return &s }

func newUser(id, firstName string, exps ...model.Experience) model.User {
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

func newExperience(id, userID, jobTitle string) model.Experience {
	return model.Experience{
		ID:          id,
		UserID:      userID,
		JobTitle:    jobTitle,
		CompanyName: "Acme",
		StartDate:   "2020-05-01",
		EndDate:     strPtr("2021-11-01"),
	}
}

// seededStore は指定ユーザーをキャッシュ済みにしたStoreを返す。
func seededStore(repo *mockRepo, users ...model.User) *Store {
	s := NewStore(repo, nil, nil)
	s.state = Reduce(s.state, FetchUsersFulfilled{Users: users})
	return s
}
