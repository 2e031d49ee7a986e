package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/hitoshi/linkedout/internal/api"
	"github.com/hitoshi/linkedout/internal/model"
)

// --- POST /api/users/{id}/experiences テスト ---

func TestExperienceHandler_CreateExperience_UsesPathUserID(t *testing.T) {
	repo := &mockRepository{
		createExperienceFn: func(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error) {
			if draft.UserID != "u1" {
				t.Errorf("userId = %q, want u1 (from path)", draft.UserID)
			}
			if draft.EndDate != nil {
				t.Errorf("endDate = %q, want nil for a current position", *draft.EndDate)
			}
			return model.Experience{
				ID:          "e9",
				JobTitle:    draft.JobTitle,
				CompanyName: draft.CompanyName,
				StartDate:   draft.StartDate,
				IsCurrent:   draft.IsCurrent,
			}, nil
		},
	}
	s := seededStore(t, repo, testUser("u1", "Alice"))
	router := newTestRouter(s, nil, nil)

	body := `{"jobTitle":"CTO","companyName":"Acme","startDate":"2021-11-01","endDate":"2022-01-01","isCurrent":true,"userId":"someone-else"}`
	w := doRequest(router, http.MethodPost, "/api/users/u1/experiences", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	u, _ := s.UserByID("u1")
	if len(u.WorkExperiences) != 1 || u.WorkExperiences[0].ID != "e9" {
		t.Errorf("workExperiences = %+v, want [e9]", u.WorkExperiences)
	}
}

func TestExperienceHandler_CreateExperience_EndBeforeStart(t *testing.T) {
	router := newTestRouter(seededStore(t, &mockRepository{}, testUser("u1", "Alice")), nil, nil)

	body := `{"jobTitle":"CTO","companyName":"Acme","startDate":"2021-11-01","endDate":"2020-01-01","isCurrent":false}`
	w := doRequest(router, http.MethodPost, "/api/users/u1/experiences", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if code := parseAPIErrorResponse(t, w)["code"]; code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", code, model.ErrCodeValidation)
	}
}

func TestExperienceHandler_CreateExperience_OwnerNotCached(t *testing.T) {
	repo := &mockRepository{
		createExperienceFn: func(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error) {
			return model.Experience{ID: "e9", UserID: draft.UserID, JobTitle: draft.JobTitle}, nil
		},
	}
	s := seededStore(t, repo)
	router := newTestRouter(s, nil, nil)

	body := `{"jobTitle":"CTO","companyName":"Acme","startDate":"2021-11-01","isCurrent":true}`
	w := doRequest(router, http.MethodPost, "/api/users/ghost/experiences", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if s.Snapshot().Len() != 0 {
		t.Error("orphan experience must not create a user entry")
	}
}

// --- PUT /api/experiences/{id} テスト ---

func TestExperienceHandler_UpdateExperience_FillsUserIDFromCache(t *testing.T) {
	repo := &mockRepository{
		updateExperienceFn: func(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error) {
			if draft.UserID != "u1" {
				t.Errorf("userId = %q, want u1 (from cache)", draft.UserID)
			}
			return model.Experience{
				ID:          id,
				UserID:      draft.UserID,
				JobTitle:    draft.JobTitle,
				CompanyName: draft.CompanyName,
				StartDate:   draft.StartDate,
				EndDate:     draft.EndDate,
			}, nil
		},
	}
	s := seededStore(t, repo, testUser("u1", "Alice",
		testExperience("e1", "u1", "Engineer", false),
		testExperience("e2", "u1", "Manager", true),
	))
	router := newTestRouter(s, nil, nil)

	body := `{"jobTitle":"Staff Engineer","companyName":"Acme","startDate":"2021-11-01","endDate":"2022-11-01","isCurrent":false}`
	w := doRequest(router, http.MethodPut, "/api/experiences/e1", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	u, _ := s.UserByID("u1")
	if u.WorkExperiences[0].ID != "e1" || u.WorkExperiences[0].JobTitle != "Staff Engineer" {
		t.Errorf("first experience = %+v, want updated e1 in place", u.WorkExperiences[0])
	}
	if u.WorkExperiences[1].ID != "e2" {
		t.Errorf("second experience = %q, want e2", u.WorkExperiences[1].ID)
	}
}

func TestExperienceHandler_UpdateExperience_UnknownOwner(t *testing.T) {
	repo := &mockRepository{
		updateExperienceFn: func(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error) {
			t.Error("repository should not be called without an owner")
			return model.Experience{}, nil
		},
	}
	router := newTestRouter(seededStore(t, repo), nil, nil)

	body := `{"jobTitle":"CTO","companyName":"Acme","startDate":"2021-11-01","isCurrent":true}`
	w := doRequest(router, http.MethodPut, "/api/experiences/unknown", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- DELETE /api/experiences/{id} テスト ---

func TestExperienceHandler_DeleteExperience(t *testing.T) {
	var deleted string
	repo := &mockRepository{
		deleteExperienceFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	s := seededStore(t, repo, testUser("u1", "Alice",
		testExperience("e1", "u1", "Engineer", false),
		testExperience("e2", "u1", "Manager", true),
	))
	router := newTestRouter(s, nil, nil)

	w := doRequest(router, http.MethodDelete, "/api/experiences/e1", "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "e1" {
		t.Errorf("deleted = %q, want e1", deleted)
	}
	u, _ := s.UserByID("u1")
	if len(u.WorkExperiences) != 1 || u.WorkExperiences[0].ID != "e2" {
		t.Errorf("workExperiences = %+v, want [e2]", u.WorkExperiences)
	}
}

func TestExperienceHandler_DeleteExperience_NotCachedStillDeletesRemotely(t *testing.T) {
	called := false
	repo := &mockRepository{
		deleteExperienceFn: func(ctx context.Context, id string) error {
			called = true
			return nil
		},
	}
	router := newTestRouter(seededStore(t, repo), nil, nil)

	w := doRequest(router, http.MethodDelete, "/api/experiences/e404", "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !called {
		t.Error("repository delete should be called")
	}
}

func TestExperienceHandler_DeleteExperience_UpstreamNotFound(t *testing.T) {
	repo := &mockRepository{
		deleteExperienceFn: func(ctx context.Context, id string) error {
			return &api.RequestError{Op: "delete_experience", StatusCode: http.StatusNotFound, Message: "Experience not found"}
		},
	}
	s := seededStore(t, repo, testUser("u1", "Alice", testExperience("e1", "u1", "Engineer", true)))
	router := newTestRouter(s, nil, nil)

	w := doRequest(router, http.MethodDelete, "/api/experiences/e1", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if _, ok := s.ExperienceByID("e1"); !ok {
		t.Error("experience should remain cached after a failed delete")
	}
}
