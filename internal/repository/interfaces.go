// Package repository はストアが依存するリモートCRUDのインターフェースを定義する。
// 実装は internal/api のHTTPクライアント。テストでは関数フィールドのモックを使う。
package repository

import (
	"context"

	"github.com/hitoshi/linkedout/internal/model"
)

// UserRepository はユーザーのリモートCRUDインターフェース。
// 失敗時は人間可読なメッセージを持つエラーを返す。
type UserRepository interface {
	// ListUsers は全ユーザーを職歴付きで取得する。
	ListUsers(ctx context.Context) ([]model.User, error)

	// GetUser は指定IDのユーザーを職歴付きで取得する。
	GetUser(ctx context.Context, id string) (model.User, error)

	// CreateUser はユーザーを作成し、サーバー採番のIDを持つユーザーを返す。
	CreateUser(ctx context.Context, draft model.UserDraft) (model.User, error)

	// UpdateUser は指定IDのユーザーを更新し、更新後のユーザーを返す。
	UpdateUser(ctx context.Context, id string, draft model.UserDraft) (model.User, error)

	// DeleteUser は指定IDのユーザーを削除する。
	DeleteUser(ctx context.Context, id string) error
}

// ExperienceRepository は職歴のリモートCRUDインターフェース。
type ExperienceRepository interface {
	// CreateExperience は職歴を作成し、サーバー採番のIDを持つ職歴を返す。
	CreateExperience(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error)

	// UpdateExperience は指定IDの職歴を更新し、更新後の職歴を返す。
	UpdateExperience(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error)

	// DeleteExperience は指定IDの職歴を削除する。
	DeleteExperience(ctx context.Context, id string) error
}

// Repository はストアが必要とするRepositoryの全操作。
type Repository interface {
	UserRepository
	ExperienceRepository
}
