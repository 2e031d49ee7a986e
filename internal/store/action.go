package store

import "github.com/hitoshi/linkedout/internal/model"

// Action はReduceに渡すミューテーションのバリアント。
// 閉じた集合であり、パッケージ外で新しいバリアントを定義することはできない。
type Action interface {
	isAction()
}

// FetchUsersPending はユーザー一覧取得の開始を表す。
type FetchUsersPending struct{}

// FetchUsersFulfilled はユーザー一覧取得の成功を表す。
type FetchUsersFulfilled struct {
	Users []model.User
}

// FetchUsersRejected はユーザー一覧取得の失敗を表す。
type FetchUsersRejected struct {
	Message string
}

// FetchUsersAborted は呼び出し元のキャンセルで取得が中断されたことを表す。
// 失敗としては記録せず、取得開始前のStatusに戻す。
type FetchUsersAborted struct {
	Previous model.FetchStatus
}

// LoadUserFulfilled は単一ユーザー取得の成功を表す。
type LoadUserFulfilled struct {
	User model.User
}

// CreateUserFulfilled はユーザー作成の成功を表す。
type CreateUserFulfilled struct {
	User model.User
}

// UpdateUserFulfilled はユーザー更新の成功を表す。
type UpdateUserFulfilled struct {
	User model.User
}

// DeleteUserFulfilled はユーザー削除の成功を表す。
type DeleteUserFulfilled struct {
	UserID string
}

// CreateExperienceFulfilled は職歴作成の成功を表す。
type CreateExperienceFulfilled struct {
	Experience model.Experience
}

// UpdateExperienceFulfilled は職歴更新の成功を表す。
type UpdateExperienceFulfilled struct {
	Experience model.Experience
}

// DeleteExperienceFulfilled は職歴削除の成功を表す。
// Experience.UserID でマージ先のユーザーを特定する。
type DeleteExperienceFulfilled struct {
	Experience model.Experience
}

func (FetchUsersPending) isAction()         {}
func (FetchUsersFulfilled) isAction()       {}
func (FetchUsersRejected) isAction()        {}
func (FetchUsersAborted) isAction()         {}
func (LoadUserFulfilled) isAction()         {}
func (CreateUserFulfilled) isAction()       {}
func (UpdateUserFulfilled) isAction()       {}
func (DeleteUserFulfilled) isAction()       {}
func (CreateExperienceFulfilled) isAction() {}
func (UpdateExperienceFulfilled) isAction() {}
func (DeleteExperienceFulfilled) isAction() {}
