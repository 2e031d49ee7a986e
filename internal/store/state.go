package store

import (
	"github.com/hitoshi/linkedout/internal/model"
)

// State はストアが保持する正規化済みデータのイミュータブルなスナップショット。
// Reduceは既存のStateを書き換えず、変更が必要な部分だけをコピーした新しいStateを返す。
// そのため、進行中の複数のミューテーションが同じStateを参照していても安全に読める。
type State struct {
	users   map[string]model.User
	order   []string // 挿入順
	version uint64

	// Status はユーザー一覧取得のライフサイクル状態。
	Status model.FetchStatus
	// Error は直近のユーザー一覧取得の失敗メッセージ。空文字列は未発生を表す。
	Error string
}

// NewState は空の初期状態を返す。
func NewState() State {
	return State{
		users:  map[string]model.User{},
		Status: model.FetchStatusIdle,
	}
}

// Version は実際に状態が変化するたびに増える世代番号を返す。
func (s State) Version() uint64 {
	return s.version
}

// Len はキャッシュ済みユーザー数を返す。
func (s State) Len() int {
	return len(s.order)
}

// Users は全ユーザーを挿入順で返す。
// 戻り値は呼び出し側で自由に変更してよいコピー。
func (s State) Users() []model.User {
	users := make([]model.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.users[id].Clone())
	}
	return users
}

// User は指定IDのユーザーを返す。IDが空、または未キャッシュの場合はfalseを返す。
func (s State) User(id string) (model.User, bool) {
	if id == "" {
		return model.User{}, false
	}
	u, ok := s.users[id]
	if !ok {
		return model.User{}, false
	}
	return u.Clone(), true
}

// Experience は全ユーザーの職歴から指定IDの職歴を探す。
func (s State) Experience(id string) (model.Experience, bool) {
	if id == "" {
		return model.Experience{}, false
	}
	for _, userID := range s.order {
		for _, e := range s.users[userID].WorkExperiences {
			if e.ID == id {
				return e, true
			}
		}
	}
	return model.Experience{}, false
}

// ExperienceCount はキャッシュ済み職歴の総数を返す。
func (s State) ExperienceCount() int {
	n := 0
	for _, u := range s.users {
		n += len(u.WorkExperiences)
	}
	return n
}
