// Package store はユーザーと職歴の正規化済みエンティティキャッシュを提供する。
//
// ストアはRepositoryの応答だけを唯一の情報源としてマージする。
// ミューテーションは「Repository呼び出し → 成功時にActionをReduce」の順で進み、
// 状態の変更はすべてReduceを通る。Reduceは純粋関数で、現在のStateから新しいStateを返す。
//
// マージ方針:
//   - ユーザー一覧・単一ユーザーの取得は未キャッシュのIDだけを追加し、既存のエントリは上書きしない
//   - ユーザー更新はスカラー項目だけを置き換え、職歴リストは維持する
//   - 職歴のマージ先は職歴のUserIDで特定し、ユーザーが未キャッシュならno-opとする
package store

import (
	"maps"
	"slices"

	"github.com/hitoshi/linkedout/internal/model"
)

// Reduce はActionをStateに適用した新しいStateを返す。
// 引数のStateは変更しない。対象が見つからない場合は引数のStateをそのまま返す。
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case FetchUsersPending:
		return s.withStatus(model.FetchStatusLoading, s.Error)

	case FetchUsersFulfilled:
		s = s.insertMissing(a.Users)
		return s.withStatus(model.FetchStatusSucceeded, s.Error)

	case FetchUsersRejected:
		return s.withStatus(model.FetchStatusFailed, a.Message)

	case FetchUsersAborted:
		if s.Status != model.FetchStatusLoading {
			return s
		}
		return s.withStatus(a.Previous, s.Error)

	case LoadUserFulfilled:
		return s.insertMissing([]model.User{a.User})

	case CreateUserFulfilled:
		return s.insertMissing([]model.User{a.User})

	case UpdateUserFulfilled:
		current, ok := s.users[a.User.ID]
		if !ok {
			return s
		}
		return s.withUser(current.WithScalarsFrom(a.User))

	case DeleteUserFulfilled:
		return s.withoutUser(a.UserID)

	case CreateExperienceFulfilled:
		owner, ok := s.users[a.Experience.UserID]
		if !ok {
			return s
		}
		exps := owner.WorkExperiences
		if i := indexOfExperience(exps, a.Experience.ID); i >= 0 {
			// 同一IDが既にある場合は重複させずに置き換える
			next := slices.Clone(exps)
			next[i] = a.Experience
			owner.WorkExperiences = next
		} else {
			next := make([]model.Experience, len(exps), len(exps)+1)
			copy(next, exps)
			owner.WorkExperiences = append(next, a.Experience)
		}
		return s.withUser(owner)

	case UpdateExperienceFulfilled:
		owner, ok := s.users[a.Experience.UserID]
		if !ok {
			return s
		}
		i := indexOfExperience(owner.WorkExperiences, a.Experience.ID)
		if i < 0 {
			return s
		}
		next := slices.Clone(owner.WorkExperiences)
		next[i] = a.Experience
		owner.WorkExperiences = next
		return s.withUser(owner)

	case DeleteExperienceFulfilled:
		owner, ok := s.users[a.Experience.UserID]
		if !ok {
			return s
		}
		i := indexOfExperience(owner.WorkExperiences, a.Experience.ID)
		if i < 0 {
			return s
		}
		owner.WorkExperiences = slices.Delete(slices.Clone(owner.WorkExperiences), i, i+1)
		return s.withUser(owner)

	default:
		return s
	}
}

func indexOfExperience(exps []model.Experience, id string) int {
	return slices.IndexFunc(exps, func(e model.Experience) bool { return e.ID == id })
}

func (s State) withStatus(status model.FetchStatus, errMsg string) State {
	if s.Status == status && s.Error == errMsg {
		return s
	}
	s.Status = status
	s.Error = errMsg
	s.version++
	return s
}

// insertMissing は未キャッシュのユーザーだけを追加する。既存エントリは変更しない。
func (s State) insertMissing(users []model.User) State {
	var next map[string]model.User
	var order []string
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if _, ok := s.users[u.ID]; ok {
			continue
		}
		if next == nil {
			next = s.cloneUsers()
			order = slices.Clone(s.order)
		} else if _, ok := next[u.ID]; ok {
			continue
		}
		next[u.ID] = u.Clone()
		order = append(order, u.ID)
	}
	if next == nil {
		return s
	}
	s.users = next
	s.order = order
	s.version++
	return s
}

func (s State) withUser(u model.User) State {
	next := s.cloneUsers()
	next[u.ID] = u
	s.users = next
	s.version++
	return s
}

func (s State) withoutUser(id string) State {
	if _, ok := s.users[id]; !ok {
		return s
	}
	next := s.cloneUsers()
	delete(next, id)
	s.users = next
	s.order = slices.DeleteFunc(slices.Clone(s.order), func(v string) bool { return v == id })
	s.version++
	return s
}

func (s State) cloneUsers() map[string]model.User {
	if s.users == nil {
		return map[string]model.User{}
	}
	return maps.Clone(s.users)
}
