// Package model はドメインモデルを定義する。
package model

import (
	"slices"
	"time"
)

// UserDraft はユーザー作成・更新時にRepositoryへ送るペイロード。
// サーバー採番のID・タイムスタンプを含まない。
type UserDraft struct {
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	BirthDate    string  `json:"birthDate"` // ISO-8601 日付文字列
	About        *string `json:"about"`
	ProfileImage *string `json:"profileImage"`
}

// User はディレクトリに登録されたプロフィールを表す。
// WorkExperiences はこのユーザーが排他的に所有する職歴の順序付きリスト。
type User struct {
	ID              string       `json:"id"`
	FirstName       string       `json:"firstName"`
	LastName        string       `json:"lastName"`
	BirthDate       string       `json:"birthDate"`
	About           *string      `json:"about"`
	ProfileImage    *string      `json:"profileImage"`
	CreatedAt       string       `json:"createdAt,omitempty"`
	UpdatedAt       string       `json:"updatedAt,omitempty"`
	WorkExperiences []Experience `json:"workExperiences"`
}

// FullName は表示用の氏名を返す。
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Clone はWorkExperiencesのスライスを複製したコピーを返す。
// nilスライスはnilのまま保たれる。
func (u User) Clone() User {
	out := u
	out.WorkExperiences = slices.Clone(u.WorkExperiences)
	return out
}

// WithScalarsFrom はsrcのスカラー項目を取り込み、職歴リストは維持したコピーを返す。
// 更新APIのレスポンスをマージするときに使う。
func (u User) WithScalarsFrom(src User) User {
	out := src
	out.ID = u.ID
	out.WorkExperiences = u.WorkExperiences
	return out
}

// Age はnow時点の満年齢を返す。生年月日が解析できない場合は0を返す。
func (u User) Age(now time.Time) int {
	birth, err := ParseDate(u.BirthDate)
	if err != nil {
		return 0
	}
	now = now.UTC()
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// CurrentPosition は現職の「役職 at 会社名」表記を返す。
// 現職が無い場合は空文字列を返す。
func (u User) CurrentPosition() string {
	for _, e := range u.WorkExperiences {
		if e.IsCurrent {
			return e.JobTitle + " at " + e.CompanyName
		}
	}
	return ""
}
