package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ExperienceDraft は職歴の作成・更新時にRepositoryへ送るペイロード。
// UserID は所属ユーザーへの弱参照で、ストア上のマージ先の特定にのみ使う。
type ExperienceDraft struct {
	JobTitle       string  `json:"jobTitle"`
	StartDate      string  `json:"startDate"`
	EndDate        *string `json:"endDate"`
	CompanyName    string  `json:"companyName"`
	CompanyLogo    *string `json:"companyLogo"`
	JobDescription *string `json:"jobDescription"`
	IsCurrent      bool    `json:"isCurrent"`
	UserID         string  `json:"userId"`
}

// Experience はユーザーに紐づく職歴を表す。
// IsCurrent が true の場合 EndDate は nil（フォーム層で保証し、ストアでは再検証しない）。
type Experience struct {
	ID             string  `json:"id"`
	JobTitle       string  `json:"jobTitle"`
	StartDate      string  `json:"startDate"`
	EndDate        *string `json:"endDate"`
	CompanyName    string  `json:"companyName"`
	CompanyLogo    *string `json:"companyLogo"`
	JobDescription *string `json:"jobDescription"`
	IsCurrent      bool    `json:"isCurrent"`
	UserID         string  `json:"userId"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	UpdatedAt      string  `json:"updatedAt,omitempty"`
}

// PeriodLabel は「Nov 2021 - Current」形式の在籍期間ラベルを返す。
func (e Experience) PeriodLabel() string {
	end := ""
	switch {
	case e.IsCurrent && e.EndDate == nil:
		end = "Current"
	case e.EndDate != nil:
		end = FormatMonthYear(*e.EndDate)
	}
	return fmt.Sprintf("%s - %s", FormatMonthYear(e.StartDate), end)
}

// SortExperiences は開始日の降順（新しい順）に並べたコピーを返す。
// 開始日が同じ場合は元の順序を保つ。解析できない開始日は末尾に回す。
func SortExperiences(experiences []Experience) []Experience {
	sorted := slices.Clone(experiences)
	slices.SortStableFunc(sorted, func(a, b Experience) int {
		ta, errA := ParseDate(a.StartDate)
		tb, errB := ParseDate(b.StartDate)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		return tb.Compare(ta)
	})
	return sorted
}

// dateLayouts はAPIが返す日付文字列として受け付けるレイアウト。
var dateLayouts = []string{
	time.RFC3339Nano,
	time.DateOnly,
}

// ParseDate はISO-8601の日付文字列を解析する。
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %q", s)
}

// FormatMonthYear は日付文字列を「Nov 2021」形式に整形する。
// 解析できない場合は空文字列を返す。
func FormatMonthYear(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return ""
	}
	return t.Format("Jan 2006")
}
