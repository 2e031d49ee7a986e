// Package form はユーザー・職歴のドラフトをストアへ渡す前に検証・正規化する。
package form

import (
	"strings"
	"time"

	"github.com/hitoshi/linkedout/internal/model"
	"github.com/hitoshi/linkedout/internal/security"
)

// 入力項目の最大長（文字数）
const (
	maxNameLength        = 100
	maxAboutLength       = 2000
	maxDescriptionLength = 5000
)

// Validator はドラフトの検証と正規化を行う。
type Validator struct {
	sanitizer security.TextSanitizer
	guard     security.URLGuard
	now       func() time.Time
}

// NewValidator はValidatorの新しいインスタンスを生成する。
func NewValidator(sanitizer security.TextSanitizer, guard security.URLGuard) *Validator {
	return &Validator{
		sanitizer: sanitizer,
		guard:     guard,
		now:       time.Now,
	}
}

// UserDraft はユーザーのドラフトを検証し、正規化したコピーを返す。
// 氏名と生年月日は必須。生年月日は未来日を許可しない。
func (v *Validator) UserDraft(in model.UserDraft) (model.UserDraft, error) {
	out := in

	out.FirstName = v.sanitizer.PlainText(in.FirstName)
	if err := requireText("firstName", out.FirstName, maxNameLength); err != nil {
		return model.UserDraft{}, err
	}
	out.LastName = v.sanitizer.PlainText(in.LastName)
	if err := requireText("lastName", out.LastName, maxNameLength); err != nil {
		return model.UserDraft{}, err
	}

	birth, err := v.requireDate("birthDate", in.BirthDate)
	if err != nil {
		return model.UserDraft{}, err
	}
	out.BirthDate = birth.Format(time.DateOnly)

	out.About, err = v.optionalRichText("about", in.About, maxAboutLength)
	if err != nil {
		return model.UserDraft{}, err
	}
	out.ProfileImage, err = v.optionalImageURL(in.ProfileImage)
	if err != nil {
		return model.UserDraft{}, err
	}
	return out, nil
}

// ExperienceDraft は職歴のドラフトを検証し、正規化したコピーを返す。
// IsCurrent が true の場合 EndDate は nil にクリアされる。
// そうでない場合 EndDate は必須で、StartDate より後でなければならない。
func (v *Validator) ExperienceDraft(in model.ExperienceDraft) (model.ExperienceDraft, error) {
	out := in

	out.UserID = strings.TrimSpace(in.UserID)
	if out.UserID == "" {
		return model.ExperienceDraft{}, model.NewValidationError("userId", "必須項目です")
	}

	out.JobTitle = v.sanitizer.PlainText(in.JobTitle)
	if err := requireText("jobTitle", out.JobTitle, maxNameLength); err != nil {
		return model.ExperienceDraft{}, err
	}
	out.CompanyName = v.sanitizer.PlainText(in.CompanyName)
	if err := requireText("companyName", out.CompanyName, maxNameLength); err != nil {
		return model.ExperienceDraft{}, err
	}

	start, err := v.requireDate("startDate", in.StartDate)
	if err != nil {
		return model.ExperienceDraft{}, err
	}
	out.StartDate = start.Format(time.DateOnly)

	if in.IsCurrent {
		out.EndDate = nil
	} else {
		if in.EndDate == nil {
			return model.ExperienceDraft{}, model.NewValidationError("endDate", "現職でない場合は必須です")
		}
		end, err := v.requireDate("endDate", *in.EndDate)
		if err != nil {
			return model.ExperienceDraft{}, err
		}
		if !end.After(start) {
			return model.ExperienceDraft{}, model.NewValidationError("endDate", "開始日より後の日付を指定してください")
		}
		formatted := end.Format(time.DateOnly)
		out.EndDate = &formatted
	}

	out.JobDescription, err = v.optionalRichText("jobDescription", in.JobDescription, maxDescriptionLength)
	if err != nil {
		return model.ExperienceDraft{}, err
	}
	out.CompanyLogo, err = v.optionalImageURL(in.CompanyLogo)
	if err != nil {
		return model.ExperienceDraft{}, err
	}
	return out, nil
}

func requireText(field, value string, maxLen int) error {
	if value == "" {
		return model.NewValidationError(field, "必須項目です")
	}
	if n := len([]rune(value)); n > maxLen {
		return model.NewValidationError(field, "長すぎます")
	}
	return nil
}

// requireDate は日付文字列を解析し、未来日でないことを検証する。
func (v *Validator) requireDate(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, model.NewValidationError(field, "必須項目です")
	}
	t, err := model.ParseDate(value)
	if err != nil {
		return time.Time{}, model.NewValidationError(field, "日付の形式が正しくありません（YYYY-MM-DD）")
	}
	t = t.Truncate(24 * time.Hour)
	today := v.now().UTC().Truncate(24 * time.Hour)
	if t.After(today) {
		return time.Time{}, model.NewValidationError(field, "未来の日付は指定できません")
	}
	return t, nil
}

// optionalRichText は任意項目をサニタイズする。空になった場合はnilを返す。
func (v *Validator) optionalRichText(field string, value *string, maxLen int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	cleaned := v.sanitizer.RichText(*value)
	if cleaned == "" {
		return nil, nil
	}
	if len([]rune(cleaned)) > maxLen {
		return nil, model.NewValidationError(field, "長すぎます")
	}
	return &cleaned, nil
}

// optionalImageURL は画像URLを検証する。空文字列はnil（画像なし）として扱う。
func (v *Validator) optionalImageURL(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if err := v.guard.ValidateURL(trimmed); err != nil {
		return nil, model.NewInvalidImageURLError(err.Error())
	}
	return &trimmed, nil
}
