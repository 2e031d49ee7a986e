package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, directory, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeExperienceNotFound = "EXPERIENCE_NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidImageURL    = "INVALID_IMAGE_URL"
	ErrCodeInvalidFilter      = "INVALID_FILTER"
	ErrCodeRepository         = "REPOSITORY_ERROR"
	ErrCodeUploadFailed       = "UPLOAD_FAILED"
	ErrCodeImageTooLarge      = "IMAGE_TOO_LARGE"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "directory",
		Action:   "ユーザー一覧を再読み込みしてください。",
	}
}

// NewExperienceNotFoundError は職歴が見つからない場合のエラーを生成する。
func NewExperienceNotFoundError(experienceID string) *APIError {
	return &APIError{
		Code:     ErrCodeExperienceNotFound,
		Message:  fmt.Sprintf("指定された職歴が見つかりません: %s", experienceID),
		Category: "directory",
		Action:   "プロフィールを再読み込みしてください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidImageURLError は画像URLが安全でない場合のエラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("無効な画像URLです: %s", reason),
		Category: "validation",
		Action:   "公開されている https の画像URLを指定するか、画像をアップロードしてください。",
	}
}

// NewInvalidFilterError は無効なフィルタ式のエラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", reason),
		Category: "validation",
		Action:   "フィルタ式の構文を確認してください。",
	}
}

// NewRepositoryError はRepository呼び出しの失敗を表すエラーを生成する。
// messageにはサーバーが返した人間可読なメッセージを渡す。
func NewRepositoryError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeRepository,
		Message:  message,
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUploadFailedError は画像アップロード失敗のエラーを生成する。
func NewUploadFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  fmt.Sprintf("画像のアップロードに失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewImageTooLargeError は画像サイズ超過のエラーを生成する。
func NewImageTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeImageTooLarge,
		Message:  fmt.Sprintf("画像サイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "より小さい画像を選択してください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After ヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
