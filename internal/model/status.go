package model

// FetchStatus はユーザー一覧取得のリクエストライフサイクル状態を表す。
// 個別の作成・更新・削除には状態を持たせない。
type FetchStatus string

const (
	// FetchStatusIdle は一度も取得していない状態。
	FetchStatusIdle FetchStatus = "idle"
	// FetchStatusLoading は取得中の状態。
	FetchStatusLoading FetchStatus = "loading"
	// FetchStatusSucceeded は直近の取得が成功した状態。
	FetchStatusSucceeded FetchStatus = "succeeded"
	// FetchStatusFailed は直近の取得が失敗した状態。
	FetchStatusFailed FetchStatus = "failed"
)
