// Package api はディレクトリAPI（ユーザー・職歴のREST API）のクライアントを提供する。
// repository.Repository を実装し、ストアの唯一の情報源となる。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/linkedout/internal/model"
	"github.com/hitoshi/linkedout/internal/requestid"
)

const (
	// apiPrefix はAPIのバージョン付きパスプレフィックス。
	apiPrefix = "/api/v1"
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 4 << 20
	// networkErrorMessage はレスポンスを受け取れなかった場合のメッセージ。
	networkErrorMessage = "Network Error"
)

// StatusRecorder は上流APIのレスポンスステータスを記録するインターフェース。
// metrics.Collector が実装する。
type StatusRecorder interface {
	RecordUpstreamStatus(operation string, statusCode int)
}

// RequestError はAPI呼び出しの失敗を表す。
// StatusCode が 0 の場合はレスポンスを受け取れなかった（通信エラー）ことを表す。
type RequestError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap は統一エラーフォーマットに変換したエラーを返す。
// errors.As で *model.APIError として取り出せる。
func (e *RequestError) Unwrap() []error {
	errs := []error{model.NewRepositoryError(e.Message)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound はAPIが404を返したかどうかを返す。
func (e *RequestError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Client はディレクトリAPIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	recorder   StatusRecorder
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLにはAPIサーバーのオリジン（例: https://api.example.com）を渡す。recorderはnilでもよい。
func NewClient(httpClient *http.Client, baseURL string, recorder StatusRecorder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/") + apiPrefix,
		recorder:   recorder,
		logger:     logger,
	}
}

// ListUsers は全ユーザーを取得する。
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, "list_users", http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	for i := range users {
		normalizeUser(&users[i])
	}
	return users, nil
}

// GetUser は単一ユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, id string) (model.User, error) {
	var user model.User
	if err := c.do(ctx, "get_user", http.MethodGet, "/users/"+url.PathEscape(id), nil, &user); err != nil {
		return model.User{}, err
	}
	normalizeUser(&user)
	return user, nil
}

// CreateUser はユーザーを作成する。
func (c *Client) CreateUser(ctx context.Context, draft model.UserDraft) (model.User, error) {
	var user model.User
	if err := c.do(ctx, "create_user", http.MethodPost, "/users", draft, &user); err != nil {
		return model.User{}, err
	}
	normalizeUser(&user)
	return user, nil
}

// UpdateUser はユーザーを更新する。
func (c *Client) UpdateUser(ctx context.Context, id string, draft model.UserDraft) (model.User, error) {
	var user model.User
	if err := c.do(ctx, "update_user", http.MethodPut, "/users/"+url.PathEscape(id), draft, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// DeleteUser はユーザーを削除する。
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, "delete_user", http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// CreateExperience は職歴を作成する。
func (c *Client) CreateExperience(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error) {
	var exp model.Experience
	if err := c.do(ctx, "create_experience", http.MethodPost, "/experiences", draft, &exp); err != nil {
		return model.Experience{}, err
	}
	return exp, nil
}

// UpdateExperience は職歴を更新する。
func (c *Client) UpdateExperience(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error) {
	var exp model.Experience
	if err := c.do(ctx, "update_experience", http.MethodPut, "/experiences/"+url.PathEscape(id), draft, &exp); err != nil {
		return model.Experience{}, err
	}
	return exp, nil
}

// DeleteExperience は職歴を削除する。
func (c *Client) DeleteExperience(ctx context.Context, id string) error {
	return c.do(ctx, "delete_experience", http.MethodDelete, "/experiences/"+url.PathEscape(id), nil, nil)
}

// Ping はAPIサーバーへの疎通を確認する。ヘルスチェックで使う。
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/users", nil, nil)
}

// do はJSONリクエストを送信し、2xxの場合はレスポンスをoutにデコードする。
// outがnilの場合はボディを読み捨てる。
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, ok := requestid.FromContext(ctx); ok {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "ディレクトリAPIの呼び出しに失敗しました",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &RequestError{Op: op, Message: ctxErr.Error(), Err: ctxErr}
		}
		return &RequestError{Op: op, Message: networkErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordUpstreamStatus(op, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: networkErrorMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parseErrorMessage(data)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.WarnContext(ctx, "ディレクトリAPIがエラーステータスを返しました",
			slog.String("operation", op),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", msg),
		)
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.ErrorContext(ctx, "ディレクトリAPIのレスポンスのパースに失敗しました",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// errorBody はAPIのエラーレスポンス。messageは文字列または文字列の配列。
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

// parseErrorMessage はエラーレスポンスからメッセージを取り出す。
// 取り出せない場合は空文字列を返す。
func parseErrorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}

	var single string
	if err := json.Unmarshal(body.Message, &single); err == nil && single != "" {
		return single
	}
	var list []string
	if err := json.Unmarshal(body.Message, &list); err == nil && len(list) > 0 {
		return strings.Join(list, ", ")
	}
	return body.Error
}

// normalizeUser は職歴リストがnullで返された場合に空リストに揃える。
func normalizeUser(u *model.User) {
	if u.WorkExperiences == nil {
		u.WorkExperiences = []model.Experience{}
	}
}

// AsRequestError はerrから*RequestErrorを取り出す。
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
