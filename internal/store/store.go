package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/linkedout/internal/model"
	"github.com/hitoshi/linkedout/internal/repository"
)

// 操作名。ログとメトリクスのラベルに使う。
const (
	OpFetchUsers       = "fetch_users"
	OpLoadUser         = "load_user"
	OpCreateUser       = "create_user"
	OpUpdateUser       = "update_user"
	OpDeleteUser       = "delete_user"
	OpCreateExperience = "create_experience"
	OpUpdateExperience = "update_experience"
	OpDeleteExperience = "delete_experience"
)

// MutationRecorder はミューテーションの結果を記録するインターフェース。
// metrics.Collector が実装する。
type MutationRecorder interface {
	RecordMutation(operation string, err error, duration time.Duration)
}

// Listener は状態が変化するたびに新しいStateを受け取る。
// 状態ロックの外で同期的に呼ばれるため、Listenerの中からクエリ（AllUsers、Snapshot等）を
// 呼んでもよい。ミューテーションを発行すると自身の通知順を待ち続けるため、発行してはならない。
type Listener func(State)

type subscription struct {
	id uint64
	fn Listener
}

// Store はユーザーと職歴のエンティティストア。
// 全操作はゴルーチンから並行に呼び出してよい。Repository呼び出し中はロックを保持せず、
// 応答が返った時点の最新Stateに対してReduceを適用する（後に確定した応答が勝つ）。
type Store struct {
	repo     repository.Repository
	recorder MutationRecorder
	logger   *slog.Logger

	mu        sync.RWMutex
	state     State
	listeners []subscription
	nextSubID uint64

	// dispatchSeq は状態を変化させたdispatchの通し番号。muで保護する。
	dispatchSeq uint64

	// notifyMu とnotifyCond はリスナーへの通知をdispatchSeq順に直列化する。
	notifyMu    sync.Mutex
	notifyCond  *sync.Cond
	notifiedSeq uint64
}

// NewStore はStoreの新しいインスタンスを生成する。
// recorderはnilでもよい。loggerがnilの場合はslog.Default()を使う。
func NewStore(repo repository.Repository, recorder MutationRecorder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		state:    NewState(),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	return s
}

// Snapshot は現在のStateを返す。
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe はリスナーを登録し、登録解除用の関数を返す。
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// dispatch は現在のStateにActionを適用し、変化があればリスナーに通知する。
// 戻り値は状態が変化したかどうか。
func (s *Store) dispatch(action Action) bool {
	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, action)
	if next.version == prev.version {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.dispatchSeq++
	seq := s.dispatchSeq
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()

	s.notifyMu.Lock()
	for s.notifiedSeq+1 != seq {
		s.notifyCond.Wait()
	}
	s.notifyMu.Unlock()

	defer func() {
		s.notifyMu.Lock()
		s.notifiedSeq = seq
		s.notifyCond.Broadcast()
		s.notifyMu.Unlock()
	}()
	for _, fn := range listeners {
		fn(next)
	}
	return true
}

// FetchAllUsers は全ユーザーを取得し、未キャッシュのユーザーだけを追加する。
// 取得の開始・成功・失敗はStatus/Errorとして状態に記録される。
// 失敗時は状態に記録したうえで呼び出し元にもエラーを返す。
// ctxのキャンセルによる中断は失敗として記録せず、取得開始前のStatusに戻す。
func (s *Store) FetchAllUsers(ctx context.Context) error {
	start := time.Now()
	previous := s.FetchStatus()
	s.dispatch(FetchUsersPending{})

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// 呼び出し元の都合による中断は共有の取得状態に残さない
			s.dispatch(FetchUsersAborted{Previous: previous})
			s.settle(ctx, OpFetchUsers, start, err)
			return err
		}
		s.dispatch(FetchUsersRejected{Message: errorMessage(err)})
		s.settle(ctx, OpFetchUsers, start, err)
		return err
	}

	s.dispatch(FetchUsersFulfilled{Users: users})
	s.settle(ctx, OpFetchUsers, start, nil, slog.Int("fetched", len(users)))
	return nil
}

// LoadUser は単一ユーザーを取得し、未キャッシュであれば追加する。
// 既にキャッシュ済みの場合は上書きせず、キャッシュ側の値を返す。
func (s *Store) LoadUser(ctx context.Context, id string) (model.User, error) {
	start := time.Now()

	fetched, err := s.repo.GetUser(ctx, id)
	if err != nil {
		s.settle(ctx, OpLoadUser, start, err, slog.String("user_id", id))
		return model.User{}, err
	}

	s.dispatch(LoadUserFulfilled{User: fetched})
	s.settle(ctx, OpLoadUser, start, nil, slog.String("user_id", fetched.ID))

	if cached, ok := s.UserByID(fetched.ID); ok {
		return cached, nil
	}
	return fetched, nil
}

// CreateUser はユーザーを作成し、サーバー採番のIDを持つユーザーをストアに追加して返す。
func (s *Store) CreateUser(ctx context.Context, draft model.UserDraft) (model.User, error) {
	start := time.Now()

	created, err := s.repo.CreateUser(ctx, draft)
	if err != nil {
		s.settle(ctx, OpCreateUser, start, err)
		return model.User{}, err
	}

	s.dispatch(CreateUserFulfilled{User: created})
	s.settle(ctx, OpCreateUser, start, nil, slog.String("user_id", created.ID))
	return created, nil
}

// UpdateUser はユーザーを更新し、キャッシュ済みであればスカラー項目を置き換える。
// 職歴リストは更新ペイロードに含まれないため維持される。
func (s *Store) UpdateUser(ctx context.Context, id string, draft model.UserDraft) (model.User, error) {
	start := time.Now()

	updated, err := s.repo.UpdateUser(ctx, id, draft)
	if err != nil {
		s.settle(ctx, OpUpdateUser, start, err, slog.String("user_id", id))
		return model.User{}, err
	}

	if !s.dispatch(UpdateUserFulfilled{User: updated}) {
		s.logNoop(ctx, OpUpdateUser, slog.String("user_id", updated.ID))
	}
	s.settle(ctx, OpUpdateUser, start, nil, slog.String("user_id", updated.ID))
	return updated, nil
}

// DeleteUser はユーザーを削除し、職歴ごとストアから取り除く。
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	start := time.Now()

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		s.settle(ctx, OpDeleteUser, start, err, slog.String("user_id", id))
		return err
	}

	if !s.dispatch(DeleteUserFulfilled{UserID: id}) {
		s.logNoop(ctx, OpDeleteUser, slog.String("user_id", id))
	}
	s.settle(ctx, OpDeleteUser, start, nil, slog.String("user_id", id))
	return nil
}

// CreateExperience は職歴を作成し、draft.UserIDのユーザーの職歴リスト末尾に追加する。
// ユーザーが未キャッシュの場合、作成された職歴はストアに反映されない（サーバー上には存在する）。
func (s *Store) CreateExperience(ctx context.Context, draft model.ExperienceDraft) (model.Experience, error) {
	start := time.Now()

	created, err := s.repo.CreateExperience(ctx, draft)
	if err != nil {
		s.settle(ctx, OpCreateExperience, start, err, slog.String("user_id", draft.UserID))
		return model.Experience{}, err
	}

	// マージ先はリクエスト時のUserIDで特定する
	merged := created
	if merged.UserID == "" {
		merged.UserID = draft.UserID
	}
	if !s.dispatch(CreateExperienceFulfilled{Experience: merged}) {
		s.logNoop(ctx, OpCreateExperience,
			slog.String("user_id", merged.UserID),
			slog.String("experience_id", merged.ID),
		)
	}
	s.settle(ctx, OpCreateExperience, start, nil,
		slog.String("user_id", merged.UserID),
		slog.String("experience_id", created.ID),
	)
	return created, nil
}

// UpdateExperience は職歴を更新し、応答のUserIDのユーザーの該当エントリを同じ位置で置き換える。
func (s *Store) UpdateExperience(ctx context.Context, id string, draft model.ExperienceDraft) (model.Experience, error) {
	start := time.Now()

	updated, err := s.repo.UpdateExperience(ctx, id, draft)
	if err != nil {
		s.settle(ctx, OpUpdateExperience, start, err, slog.String("experience_id", id))
		return model.Experience{}, err
	}

	if !s.dispatch(UpdateExperienceFulfilled{Experience: updated}) {
		s.logNoop(ctx, OpUpdateExperience,
			slog.String("user_id", updated.UserID),
			slog.String("experience_id", updated.ID),
		)
	}
	s.settle(ctx, OpUpdateExperience, start, nil,
		slog.String("user_id", updated.UserID),
		slog.String("experience_id", updated.ID),
	)
	return updated, nil
}

// DeleteExperience は職歴を削除し、experience.UserIDのユーザーの職歴リストから取り除く。
func (s *Store) DeleteExperience(ctx context.Context, experience model.Experience) error {
	start := time.Now()
	attrs := []any{
		slog.String("user_id", experience.UserID),
		slog.String("experience_id", experience.ID),
	}

	if err := s.repo.DeleteExperience(ctx, experience.ID); err != nil {
		s.settle(ctx, OpDeleteExperience, start, err, attrs...)
		return err
	}

	if !s.dispatch(DeleteExperienceFulfilled{Experience: experience}) {
		s.logNoop(ctx, OpDeleteExperience, attrs...)
	}
	s.settle(ctx, OpDeleteExperience, start, nil, attrs...)
	return nil
}

// AllUsers は全ユーザーを挿入順で返す。
func (s *Store) AllUsers() []model.User {
	return s.Snapshot().Users()
}

// UserByID は指定IDのユーザーを返す。IDが空または未キャッシュの場合はfalseを返す。
func (s *Store) UserByID(id string) (model.User, bool) {
	return s.Snapshot().User(id)
}

// ExperienceByID は指定IDの職歴をキャッシュから探す。
func (s *Store) ExperienceByID(id string) (model.Experience, bool) {
	return s.Snapshot().Experience(id)
}

// FetchStatus はユーザー一覧取得の状態を返す。
func (s *Store) FetchStatus() model.FetchStatus {
	return s.Snapshot().Status
}

// FetchError は直近のユーザー一覧取得の失敗メッセージを返す。未発生の場合はfalseを返す。
func (s *Store) FetchError() (string, bool) {
	msg := s.Snapshot().Error
	return msg, msg != ""
}

// settle はミューテーションの完了をログとメトリクスに記録する。
func (s *Store) settle(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	duration := time.Since(start)
	if s.recorder != nil {
		s.recorder.RecordMutation(op, err, duration)
	}

	args := append([]any{
		slog.String("operation", op),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
	}, attrs...)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
		s.logger.WarnContext(ctx, "store mutation failed", args...)
		return
	}
	s.logger.InfoContext(ctx, "store mutation settled", args...)
}

// logNoop はマージ先が見つからず状態が変わらなかったことを記録する。エラーではない。
func (s *Store) logNoop(ctx context.Context, op string, attrs ...any) {
	args := append([]any{
		slog.String("operation", op),
		slog.String("reason", "target_not_cached"),
	}, attrs...)
	s.logger.DebugContext(ctx, "store merge skipped", args...)
}

// errorMessage はエラーから人間可読なメッセージを取り出す。
func errorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}
