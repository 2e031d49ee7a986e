// Package refresh はユーザー一覧の定期的な再取得を提供する。
// 再取得はストアのFetchAllUsersを呼ぶだけで、キャッシュ済みのユーザーは上書きされない。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// UserFetcher はユーザー一覧の取得インターフェース。*store.Store が実装する。
type UserFetcher interface {
	FetchAllUsers(ctx context.Context) error
}

// RefreshRecorder は再取得の結果を記録するインターフェース。metrics.Collector が実装する。
type RefreshRecorder interface {
	RecordRefresh(err error)
}

// Scheduler は一定間隔でユーザー一覧を再取得する。
// 失敗した場合は間隔の代わりに指数バックオフで次の試行まで待つ。
// 単一のゴルーチン（Start）から使用する。
type Scheduler struct {
	fetcher  UserFetcher
	recorder RefreshRecorder
	logger   *slog.Logger
	interval time.Duration

	consecutiveErrors int
	after             func(time.Duration) <-chan time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(fetcher UserFetcher, recorder RefreshRecorder, logger *slog.Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		fetcher:  fetcher,
		recorder: recorder,
		logger:   logger,
		interval: interval,
		after:    time.After,
	}
}

// Start はスケジューラを起動し、コンテキストがキャンセルされるまで再取得を繰り返す。
// 起動直後に1回実行する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("ユーザー一覧の定期再取得を開始しました",
		slog.Duration("interval", s.interval),
	)

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("ユーザー一覧の定期再取得を停止しました")
			return
		case <-s.after(s.NextDelay()):
		}
	}
}

// RunOnce はユーザー一覧を1回再取得し、結果に応じて連続エラー回数を更新する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := s.fetcher.FetchAllUsers(ctx)
	if s.recorder != nil {
		s.recorder.RecordRefresh(err)
	}

	if err != nil {
		s.consecutiveErrors++
		s.logger.Warn("ユーザー一覧の再取得に失敗しました",
			slog.Int("consecutive_errors", s.consecutiveErrors),
			slog.Duration("retry_in", s.NextDelay()),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.consecutiveErrors = 0
	s.logger.Debug("ユーザー一覧を再取得しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// NextDelay は次の再取得までの待ち時間を返す。
// 直前が失敗していればバックオフ遅延、そうでなければ設定された間隔。
func (s *Scheduler) NextDelay() time.Duration {
	if s.consecutiveErrors > 0 {
		return CalculateBackoff(s.consecutiveErrors - 1)
	}
	return s.interval
}
