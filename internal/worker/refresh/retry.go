package refresh

import "time"

const (
	// initialBackoff は指数バックオフの初回遅延（30秒）。
	initialBackoff = 30 * time.Second
	// maxBackoff は指数バックオフの最大遅延（10分）。
	maxBackoff = 10 * time.Minute
)

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30秒、2倍ずつ増加、最大10分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
