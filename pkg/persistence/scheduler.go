package persistence

import "time"

// Timer は予約済み処理の取り消しハンドルです。
type Timer interface {
	Stop() bool
}

// Scheduler は遅延実行を予約します。テストでは時刻を手動で進める実装に差し替えます。
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
