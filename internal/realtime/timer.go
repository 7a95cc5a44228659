package realtime

import "time"

// CancelFunc은 예약된 호출을 취소합니다.
// 이미 실행됐거나 취소된 경우 false를 반환합니다.
type CancelFunc func() bool

// Scheduler는 재연결 지연에 사용하는 타이머 서비스입니다.
// 테스트에서 시간 제어를 위해 주입 가능합니다.
type Scheduler interface {
	// Schedule은 d 이후 fn을 한 번 호출하도록 예약합니다.
	Schedule(d time.Duration, fn func()) CancelFunc
}

// systemScheduler는 time.AfterFunc 기반 기본 구현입니다.
type systemScheduler struct{}

func (systemScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return t.Stop
}
