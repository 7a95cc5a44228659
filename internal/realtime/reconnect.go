// Package realtime은 대시보드와 서버 간의 지속 연결을 관리합니다.
// reconnect.go는 지수 백오프 재연결 정책을 구현합니다.
package realtime

import (
	"math"
	"sync"
	"time"
)

// ReconnectStrategy는 지수 백오프 재연결 정책을 구현합니다.
// I/O 없이 지연 시간과 시도 예산만 계산하는 순수 정책 객체입니다.
// delay = min(maxDelay, initialDelay * backoffFactor^currentAttempt)
type ReconnectStrategy struct {
	// initialDelay는 초기 재연결 지연 시간입니다.
	initialDelay time.Duration
	// maxDelay는 최대 재연결 지연 시간입니다.
	maxDelay time.Duration
	// backoffFactor는 지수 백오프 배수입니다.
	backoffFactor float64
	// maxAttempts는 최대 재연결 시도 횟수입니다 (0 = 재연결 안 함).
	maxAttempts int

	// mu는 카운터 접근을 보호하는 뮤텍스입니다.
	mu sync.RWMutex
	// currentAttempt는 현재 재연결 시도 횟수입니다.
	currentAttempt int
	// lastDelay는 마지막으로 계산된 지연 시간입니다.
	lastDelay time.Duration
}

// NewReconnectStrategy는 새로운 재연결 정책을 생성합니다.
// maxAttempts가 0이면 재연결을 시도하지 않습니다.
func NewReconnectStrategy(initialDelay, maxDelay time.Duration, backoffFactor float64, maxAttempts int) *ReconnectStrategy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if backoffFactor <= 0 {
		backoffFactor = 1.0
	}

	return &ReconnectStrategy{
		initialDelay:  initialDelay,
		maxDelay:      maxDelay,
		backoffFactor: backoffFactor,
		maxAttempts:   maxAttempts,
	}
}

// DefaultReconnectStrategy는 기본값(1초 시작, 최대 120초, 배수 2.0, 10회)을 사용하는 정책을 생성합니다.
func DefaultReconnectStrategy() *ReconnectStrategy {
	return NewReconnectStrategy(time.Second, 120*time.Second, 2.0, 10)
}

// NextDelay는 다음 재연결까지 대기해야 할 시간을 반환하고 시도 횟수를 증가시킵니다.
// 지수 백오프 공식: delay = initialDelay * (backoffFactor ^ currentAttempt)
// 최대 지연 시간에 도달하면 maxDelay를 반환합니다.
func (r *ReconnectStrategy) NextDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	// float 단계에서 먼저 클램핑하여 큰 시도 횟수에서도 오버플로하지 않음
	raw := float64(r.initialDelay) * math.Pow(r.backoffFactor, float64(r.currentAttempt))
	delay := r.maxDelay
	if raw < float64(r.maxDelay) {
		delay = time.Duration(raw)
	}

	r.lastDelay = delay
	r.currentAttempt++
	return delay
}

// Reset은 재연결 시도 횟수를 초기화합니다.
// 연결 성공 시마다 정확히 한 번 호출해야 하며, 실패한 시도에서는 호출하지 않습니다.
func (r *ReconnectStrategy) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentAttempt = 0
	r.lastDelay = 0
}

// CanRetry는 재연결 시도 예산이 남아 있는지 확인합니다.
// maxAttempts가 0이면 항상 false입니다 (재연결 안 함).
func (r *ReconnectStrategy) CanRetry() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.currentAttempt < r.maxAttempts
}

// CurrentAttempt는 현재 재연결 시도 횟수를 반환합니다.
func (r *ReconnectStrategy) CurrentAttempt() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.currentAttempt
}

// MaxAttempts는 최대 재연결 시도 횟수를 반환합니다.
func (r *ReconnectStrategy) MaxAttempts() int {
	return r.maxAttempts
}

// LastDelay는 마지막으로 계산된 지연 시간을 반환합니다.
func (r *ReconnectStrategy) LastDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastDelay
}
