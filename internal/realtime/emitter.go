// Package realtime은 대시보드와 서버 간의 지속 연결을 관리합니다.
// emitter.go는 라이프사이클 이벤트 pub/sub 유틸리티입니다.
package realtime

import (
	"sync"
	"time"
)

// EventType은 Client가 발행하는 라이프사이클 이벤트 이름입니다.
type EventType string

const (
	// EventConnected는 연결 성공 시 발행됩니다.
	EventConnected EventType = "connected"
	// EventDisconnected는 연결 종료 시 발행됩니다.
	EventDisconnected EventType = "disconnected"
	// EventError는 연결 오류 발생 시 발행됩니다.
	EventError EventType = "error"
	// EventMessage는 메시지 수신 시 발행됩니다 (타입별 핸들러 매칭 여부와 무관).
	EventMessage EventType = "message"
	// EventReconnecting은 재연결 시도가 예약될 때 발행됩니다.
	EventReconnecting EventType = "reconnecting"
	// EventReconnectFailed는 재연결 예산이 소진됐을 때 발행됩니다.
	EventReconnectFailed EventType = "reconnect_failed"
)

// Event는 라이프사이클 이벤트의 내용입니다.
// 이벤트 타입에 따라 사용되는 필드가 다릅니다.
type Event struct {
	// Type은 이벤트 종류입니다.
	Type EventType
	// Code와 Reason은 disconnected 이벤트의 종료 코드/사유입니다.
	Code   int
	Reason string
	// Err는 error 이벤트의 원인입니다.
	Err error
	// Attempt와 Delay는 reconnecting 이벤트의 시도 번호와 대기 시간입니다.
	Attempt int
	Delay   time.Duration
	// MaxAttempts는 reconnect_failed 이벤트의 설정된 최대 시도 횟수입니다.
	MaxAttempts int
	// Message는 message 이벤트의 파싱 결과입니다.
	Message *ProcessedMessage
}

// EventListener는 라이프사이클 이벤트 콜백입니다.
type EventListener func(Event)

// listenerEntry는 등록 ID가 부여된 리스너입니다.
// Go 함수 값은 비교할 수 없으므로 제거는 ID로 수행합니다.
type listenerEntry struct {
	id int
	fn EventListener
}

// emitter는 이벤트 이름별 리스너 레지스트리입니다.
// 발행은 호출 스레드에서 동기적으로 수행됩니다.
type emitter struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[EventType][]listenerEntry
}

func newEmitter() *emitter {
	return &emitter{
		listeners: make(map[EventType][]listenerEntry),
	}
}

// add는 리스너를 등록하고 제거에 사용할 ID를 반환합니다.
func (e *emitter) add(event EventType, fn EventListener) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.listeners[event] = append(e.listeners[event], listenerEntry{id: e.nextID, fn: fn})
	return e.nextID
}

// remove는 리스너를 제거하고 실제로 존재했는지 여부를 반환합니다.
func (e *emitter) remove(event EventType, id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.listeners[event]
	for i, entry := range entries {
		if entry.id == id {
			e.listeners[event] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// emit은 등록된 모든 리스너를 동기적으로 호출합니다.
// 패닉하는 리스너가 다른 리스너의 호출을 막지 않습니다.
func (e *emitter) emit(evt Event) {
	e.mu.RLock()
	entries := make([]listenerEntry, len(e.listeners[evt.Type]))
	copy(entries, e.listeners[evt.Type])
	e.mu.RUnlock()

	for _, entry := range entries {
		invokeListener(entry.fn, evt)
	}
}

func invokeListener(fn EventListener, evt Event) {
	defer func() {
		_ = recover()
	}()
	fn(evt)
}
