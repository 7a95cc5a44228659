// Package realtime은 대시보드와 서버 간의 지속 연결을 관리합니다.
// handler.go는 수신 메시지의 파싱과 타입별 디스패치를 담당합니다.
package realtime

import (
	"encoding/json"
	"sync"
)

// TypeUnparsed는 파싱에 실패한 메시지에 부여되는 타입 판별자입니다.
const TypeUnparsed = "unparsed"

// ProcessedMessage는 수신 페이로드의 파싱 결과입니다.
// Parsed가 false이면 Type은 TypeUnparsed이고 Raw만 유효합니다.
// 소비자는 Type 판별자로 분기할 수 있습니다.
type ProcessedMessage struct {
	// Type은 메시지 타입 판별자입니다.
	Type string `json:"type"`
	// Payload는 메시지의 payload 필드 원문입니다 (없을 수 있음).
	Payload json.RawMessage `json:"payload,omitempty"`
	// Raw는 수신한 페이로드 원문입니다.
	Raw string `json:"-"`
	// Parsed는 구조화 파싱 성공 여부입니다.
	Parsed bool `json:"-"`
}

// MessageCallback은 타입별 메시지 핸들러 콜백입니다.
type MessageCallback func(msg ProcessedMessage)

// handlerEntry는 등록 ID가 부여된 핸들러입니다.
type handlerEntry struct {
	id int
	fn MessageCallback
}

// Dispatcher는 메시지 타입 문자열을 핸들러 집합에 매핑하는 디스패치 테이블입니다.
// 한 타입에 여러 핸들러를 등록할 수 있으며 등록 순서대로 모두 호출됩니다.
type Dispatcher struct {
	// mu는 handlers 맵 접근을 보호하는 뮤텍스입니다.
	mu sync.RWMutex
	// nextID는 핸들러 등록 ID 시퀀스입니다.
	nextID int
	// handlers는 메시지 타입별 핸들러 목록입니다.
	handlers map[string][]handlerEntry
}

// NewDispatcher는 새로운 디스패처를 생성합니다.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]handlerEntry),
	}
}

// RegisterHandler는 메시지 타입에 대한 핸들러를 추가하고 등록 ID를 반환합니다.
func (d *Dispatcher) RegisterHandler(msgType string, fn MessageCallback) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.handlers[msgType] = append(d.handlers[msgType], handlerEntry{id: d.nextID, fn: fn})
	return d.nextID
}

// UnregisterHandler는 메시지 타입의 모든 핸들러를 제거하고
// 실제로 제거된 것이 있는지 여부를 반환합니다.
func (d *Dispatcher) UnregisterHandler(msgType string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.handlers[msgType]) == 0 {
		return false
	}
	delete(d.handlers, msgType)
	return true
}

// Process는 수신 페이로드를 파싱하고 매칭되는 핸들러를 모두 호출한 뒤
// 파싱 결과를 반환합니다.
// 파싱 실패는 에러가 아니라 TypeUnparsed 래퍼로 처리됩니다.
// 메시지 손상이 연결을 중단시켜서는 안 됩니다.
func (d *Dispatcher) Process(raw string) ProcessedMessage {
	msg := parseMessage(raw)

	d.mu.RLock()
	entries := make([]handlerEntry, len(d.handlers[msg.Type]))
	copy(entries, d.handlers[msg.Type])
	d.mu.RUnlock()

	// 등록 순서대로 호출. 패닉하는 핸들러가 나머지 호출을 막지 않도록 격리.
	for _, entry := range entries {
		invokeHandler(entry.fn, msg)
	}

	return msg
}

func invokeHandler(fn MessageCallback, msg ProcessedMessage) {
	defer func() {
		_ = recover()
	}()
	fn(msg)
}

// parseMessage는 원문을 태그된 구조로 파싱합니다.
// type 필드가 없거나 JSON이 아니면 TypeUnparsed 래퍼를 반환합니다.
func parseMessage(raw string) ProcessedMessage {
	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil || envelope.Type == "" {
		return ProcessedMessage{
			Type:   TypeUnparsed,
			Raw:    raw,
			Parsed: false,
		}
	}

	return ProcessedMessage{
		Type:    envelope.Type,
		Payload: envelope.Payload,
		Raw:     raw,
		Parsed:  true,
	}
}
