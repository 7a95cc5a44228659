// Package metrics는 링크 클라이언트의 운영 지표를 추적합니다.
// 연결 시도/성공/실패, 재연결, 메시지 송수신 카운터를 제공합니다.
package metrics

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Metrics는 링크 클라이언트의 운영 지표입니다.
// 모든 카운터는 동시 접근에 안전합니다.
type Metrics struct {
	// 연결 지표
	ConnectionAttempts  atomic.Int64
	ConnectionSuccesses atomic.Int64
	ConnectionFailures  atomic.Int64
	Reconnections       atomic.Int64

	// 메시지 지표
	MessagesSent     atomic.Int64
	MessagesReceived atomic.Int64
	ParseFailures    atomic.Int64

	startTime time.Time
}

// Snapshot은 지표의 특정 시점 복사본입니다.
type Snapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	Uptime              string    `json:"uptime"`
	ConnectionAttempts  int64     `json:"connection_attempts"`
	ConnectionSuccesses int64     `json:"connection_successes"`
	ConnectionFailures  int64     `json:"connection_failures"`
	Reconnections       int64     `json:"reconnections"`
	MessagesSent        int64     `json:"messages_sent"`
	MessagesReceived    int64     `json:"messages_received"`
	ParseFailures       int64     `json:"parse_failures"`
}

// New는 시작 시각이 현재로 설정된 Metrics를 생성합니다.
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// TakeSnapshot은 현재 지표의 복사본을 반환합니다.
func (m *Metrics) TakeSnapshot() Snapshot {
	now := time.Now()
	return Snapshot{
		Timestamp:           now,
		Uptime:              now.Sub(m.startTime).Round(time.Second).String(),
		ConnectionAttempts:  m.ConnectionAttempts.Load(),
		ConnectionSuccesses: m.ConnectionSuccesses.Load(),
		ConnectionFailures:  m.ConnectionFailures.Load(),
		Reconnections:       m.Reconnections.Load(),
		MessagesSent:        m.MessagesSent.Load(),
		MessagesReceived:    m.MessagesReceived.Load(),
		ParseFailures:       m.ParseFailures.Load(),
	}
}

// JSON은 스냅샷을 JSON으로 직렬화합니다.
func (m *Metrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m.TakeSnapshot(), "", "  ")
}
