// Package realtime은 대시보드와 서버 간의 지속 연결을 관리합니다.
// transport.go는 duplex 소켓 추상화와 gorilla/websocket 구현을 제공합니다.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// CloseNormal은 정상 종료 코드입니다. 이 코드로 닫힌 연결은 재연결하지 않습니다.
	CloseNormal = websocket.CloseNormalClosure
	// CloseAbnormal은 비정상 종료 코드입니다. 재연결 정책의 대상입니다.
	CloseAbnormal = websocket.CloseAbnormalClosure

	// MaxMessageSize는 최대 메시지 크기입니다 (1MB).
	MaxMessageSize = 1024 * 1024
	// WriteTimeout은 메시지 쓰기 타임아웃입니다.
	WriteTimeout = 10 * time.Second
)

// TransportEvents는 transport가 Client로 신호를 올리는 콜백 슬롯입니다.
type TransportEvents struct {
	// OnMessage는 텍스트/바이너리 메시지 수신 시 호출됩니다.
	OnMessage func(data string)
	// OnError는 전송 계층 오류 발생 시 호출됩니다.
	OnError func(err error)
	// OnClose는 연결 종료 시 정확히 한 번 호출됩니다.
	OnClose func(code int, reason string)
}

// Transport는 열린 duplex 연결 하나를 나타냅니다.
// Client가 배타적으로 소유하며, 재연결 시 이전 핸들이 완전히 닫힌 뒤 새로 생성됩니다.
type Transport interface {
	// Send는 텍스트 메시지를 전송합니다. 연결이 열려 있는 동안만 유효합니다.
	Send(text string) error
	// Close는 지정한 코드와 사유로 연결을 닫습니다.
	Close(code int, reason string) error
}

// Dialer는 주소를 받아 transport를 엽니다.
// 테스트에서는 가짜 구현을 주입합니다.
type Dialer interface {
	Dial(ctx context.Context, addr string, events TransportEvents) (Transport, error)
}

// WebSocketDialer는 gorilla/websocket 기반 Dialer입니다.
type WebSocketDialer struct {
	// HandshakeTimeout은 핸드셰이크 타임아웃입니다.
	HandshakeTimeout time.Duration
}

// Dial은 WebSocket 연결을 열고 수신 루프를 시작합니다.
func (d *WebSocketDialer) Dial(ctx context.Context, addr string, events TransportEvents) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadLimit(MaxMessageSize)

	// 서버 PING에 대한 PONG 자동 응답
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(WriteTimeout))
	})

	t := &wsTransport{
		conn:   conn,
		events: events,
	}
	go t.readPump()

	return t, nil
}

// wsTransport는 gorilla/websocket 연결 하나를 감쌉니다.
type wsTransport struct {
	conn *websocket.Conn
	// writeMu는 WebSocket 쓰기 접근을 직렬화합니다.
	// gorilla/websocket은 동시 쓰기를 지원하지 않습니다.
	writeMu sync.Mutex
	events  TransportEvents

	// closeOnce는 OnClose가 정확히 한 번만 발행되도록 보장합니다.
	closeOnce sync.Once
}

// Send는 텍스트 메시지를 전송합니다.
func (t *wsTransport) Send(text string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close는 close 프레임을 전송하고 연결을 닫습니다.
// 비정상 코드(1006)는 와이어에 실을 수 없으므로 프레임 없이 즉시 닫습니다.
func (t *wsTransport) Close(code int, reason string) error {
	if code != CloseAbnormal {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(WriteTimeout),
		)
		t.writeMu.Unlock()
	}

	err := t.conn.Close()
	t.finish(code, reason)
	return err
}

// Ping은 ping 프레임을 전송하여 연결 유효성을 검증합니다.
func (t *wsTransport) Ping() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	return t.conn.WriteControl(
		websocket.PingMessage,
		[]byte("ping"),
		time.Now().Add(WriteTimeout),
	)
}

// readPump는 메시지를 지속적으로 수신합니다.
// gorilla/websocket은 읽기 에러 후 동일 conn에서 재시도할 수 없으므로
// 에러 발생 시 즉시 루프를 종료하고 close를 신호합니다.
func (t *wsTransport) readPump() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			code, reason := closeCodeFromError(err)
			_ = t.conn.Close()
			t.finish(code, reason)
			return
		}

		if t.events.OnMessage != nil {
			t.events.OnMessage(string(data))
		}
	}
}

// finish는 OnClose 콜백을 정확히 한 번 발행합니다.
func (t *wsTransport) finish(code int, reason string) {
	t.closeOnce.Do(func() {
		if t.events.OnClose != nil {
			t.events.OnClose(code, reason)
		}
	})
}

// closeCodeFromError는 읽기 에러에서 종료 코드를 추출합니다.
// close 프레임이 아닌 에러(네트워크 단절 등)는 비정상 종료로 간주합니다.
func closeCodeFromError(err error) (int, string) {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code, ce.Text
	}
	return CloseAbnormal, err.Error()
}
