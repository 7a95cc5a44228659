// Package realtime은 대시보드와 서버 간의 지속 연결을 관리합니다.
// client.go는 연결 상태 기계, transport 소유권, 라이프사이클 이벤트 발행,
// 재연결 오케스트레이션을 담당하는 ConnectionManager입니다.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insajin/dashboard-link/internal/logger"
	"github.com/insajin/dashboard-link/internal/metrics"
)

// DefaultConnectTimeout은 연결 타임아웃 기본값입니다.
const DefaultConnectTimeout = 30 * time.Second

// ConnectionState는 연결 상태를 나타냅니다.
// Client는 항상 정확히 하나의 상태를 가지며 전이는 직렬화됩니다.
type ConnectionState int32

const (
	// StateDisconnected는 연결되지 않은 상태입니다.
	StateDisconnected ConnectionState = iota
	// StateConnecting은 연결 중인 상태입니다.
	StateConnecting
	// StateConnected는 연결된 상태입니다.
	StateConnected
)

// String은 ConnectionState의 문자열 표현을 반환합니다.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectionError는 연결 수립 실패를 나타냅니다.
type ConnectionError struct {
	// Addr는 연결을 시도한 주소입니다.
	Addr string
	// Err는 원인 오류입니다.
	Err error
}

// Error는 error 인터페이스 구현입니다.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("연결 실패 (%s): %v", e.Addr, e.Err)
}

// Unwrap은 원인 오류를 반환합니다.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ReconnectionConfig는 재연결 정책 설정입니다.
type ReconnectionConfig struct {
	// InitialDelay는 첫 재연결까지의 지연 시간입니다.
	InitialDelay time.Duration
	// MaxDelay는 지수 백오프의 상한입니다.
	MaxDelay time.Duration
	// BackoffFactor는 지수 백오프 배수입니다.
	BackoffFactor float64
	// MaxAttempts는 연속 실패 허용 횟수입니다 (0 = 재연결 안 함).
	MaxAttempts int
}

// Config는 Client 생성 시 캡처되는 불변 설정입니다.
type Config struct {
	// Addr는 연결 대상 주소입니다 (ws:// 또는 wss://).
	Addr string
	// ReconnectOnClose는 비정상 종료 시 자동 재연결 여부입니다.
	ReconnectOnClose bool
	// ConnectTimeout은 연결 수립 타임아웃입니다.
	ConnectTimeout time.Duration
	// Reconnection은 재연결 정책 설정입니다.
	Reconnection ReconnectionConfig
}

// DefaultConfig는 기본값(자동 재연결, 30초 타임아웃, 1초/120초/2.0/10회 백오프)을
// 사용하는 설정을 반환합니다.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:             addr,
		ReconnectOnClose: true,
		ConnectTimeout:   DefaultConnectTimeout,
		Reconnection: ReconnectionConfig{
			InitialDelay:  time.Second,
			MaxDelay:      120 * time.Second,
			BackoffFactor: 2.0,
			MaxAttempts:   10,
		},
	}
}

// Client는 지속 연결 클라이언트입니다.
// Transport 핸들을 배타적으로 소유하며, 프로세스 전역 상태 없이
// 여러 Client 인스턴스를 독립적으로 생성할 수 있습니다.
type Client struct {
	cfg Config
	// id는 로그 상관용 클라이언트 식별자입니다.
	id  string
	log zerolog.Logger

	dialer    Dialer
	scheduler Scheduler
	stats     *metrics.Metrics

	// state는 현재 연결 상태입니다.
	state atomic.Int32

	// mu는 transport 핸들과 세대 카운터, 예약된 타이머 접근을 보호합니다.
	mu sync.Mutex
	// transport는 현재 열린 연결입니다. 재연결 시 이전 핸들이 닫힌 뒤 교체됩니다.
	transport Transport
	// gen은 연결 세대 카운터입니다. Disconnect나 종료 처리마다 증가하며,
	// 이전 세대 transport에서 늦게 도착한 콜백을 무시하는 데 사용합니다.
	gen uint64
	// cancelTimer는 예약된 재연결 타이머를 취소합니다.
	cancelTimer CancelFunc

	strategy   *ReconnectStrategy
	dispatcher *Dispatcher
	events     *emitter
}

// Option은 Client 설정 옵션입니다.
type Option func(*Client)

// WithDialer는 transport Dialer를 교체합니다 (테스트용).
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithScheduler는 재연결 타이머 서비스를 교체합니다 (테스트용).
func WithScheduler(s Scheduler) Option {
	return func(c *Client) {
		c.scheduler = s
	}
}

// WithMetrics는 운영 지표 수집기를 연결합니다.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.stats = m
	}
}

// WithReconnectStrategy는 재연결 정책을 교체합니다.
func WithReconnectStrategy(s *ReconnectStrategy) Option {
	return func(c *Client) {
		c.strategy = s
	}
}

// NewClient는 새로운 지속 연결 클라이언트를 생성합니다.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	c := &Client{
		cfg:        cfg,
		id:         uuid.New().String(),
		dispatcher: NewDispatcher(),
		events:     newEmitter(),
		scheduler:  systemScheduler{},
	}
	c.log = logger.WithClientID(c.id)

	for _, opt := range opts {
		opt(c)
	}

	if c.strategy == nil {
		rc := cfg.Reconnection
		c.strategy = NewReconnectStrategy(rc.InitialDelay, rc.MaxDelay, rc.BackoffFactor, rc.MaxAttempts)
	}
	if c.dialer == nil {
		c.dialer = &WebSocketDialer{HandshakeTimeout: cfg.ConnectTimeout}
	}

	c.state.Store(int32(StateDisconnected))
	return c
}

// ID는 클라이언트 식별자를 반환합니다.
func (c *Client) ID() string {
	return c.id
}

// State는 현재 연결 상태를 반환합니다.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Strategy는 재연결 정책을 반환합니다 (관측용).
func (c *Client) Strategy() *ReconnectStrategy {
	return c.strategy
}

// Connect는 설정된 주소로 연결을 수립합니다.
// 이미 CONNECTING/CONNECTED 상태이면 아무것도 하지 않고 즉시 반환합니다.
// 연결 수립 실패 시 error 이벤트를 발행하고 *ConnectionError를 반환하며,
// 합성된 비정상 종료가 재연결 경로로 이어집니다 (close 기반 단일 재시도 경로).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch ConnectionState(c.state.Load()) {
	case StateConnecting, StateConnected:
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.state.Store(int32(StateConnecting))
	c.mu.Unlock()

	if c.stats != nil {
		c.stats.ConnectionAttempts.Add(1)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	events := TransportEvents{
		OnMessage: func(data string) { c.handleMessage(gen, data) },
		OnError:   func(err error) { c.handleTransportError(gen, err) },
		OnClose:   func(code int, reason string) { c.handleClose(gen, code, reason) },
	}

	t, err := c.dialer.Dial(dialCtx, c.cfg.Addr, events)
	if err != nil {
		cerr := &ConnectionError{Addr: c.cfg.Addr, Err: err}

		c.mu.Lock()
		if c.gen != gen {
			// Disconnect가 이 시도를 포기시킴
			c.mu.Unlock()
			return cerr
		}
		c.state.Store(int32(StateDisconnected))
		c.mu.Unlock()

		if c.stats != nil {
			c.stats.ConnectionFailures.Add(1)
		}
		c.log.Warn().Err(err).Str("addr", c.cfg.Addr).Msg("연결 수립 실패")
		c.events.emit(Event{Type: EventError, Err: cerr})

		// 열리지 못한 연결도 비정상 종료를 신호하여 동일한 재시도 경로를 탄다
		c.handleClose(gen, CloseAbnormal, err.Error())
		return cerr
	}

	c.mu.Lock()
	if c.gen != gen {
		// dial 도중 Disconnect됨 - 새 핸들을 즉시 폐기
		c.mu.Unlock()
		_ = t.Close(CloseNormal, "connect abandoned")
		return &ConnectionError{Addr: c.cfg.Addr, Err: context.Canceled}
	}
	c.transport = t
	c.state.Store(int32(StateConnected))
	c.mu.Unlock()

	// 연결 성공 시에만 시도 카운터를 초기화 - 연속 실패 횟수를 제한하는 근거
	c.strategy.Reset()

	if c.stats != nil {
		c.stats.ConnectionSuccesses.Add(1)
	}
	c.log.Info().Str("addr", c.cfg.Addr).Msg("연결됨")
	c.events.emit(Event{Type: EventConnected})
	return nil
}

// Disconnect는 연결을 정상 코드(1000)로 종료합니다.
// 예약된 재연결 타이머를 취소하므로 수동 종료 후 자동 재연결은 발생하지 않습니다.
// 진행 중인 Connect가 있으면 포기시킵니다.
func (c *Client) Disconnect(reason string) {
	c.mu.Lock()
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
	t := c.transport
	c.transport = nil
	c.gen++
	prev := ConnectionState(c.state.Load())
	c.state.Store(int32(StateDisconnected))
	c.mu.Unlock()

	if prev == StateDisconnected {
		return
	}

	if t != nil {
		_ = t.Close(CloseNormal, reason)
	}

	c.log.Info().Str("reason", reason).Msg("연결 종료")
	c.events.emit(Event{Type: EventDisconnected, Code: CloseNormal, Reason: reason})
}

// SendMessage는 페이로드를 서버로 전송합니다.
// CONNECTED 상태가 아니면 부작용 없이 false를 반환합니다.
// 문자열은 그대로, 그 외 값은 JSON으로 직렬화하여 전송합니다.
func (c *Client) SendMessage(payload any) bool {
	if c.State() != StateConnected {
		return false
	}

	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return false
	}

	var text string
	switch v := payload.(type) {
	case string:
		text = v
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			c.log.Warn().Err(err).Msg("페이로드 직렬화 실패")
			return false
		}
		text = string(data)
	}

	if err := t.Send(text); err != nil {
		c.log.Warn().Err(err).Msg("메시지 전송 실패")
		return false
	}

	if c.stats != nil {
		c.stats.MessagesSent.Add(1)
	}
	return true
}

// AddEventListener는 라이프사이클 이벤트 리스너를 등록하고 등록 ID를 반환합니다.
func (c *Client) AddEventListener(event EventType, fn EventListener) int {
	return c.events.add(event, fn)
}

// RemoveEventListener는 리스너를 제거하고 실제로 존재했는지 여부를 반환합니다.
func (c *Client) RemoveEventListener(event EventType, id int) bool {
	return c.events.remove(event, id)
}

// RegisterMessageHandler는 메시지 타입 핸들러 등록을 디스패처에 위임합니다.
func (c *Client) RegisterMessageHandler(msgType string, fn MessageCallback) int {
	return c.dispatcher.RegisterHandler(msgType, fn)
}

// UnregisterMessageHandler는 메시지 타입의 핸들러를 모두 제거합니다.
func (c *Client) UnregisterMessageHandler(msgType string) bool {
	return c.dispatcher.UnregisterHandler(msgType)
}

// Reconnect는 재연결 정책에 따라 다음 연결 시도를 예약합니다.
// 예산이 소진된 경우 reconnect_failed 이벤트를 발행하고 타이머를 예약하지 않습니다.
// 내부 종료 처리에서 호출되며 수동 트리거용으로도 노출됩니다.
func (c *Client) Reconnect() {
	if !c.strategy.CanRetry() {
		c.log.Warn().Int("max_attempts", c.strategy.MaxAttempts()).Msg("재연결 시도 예산 소진")
		c.events.emit(Event{Type: EventReconnectFailed, MaxAttempts: c.strategy.MaxAttempts()})
		return
	}

	delay := c.strategy.NextDelay()
	attempt := c.strategy.CurrentAttempt()

	if c.stats != nil {
		c.stats.Reconnections.Add(1)
	}
	c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("재연결 예약")
	c.events.emit(Event{Type: EventReconnecting, Attempt: attempt, Delay: delay})

	c.mu.Lock()
	if c.cancelTimer != nil {
		c.cancelTimer()
	}
	c.cancelTimer = c.scheduler.Schedule(delay, func() {
		c.mu.Lock()
		c.cancelTimer = nil
		c.mu.Unlock()
		_ = c.Connect(context.Background())
	})
	c.mu.Unlock()
}

// Ping은 현재 transport로 ping을 전송하여 연결 유효성을 검증합니다.
// ping을 지원하지 않는 transport에서는 항상 성공으로 처리합니다.
func (c *Client) Ping() error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return net.ErrClosed
	}

	if p, ok := t.(interface{ Ping() error }); ok {
		return p.Ping()
	}
	return nil
}

// TriggerReconnect는 현재 연결을 비정상 종료시켜 재연결 경로에 진입시킵니다.
// 네트워크 변경 감지 등 연결 유효성이 의심될 때 사용합니다.
func (c *Client) TriggerReconnect(reason string) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return
	}

	c.log.Info().Str("reason", reason).Msg("재연결 강제 트리거")
	_ = t.Close(CloseAbnormal, reason)
}

// handleMessage는 transport 메시지 이벤트를 처리합니다.
// 원문을 디스패처에 그대로 전달하고, 파싱 결과를 타입별 핸들러 매칭 여부와
// 무관하게 message 라이프사이클 이벤트로 발행합니다.
func (c *Client) handleMessage(gen uint64, data string) {
	if c.isStale(gen) {
		return
	}

	if c.stats != nil {
		c.stats.MessagesReceived.Add(1)
	}

	msg := c.dispatcher.Process(data)
	if !msg.Parsed {
		if c.stats != nil {
			c.stats.ParseFailures.Add(1)
		}
		c.log.Debug().Str("raw", msg.Raw).Msg("메시지 파싱 실패, unparsed로 전달")
	}

	c.events.emit(Event{Type: EventMessage, Message: &msg})
}

// handleTransportError는 transport 오류 이벤트를 처리합니다.
// 읽기 오류는 대부분 close로 이어지므로 여기서는 이벤트 발행만 합니다.
func (c *Client) handleTransportError(gen uint64, err error) {
	if c.isStale(gen) {
		return
	}
	c.events.emit(Event{Type: EventError, Err: err})
}

// handleClose는 transport 종료 이벤트를 처리합니다.
// 종료는 연결 손실의 표준 신호입니다: 정상 코드(1000)이거나 자동 재연결이
// 꺼져 있으면 DISCONNECTED로 종결하고, 그 외에는 재연결 정책을 따릅니다.
func (c *Client) handleClose(gen uint64, code int, reason string) {
	c.mu.Lock()
	if c.gen != gen {
		// 이전 세대 transport의 늦은 콜백은 무시
		c.mu.Unlock()
		return
	}
	c.gen++
	c.transport = nil
	c.state.Store(int32(StateDisconnected))
	c.mu.Unlock()

	c.log.Info().Int("code", code).Str("reason", reason).Msg("연결 끊김")
	c.events.emit(Event{Type: EventDisconnected, Code: code, Reason: reason})

	if code != CloseNormal && c.cfg.ReconnectOnClose {
		c.Reconnect()
	}
}

// isStale은 콜백의 세대가 현재 연결 세대와 다른지 확인합니다.
func (c *Client) isStale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}
