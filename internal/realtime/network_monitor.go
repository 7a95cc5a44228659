// Package realtime은 대시보드와 서버 간의 지속 연결을 관리합니다.
// network_monitor.go는 네트워크 인터페이스 변경을 감지하여 재연결을 트리거합니다.
package realtime

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/insajin/dashboard-link/internal/logger"
)

// DefaultNetworkCheckInterval은 네트워크 변경 감지 기본 폴링 간격입니다.
const DefaultNetworkCheckInterval = 5 * time.Second

// PingTimeout은 ping 응답 대기 시간입니다.
const PingTimeout = 5 * time.Second

// NetworkMonitor는 네트워크 인터페이스 변경을 감지하여 재연결을 트리거합니다.
// 주기적으로 net.InterfaceAddrs()를 폴링하여 주소 변경을 감지하고,
// 변경이 감지되면 연결 유효성을 검증한 후 비정상 종료를 일으켜
// 표준 재연결 경로를 타게 합니다.
type NetworkMonitor struct {
	// client는 감시 대상 클라이언트입니다.
	client *Client
	// checkInterval은 폴링 간격입니다.
	checkInterval time.Duration

	// lastAddrs는 마지막으로 확인된 네트워크 주소 목록입니다.
	lastAddrs []string
	// mu는 lastAddrs 접근을 보호하는 뮤텍스입니다.
	mu sync.Mutex

	// getAddrs는 네트워크 주소를 조회하는 함수입니다.
	// 테스트에서 주입 가능하도록 함수 필드로 정의합니다.
	getAddrs func() ([]string, error)

	// onChangeCallback은 변경 감지 시 호출되는 콜백입니다 (테스트용).
	onChangeCallback func()
}

// NewNetworkMonitor는 새로운 NetworkMonitor를 생성합니다.
func NewNetworkMonitor(client *Client, interval time.Duration) *NetworkMonitor {
	if interval <= 0 {
		interval = DefaultNetworkCheckInterval
	}

	return &NetworkMonitor{
		client:        client,
		checkInterval: interval,
		getAddrs:      defaultGetInterfaceAddrs,
	}
}

// Start는 네트워크 모니터링 고루틴을 시작합니다.
// 전달된 컨텍스트가 취소되면 모니터링을 중지합니다.
func (m *NetworkMonitor) Start(ctx context.Context) {
	addrs, err := m.getAddrs()
	if err != nil {
		logger.Warn().Err(err).Msg("네트워크 주소 초기 조회 실패, 빈 상태로 시작합니다")
	}

	m.mu.Lock()
	m.lastAddrs = addrs
	m.mu.Unlock()

	logger.Info().
		Int("addr_count", len(addrs)).
		Dur("interval", m.checkInterval).
		Msg("네트워크 변경 감지 모니터 시작")

	go m.monitorLoop(ctx)
}

// monitorLoop는 주기적으로 네트워크 변경을 감지하는 루프입니다.
func (m *NetworkMonitor) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("네트워크 모니터 종료 (컨텍스트 취소)")
			return
		case <-ticker.C:
			if m.hasChanged() {
				logger.Info().Msg("네트워크 인터페이스 변경 감지됨")

				if m.onChangeCallback != nil {
					m.onChangeCallback()
				}

				if !m.validateConnection() {
					logger.Warn().Msg("연결이 유효하지 않음, 재연결 트리거")
					m.client.TriggerReconnect("네트워크 변경 감지")
					continue
				}

				logger.Info().Msg("네트워크 변경 감지되었으나 연결은 유효함")
			}
		}
	}
}

// hasChanged는 네트워크 인터페이스 주소가 변경되었는지 확인합니다.
func (m *NetworkMonitor) hasChanged() bool {
	currentAddrs, err := m.getAddrs()
	if err != nil {
		logger.Debug().Err(err).Msg("네트워크 주소 조회 실패, 변경 없음으로 처리")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	changed := !equalStringSlices(m.lastAddrs, currentAddrs)

	// 항상 최신 주소로 갱신
	m.lastAddrs = currentAddrs

	return changed
}

// validateConnection은 연결이 유효한지 ping으로 검증합니다.
func (m *NetworkMonitor) validateConnection() bool {
	if m.client.State() != StateConnected {
		return false
	}

	if err := m.client.Ping(); err != nil {
		logger.Debug().Err(err).Msg("ping 실패")
		return false
	}

	return true
}

// defaultGetInterfaceAddrs는 시스템의 네트워크 인터페이스 주소를 조회합니다.
// 결과는 정렬된 문자열 슬라이스로 반환됩니다.
func defaultGetInterfaceAddrs() ([]string, error) {
	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(ifaces))
	for _, addr := range ifaces {
		// 루프백 주소(127.0.0.1, ::1) 제외
		addrStr := addr.String()
		if strings.HasPrefix(addrStr, "127.") || strings.HasPrefix(addrStr, "::1") {
			continue
		}
		addrs = append(addrs, addrStr)
	}

	// 결정적 비교를 위해 정렬
	sort.Strings(addrs)

	return addrs, nil
}

// equalStringSlices는 두 문자열 슬라이스가 동일한지 비교합니다.
// 두 슬라이스 모두 정렬되어 있다고 가정합니다.
func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
