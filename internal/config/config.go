// Package config는 대시보드 링크 클라이언트의 설정 관리를 담당합니다.
// 설정 우선순위: 환경변수 > 설정파일 > 기본값
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config는 전체 애플리케이션 설정을 나타냅니다.
type Config struct {
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Logging        LoggingConfig        `mapstructure:"logging" yaml:"logging"`
	Reconnection   ReconnectionConfig   `mapstructure:"reconnection" yaml:"reconnection"`
	NetworkMonitor NetworkMonitorConfig `mapstructure:"network_monitor" yaml:"network_monitor"`
}

// ServerConfig는 서버 연결 설정입니다.
type ServerConfig struct {
	// URL은 WebSocket 서버 주소입니다.
	URL string `mapstructure:"url" yaml:"url"`
	// TimeoutSeconds는 연결 타임아웃(초)입니다.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// ReconnectOnClose는 비정상 종료 시 자동 재연결 여부입니다.
	ReconnectOnClose bool `mapstructure:"reconnect_on_close" yaml:"reconnect_on_close"`
}

// LoggingConfig는 로깅 설정입니다.
type LoggingConfig struct {
	// Level은 로그 레벨입니다 (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`
	// Format은 로그 포맷입니다 (json, text).
	Format string `mapstructure:"format" yaml:"format"`
	// File은 로그 파일 경로입니다. 비어있으면 stdout으로 출력합니다.
	File string `mapstructure:"file" yaml:"file"`
}

// ReconnectionConfig는 재연결 정책 설정입니다.
type ReconnectionConfig struct {
	// MaxAttempts는 연속 실패 허용 횟수입니다 (0 = 재연결 안 함).
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// InitialDelayMs는 초기 재연결 지연 시간(밀리초)입니다.
	InitialDelayMs int `mapstructure:"initial_delay_ms" yaml:"initial_delay_ms"`
	// MaxDelayMs는 최대 재연결 지연 시간(밀리초)입니다.
	MaxDelayMs int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	// BackoffMultiplier는 지수 백오프 배수입니다.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// NetworkMonitorConfig는 네트워크 변경 감지 설정입니다.
type NetworkMonitorConfig struct {
	// Enabled는 네트워크 변경 감지 활성화 여부입니다.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// CheckIntervalSeconds는 폴링 간격(초)입니다.
	CheckIntervalSeconds int `mapstructure:"check_interval_seconds" yaml:"check_interval_seconds"`
}

// SetDefaults는 viper에 기본값을 등록합니다.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "wss://dashboard.example.com/ws")
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.reconnect_on_close", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("reconnection.max_attempts", 10)
	v.SetDefault("reconnection.initial_delay_ms", 1000)
	v.SetDefault("reconnection.max_delay_ms", 120000)
	v.SetDefault("reconnection.backoff_multiplier", 2.0)

	v.SetDefault("network_monitor.enabled", false)
	v.SetDefault("network_monitor.check_interval_seconds", 5)
}

// Default는 기본값만으로 구성된 Config를 반환합니다.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	// 기본값만 사용하므로 실패하지 않음
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load는 전역 viper 인스턴스에서 설정을 로드합니다.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("설정 파싱 실패: %w", err)
	}

	cfg.Logging.File = expandPath(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate는 설정의 유효성을 검사합니다.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url이 설정되지 않았습니다")
	}
	if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("유효하지 않은 server.url: %s (ws:// 또는 wss://)", c.Server.URL)
	}
	if c.Reconnection.MaxAttempts < 0 {
		return fmt.Errorf("reconnection.max_attempts는 0 이상이어야 합니다: %d", c.Reconnection.MaxAttempts)
	}
	if c.Reconnection.BackoffMultiplier < 1.0 {
		return fmt.Errorf("reconnection.backoff_multiplier는 1.0 이상이어야 합니다: %v", c.Reconnection.BackoffMultiplier)
	}
	if c.Reconnection.MaxDelayMs < c.Reconnection.InitialDelayMs {
		return fmt.Errorf("reconnection.max_delay_ms는 initial_delay_ms 이상이어야 합니다")
	}
	return nil
}

// ConnectTimeout은 연결 타임아웃을 time.Duration으로 반환합니다.
func (s ServerConfig) ConnectTimeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// InitialDelay는 초기 재연결 지연 시간을 반환합니다.
func (r ReconnectionConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// MaxDelay는 최대 재연결 지연 시간을 반환합니다.
func (r ReconnectionConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// CheckInterval은 네트워크 변경 감지 폴링 간격을 반환합니다.
func (n NetworkMonitorConfig) CheckInterval() time.Duration {
	if n.CheckIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.CheckIntervalSeconds) * time.Second
}

// expandPath는 ~ 로 시작하는 경로를 홈 디렉토리로 확장합니다.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
