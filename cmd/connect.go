// Package cmd는 dashlink CLI의 명령어를 정의합니다.
// connect.go는 서버 연결 및 이벤트 tail 명령을 구현합니다.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insajin/dashboard-link/internal/config"
	"github.com/insajin/dashboard-link/internal/logger"
	"github.com/insajin/dashboard-link/internal/metrics"
	"github.com/insajin/dashboard-link/internal/realtime"
)

var (
	// 연결 명령 플래그
	serverURL  string
	tailTypes  []string
	showRaw    bool
	printStats bool
)

// connectCmd는 서버에 연결하고 수신 이벤트를 출력하는 명령어입니다.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "대시보드 서버에 연결하고 수신 이벤트를 출력합니다",
	Long: `WebSocket을 통해 대시보드 서버에 연결하고 라이프사이클 이벤트와
수신 메시지를 표준 출력으로 tail합니다.

비정상 종료가 감지되면 설정된 재연결 정책에 따라 자동으로 재연결합니다.
SIGINT(Ctrl+C) 또는 SIGTERM 시그널을 수신하면 정상적으로 연결을 종료합니다.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVar(&serverURL, "server", "",
		"서버 URL (기본값: 설정 파일의 server.url)")
	connectCmd.Flags().StringSliceVar(&tailTypes, "type", nil,
		"구독할 메시지 타입 (반복 지정 가능, 미지정 시 전체 출력)")
	connectCmd.Flags().BoolVar(&showRaw, "raw", false,
		"파싱 결과 대신 수신 원문을 출력합니다")
	connectCmd.Flags().BoolVar(&printStats, "stats", false,
		"종료 시 운영 지표 스냅샷을 출력합니다")
}

// runConnect는 connect 명령의 실행 로직입니다.
func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	// 서버 URL 결정 (플래그 > 환경변수 > 설정파일)
	srvURL := serverURL
	if srvURL == "" {
		srvURL = viper.GetString("server.url")
	}

	stats := metrics.New()
	client := realtime.NewClient(realtime.Config{
		Addr:             srvURL,
		ReconnectOnClose: cfg.Server.ReconnectOnClose,
		ConnectTimeout:   cfg.Server.ConnectTimeout(),
		Reconnection: realtime.ReconnectionConfig{
			InitialDelay:  cfg.Reconnection.InitialDelay(),
			MaxDelay:      cfg.Reconnection.MaxDelay(),
			BackoffFactor: cfg.Reconnection.BackoffMultiplier,
			MaxAttempts:   cfg.Reconnection.MaxAttempts,
		},
	}, realtime.WithMetrics(stats))

	registerTailListeners(client)

	// 타입별 구독이 지정된 경우 해당 타입만 핸들러로 출력
	for _, msgType := range tailTypes {
		client.RegisterMessageHandler(msgType, func(msg realtime.ProcessedMessage) {
			printMessage(msg)
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 네트워크 변경 감지 (설정 시)
	if cfg.NetworkMonitor.Enabled {
		monitor := realtime.NewNetworkMonitor(client, cfg.NetworkMonitor.CheckInterval())
		monitor.Start(ctx)
	}

	logger.Info().Str("server", srvURL).Str("client_id", client.ID()).Msg("연결 시작")
	if err := client.Connect(ctx); err != nil {
		// 연결 실패 후에도 재연결 정책이 동작하므로 즉시 종료하지 않음
		logger.Warn().Err(err).Msg("최초 연결 실패, 재연결 정책에 위임")
	}

	<-ctx.Done()

	client.Disconnect("사용자 요청으로 종료")
	logger.Info().Msg("종료 완료")

	if printStats {
		data, err := stats.JSON()
		if err == nil {
			fmt.Fprintln(os.Stdout, string(data))
		}
	}
	return nil
}

// registerTailListeners는 라이프사이클 이벤트를 표준 출력으로 내보내는 리스너를 등록합니다.
func registerTailListeners(client *realtime.Client) {
	client.AddEventListener(realtime.EventConnected, func(evt realtime.Event) {
		fmt.Println("[connected]")
	})
	client.AddEventListener(realtime.EventDisconnected, func(evt realtime.Event) {
		fmt.Printf("[disconnected] code=%d reason=%q\n", evt.Code, evt.Reason)
	})
	client.AddEventListener(realtime.EventError, func(evt realtime.Event) {
		fmt.Printf("[error] %v\n", evt.Err)
	})
	client.AddEventListener(realtime.EventReconnecting, func(evt realtime.Event) {
		fmt.Printf("[reconnecting] attempt=%d delay=%s\n", evt.Attempt, evt.Delay)
	})
	client.AddEventListener(realtime.EventReconnectFailed, func(evt realtime.Event) {
		fmt.Printf("[reconnect_failed] max_attempts=%d\n", evt.MaxAttempts)
	})

	// 타입 구독이 없으면 모든 메시지를 출력
	if len(tailTypes) == 0 {
		client.AddEventListener(realtime.EventMessage, func(evt realtime.Event) {
			if evt.Message != nil {
				printMessage(*evt.Message)
			}
		})
	}
}

// printMessage는 파싱 결과 혹은 원문을 출력합니다.
func printMessage(msg realtime.ProcessedMessage) {
	if showRaw {
		fmt.Println(msg.Raw)
		return
	}
	if !msg.Parsed {
		fmt.Printf("[message] type=%s raw=%q\n", msg.Type, msg.Raw)
		return
	}
	fmt.Printf("[message] type=%s payload=%s\n", msg.Type, string(msg.Payload))
}
