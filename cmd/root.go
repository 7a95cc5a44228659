// Package cmd는 dashlink CLI의 명령어를 정의합니다.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insajin/dashboard-link/internal/config"
	"github.com/insajin/dashboard-link/internal/logger"
)

var (
	// 전역 플래그
	cfgFile string
	verbose bool

	// 버전 정보 (main에서 주입)
	appVersion   string
	appCommit    string
	appBuildDate string
)

// rootCmd는 CLI의 루트 명령어입니다.
var rootCmd = &cobra.Command{
	Use:   "dashlink",
	Short: "Dashboard realtime link client",
	Long: `dashlink는 대시보드 서버와의 지속 WebSocket 연결을 관리하는
클라이언트입니다.

비정상 종료 시 지수 백오프로 자동 재연결하며, 수신된 타입별 메시지를
등록된 핸들러로 디스패치합니다.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// Execute는 루트 명령어를 실행합니다.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo는 버전 정보를 설정합니다.
func SetVersionInfo(version, commit, buildDate string) {
	appVersion = version
	appCommit = commit
	appBuildDate = buildDate
}

// GetVersionInfo는 버전 정보를 반환합니다.
func GetVersionInfo() (version, commit, buildDate string) {
	return appVersion, appCommit, appBuildDate
}

func init() {
	cobra.OnInitialize(initConfig)

	// 전역 플래그 정의
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"설정 파일 경로 (기본값: ~/.config/dashlink/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"상세 로그 출력 (debug 레벨)")
}

// initConfig는 설정 파일을 초기화합니다.
// 설정 우선순위: 환경변수 > 설정파일 > 기본값
func initConfig() {
	if cfgFile != "" {
		// 명시적 설정 파일 사용
		viper.SetConfigFile(cfgFile)
	} else {
		// 기본 설정 경로: ~/.config/dashlink/config.yaml
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "홈 디렉토리를 찾을 수 없습니다: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "dashlink")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// 환경변수 자동 바인딩 (DASHLINK_ 접두사)
	viper.SetEnvPrefix("DASHLINK")
	viper.AutomaticEnv()

	// 기본값 설정
	config.SetDefaults(viper.GetViper())

	// 설정 파일 읽기 (없어도 오류 아님)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "설정 파일 읽기 실패: %v\n", err)
		}
	}
}

// initLogger는 로거를 초기화합니다.
func initLogger() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	// verbose 플래그가 설정되면 debug 레벨로 오버라이드
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger.Setup(cfg.Logging)
	return nil
}
