// Package cmd는 dashlink CLI의 명령어를 정의합니다.
// config.go는 설정 관리 명령을 구현합니다.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/insajin/dashboard-link/internal/config"
)

// configCmd는 설정 관리를 위한 상위 명령어입니다.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "설정을 관리합니다",
	Long: `설정 파일의 값을 조회하거나 기본 설정 파일을 생성합니다.

설정 파일 위치: ~/.config/dashlink/config.yaml`,
}

// configShowCmd는 현재 적용된 설정을 출력하는 명령어입니다.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "현재 적용된 설정을 출력합니다",
	Long:  `기본값, 설정 파일, 환경변수가 병합된 최종 설정을 YAML 포맷으로 출력합니다.`,
	RunE:  runConfigShow,
}

// configInitCmd는 기본 설정 파일을 생성하는 명령어입니다.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "기본 설정 파일을 생성합니다",
	Long: `기본값으로 채워진 설정 파일을 생성합니다.

이미 설정 파일이 존재하면 덮어쓰지 않고 오류를 반환합니다.`,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// runConfigShow는 병합된 최종 설정을 YAML로 출력합니다.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("설정 직렬화 실패: %w", err)
	}

	if file := viper.ConfigFileUsed(); file != "" {
		fmt.Printf("# 설정 파일: %s\n", file)
	} else {
		fmt.Println("# 설정 파일 없음 (기본값 + 환경변수)")
	}
	fmt.Print(string(data))
	return nil
}

// runConfigInit은 기본값으로 채워진 설정 파일을 생성합니다.
func runConfigInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("홈 디렉토리를 찾을 수 없습니다: %w", err)
	}

	configDir := filepath.Join(home, ".config", "dashlink")
	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("설정 파일이 이미 존재합니다: %s", configPath)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("설정 직렬화 실패: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("설정 파일 쓰기 실패: %w", err)
	}

	fmt.Printf("설정 파일 생성됨: %s\n", configPath)
	return nil
}
