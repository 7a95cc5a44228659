// Package main은 dashlink CLI의 진입점입니다.
// 대시보드 서버와의 지속 WebSocket 연결을 관리합니다.
package main

import (
	"os"

	"github.com/insajin/dashboard-link/cmd"
)

// 빌드 시 ldflags로 주입되는 버전 정보
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// 버전 정보를 root 패키지에 설정
	cmd.SetVersionInfo(version, commit, buildDate)

	// CLI 실행
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
