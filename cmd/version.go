package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd는 버전 정보를 출력하는 명령어입니다.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "버전 정보를 출력합니다",
	Long:  `dashlink의 버전, 커밋 해시, 빌드 날짜를 출력합니다.`,
	Run: func(cmd *cobra.Command, args []string) {
		version, commit, buildDate := GetVersionInfo()

		if versionShort {
			fmt.Println(version)
			return
		}

		fmt.Printf("dashlink %s\n", version)
		fmt.Printf("  commit:   %s\n", commit)
		fmt.Printf("  built:    %s\n", buildDate)
		fmt.Printf("  go:       %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

var versionShort bool

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "버전 문자열만 출력합니다")
	rootCmd.AddCommand(versionCmd)
}
