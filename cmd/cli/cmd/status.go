package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"listgate/pkg/api"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the admission engine status",
	Long: `Show the combined engine snapshot: the adaptive threshold and its sampling
window, throttle counters and penalty, the current ramp phase and daily cap,
queue depth and the kill switch state.`,
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LISTGATE_TOKEN environment variable")
			return
		}

		client := NewEngineClient(url, token)
		status, err := client.GetEngineStatus()
		if err != nil {
			cmd.Printf("Failed to get status: %v\n", err)
			return
		}

		printEngineStatus(cmd, status)
	},
}

func printEngineStatus(cmd *cobra.Command, s *api.EngineStatusResponse) {
	icon := colorGreen + "●" + colorReset
	if s.KillSwitch {
		icon = colorRed + "⏸" + colorReset
	}
	cmd.Printf("%s %sAdmission Engine%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sThreshold:%s   %.1f %s(window %d/%d, pass rate %.0f%%)%s\n",
		colorDim, colorReset, s.Threshold,
		colorDim, s.Passed, s.Seen, s.PassRate*100, colorReset)

	cmd.Printf("%sPhase:%s       %d %s(day %d, cap %d/day)%s\n",
		colorDim, colorReset, s.Phase,
		colorDim, s.DayIndex, s.DailyCap, colorReset)

	cmd.Printf("%sAccepted:%s    %s\n", colorDim, colorReset,
		colorizeUsage(s.AcceptedToday, s.DailyCap))

	cmd.Printf("%sThrottle:%s    %d today, %d this hour", colorDim, colorReset,
		s.DayCount, s.HourCount)
	if s.PenaltyMs > 0 {
		cmd.Printf(" %s(penalty %dms)%s", colorYellow, s.PenaltyMs, colorReset)
	}
	cmd.Println()

	cmd.Printf("%sQueue:%s       %d pending\n", colorDim, colorReset, s.QueueDepth)

	if s.KillSwitch {
		cmd.Printf("%sKill switch:%s %sENGAGED%s\n", colorDim, colorReset, colorRed, colorReset)
	} else {
		cmd.Printf("%sKill switch:%s off\n", colorDim, colorReset)
	}
}

func colorizeUsage(used, limit int64) string {
	text := fmt.Sprintf("%d / %d today", used, limit)
	if limit > 0 && used >= limit {
		return colorRed + text + colorReset
	}
	if limit > 0 && used*4 >= limit*3 {
		return colorYellow + text + colorReset
	}
	return text
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}
