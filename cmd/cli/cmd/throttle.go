package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"listgate/pkg/api"
)

var throttleCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Inspect and tune the rate throttle",
}

var throttleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show throttle configuration and counters",
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LISTGATE_TOKEN environment variable")
			return
		}

		client := NewEngineClient(url, token)
		st, err := client.GetThrottleStatus()
		if err != nil {
			cmd.Printf("Failed to get throttle status: %v\n", err)
			return
		}

		cmd.Printf("%sThrottle%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		if st.Config.Enabled {
			cmd.Printf("%sEnabled:%s     yes\n", colorDim, colorReset)
		} else {
			cmd.Printf("%sEnabled:%s     %sno%s\n", colorDim, colorReset, colorYellow, colorReset)
		}
		cmd.Printf("%sDaily cap:%s   %s\n", colorDim, colorReset, colorizeUsage(st.DayCount, st.Config.DailyCap))
		cmd.Printf("%sHourly cap:%s  %d / %d this hour\n", colorDim, colorReset, st.HourCount, st.Config.HourlyCap)
		cmd.Printf("%sSpacing:%s     %d-%dms\n", colorDim, colorReset, st.Config.MinDelayMs, st.Config.MaxDelayMs)
		cmd.Printf("%sPenalty:%s     %dms %s(step %dms, max %dms)%s\n", colorDim, colorReset,
			st.PenaltyMs, colorDim, st.Config.PenaltyStepMs, st.Config.PenaltyMaxMs, colorReset)
		if st.LastAction != nil {
			cmd.Printf("%sLast action:%s %s\n", colorDim, colorReset, st.LastAction.Format("Mon, 02 Jan 2006 15:04:05 MST"))
		}
	},
}

var throttleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update throttle configuration",
	Long: `Update one or more throttle settings. Only the flags you pass are changed;
everything else keeps its current value.

Example:
  listctl throttle set --daily-cap 200 --hourly-cap 25
  listctl throttle set --min-delay-ms 8000 --max-delay-ms 20000
  listctl throttle set --enabled=false`,
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LISTGATE_TOKEN environment variable")
			return
		}

		var req api.ThrottleConfigRequest
		flags := cmd.Flags()
		if flags.Changed("enabled") {
			v, _ := flags.GetBool("enabled")
			req.Enabled = &v
		}
		if flags.Changed("daily-cap") {
			v, _ := flags.GetInt64("daily-cap")
			req.DailyCap = &v
		}
		if flags.Changed("hourly-cap") {
			v, _ := flags.GetInt64("hourly-cap")
			req.HourlyCap = &v
		}
		if flags.Changed("min-delay-ms") {
			v, _ := flags.GetInt64("min-delay-ms")
			req.MinDelayMs = &v
		}
		if flags.Changed("max-delay-ms") {
			v, _ := flags.GetInt64("max-delay-ms")
			req.MaxDelayMs = &v
		}
		if flags.Changed("penalty-step-ms") {
			v, _ := flags.GetInt64("penalty-step-ms")
			req.PenaltyStepMs = &v
		}
		if flags.Changed("penalty-max-ms") {
			v, _ := flags.GetInt64("penalty-max-ms")
			req.PenaltyMaxMs = &v
		}

		client := NewEngineClient(url, token)
		cfg, err := client.UpdateThrottleConfig(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Update failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Update failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Throttle updated: daily %d, hourly %d, spacing %d-%dms\n",
			cfg.DailyCap, cfg.HourlyCap, cfg.MinDelayMs, cfg.MaxDelayMs)
	},
}

func init() {
	flags := throttleSetCmd.Flags()
	flags.Bool("enabled", true, "Enable or disable the throttle")
	flags.Int64("daily-cap", 0, "Max actions per UTC day")
	flags.Int64("hourly-cap", 0, "Max actions per UTC hour")
	flags.Int64("min-delay-ms", 0, "Minimum spacing between actions")
	flags.Int64("max-delay-ms", 0, "Maximum randomized spacing between actions")
	flags.Int64("penalty-step-ms", 0, "Penalty added per downstream error")
	flags.Int64("penalty-max-ms", 0, "Penalty ceiling")

	throttleCmd.AddCommand(throttleStatusCmd)
	throttleCmd.AddCommand(throttleSetCmd)
	rootCmd.AddCommand(throttleCmd)
}
