package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Manage the adaptive acceptance threshold",
}

var thresholdResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the threshold to its default and clear the sampling window",
	Long: `Reset the adaptive acceptance threshold to its configured default and
discard the current sampling window. Use after changing the scoring inputs,
when the accumulated window no longer reflects incoming traffic.`,
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LISTGATE_TOKEN environment variable")
			return
		}

		client := NewEngineClient(url, token)
		st, err := client.ResetThreshold()
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Reset failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Reset failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Threshold reset to %.1f (window cleared)\n", st.Threshold)
	},
}

func init() {
	thresholdCmd.AddCommand(thresholdResetCmd)
	rootCmd.AddCommand(thresholdCmd)
}
