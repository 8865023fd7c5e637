package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var killswitchCmd = &cobra.Command{
	Use:   "killswitch [on|off]",
	Short: "Pause or resume admission processing",
	Long: `Engage or release the global kill switch. While engaged, workers idle and
claimed jobs are returned to the queue head untouched, so resuming loses
nothing.

Example:
  listctl killswitch on
  listctl killswitch off`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LISTGATE_TOKEN environment variable")
			return
		}

		enabled := args[0] == "on"

		client := NewEngineClient(url, token)
		resp, err := client.SetKillSwitch(enabled)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Kill switch update failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Kill switch update failed: %v\n", err)
			}
			return
		}

		if resp.Enabled {
			cmd.Printf("%s⏸%s Admission paused\n", colorRed, colorReset)
		} else {
			cmd.Printf("%s✓%s Admission resumed\n", colorGreen, colorReset)
		}
	},
}

func init() {
	rootCmd.AddCommand(killswitchCmd)
}
