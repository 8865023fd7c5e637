package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "listctl",
	Short: "Listctl is a command line tool for operating the listgate admission engine",
	Long: `listctl is the command-line interface for the listgate listing admission engine.

Listgate decides which candidate product listings get published: every job
pulled from the admission queue passes a permanent winner/loser memory, a
phase-based daily capacity ramp, a rate throttle with human-like spacing and
a self-tuning score threshold before it reaches the publishing pipeline.

Common workflows:

  Inspect the engine:
    listctl status

  Pause and resume admission:
    listctl killswitch on
    listctl killswitch off

  Tune the throttle:
    listctl throttle status
    listctl throttle set --daily-cap 200 --min-delay-ms 8000

  Reset the adaptive threshold:
    listctl threshold reset

  Ingest a supplier feed:
    listctl ingest feed.csv --source acme

  Report a sale:
    listctl feedback --identity SKU-123 --sold --profit 12.50 --hours 18 --price 39.99

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    LISTGATE_API_URL    API endpoint (default: http://localhost:6161)
    LISTGATE_TOKEN      Operator token for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".listctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".listctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "LISTGATE_VARNAME"
	viper.SetEnvPrefix("LISTGATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.listctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "Listgate Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Operator token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
