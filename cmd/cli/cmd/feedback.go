package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"listgate/pkg/api"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Report a sale (or the lack of one) for a listed item",
	Long: `Fold a sale report into the winner memory. Profitable sales raise the
identity's confidence, no-sale reports bleed it until demotion. For sold
items with a price, a velocity-based price recommendation is returned.

Example:
  listctl feedback --identity SKU-123 --sold --profit 12.50 --hours 18 --price 39.99
  listctl feedback --identity SKU-456`,
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LISTGATE_TOKEN environment variable")
			return
		}

		flags := cmd.Flags()
		identity, _ := flags.GetString("identity")
		if identity == "" {
			cmd.Println("Error: --identity is required")
			return
		}

		sold, _ := flags.GetBool("sold")
		profit, _ := flags.GetFloat64("profit")
		hours, _ := flags.GetFloat64("hours")
		price, _ := flags.GetFloat64("price")

		client := NewEngineClient(url, token)
		resp, err := client.SendSaleFeedback(api.SaleFeedbackRequest{
			Identity:    identity,
			Sold:        sold,
			Profit:      profit,
			HoursToSale: hours,
			Price:       price,
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Feedback failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Feedback failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Feedback recorded for %s (classification: %s", resp.Identity, resp.Classification)
		if resp.Confidence != nil {
			cmd.Printf(", confidence: %d", *resp.Confidence)
		}
		cmd.Println(")")

		if resp.Velocity != "" && resp.RecommendedPrice != nil {
			cmd.Printf("Velocity: %s, recommended price: %.2f\n", resp.Velocity, *resp.RecommendedPrice)
		}
	},
}

func init() {
	flags := feedbackCmd.Flags()
	flags.StringP("identity", "i", "", "Stable identity (supplier SKU) of the item (required)")
	flags.Bool("sold", false, "The item sold")
	flags.Float64("profit", 0, "Profit realized on the sale")
	flags.Float64("hours", 0, "Hours from listing to sale")
	flags.Float64("price", 0, "Sale price, enables a velocity recommendation")

	rootCmd.AddCommand(feedbackCmd)
}
