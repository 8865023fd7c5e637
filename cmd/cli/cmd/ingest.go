package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"listgate/pkg/api"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [feed.csv]",
	Short: "Ingest a supplier CSV feed into the admission queue",
	Long: `Upload a supplier CSV feed. The first row is the header; recognized columns
are sku, title, price, cost, score and competitorprice (case-insensitive).
Rows without a sku are rejected, everything else is enqueued for admission.

Example:
  listctl ingest products.csv --source acme`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LISTGATE_TOKEN environment variable")
			return
		}

		source, _ := cmd.Flags().GetString("source")

		feed, err := os.Open(args[0])
		if err != nil {
			cmd.Printf("Failed to open feed: %v\n", err)
			return
		}
		defer feed.Close()

		client := NewEngineClient(url, token)
		result, err := client.IngestFeed(feed, source)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Ingest failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Ingest failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Feed ingested: %d added, %d rejected\n", result.Added, result.Rejected)
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a single candidate job",
	Long: `Push one candidate job onto the admission queue.

Example:
  listctl enqueue --identity SKU-123 --score 72 --cost 10.50`,
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

		req := api.EnqueueJobRequest{Identity: identity}
		if flags.Changed("score") {
			v, _ := flags.GetFloat64("score")
			req.Score = &v
		}
		if flags.Changed("cost") {
			v, _ := flags.GetFloat64("cost")
			req.Cost = &v
		}
		if flags.Changed("competitor-price") {
			v, _ := flags.GetFloat64("competitor-price")
			req.CompetitorPriceHint = &v
		}
		if title, _ := flags.GetString("title"); title != "" {
			req.Attributes = map[string]string{"title": title}
		}

		client := NewEngineClient(url, token)
		resp, err := client.EnqueueJob(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Enqueue failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Enqueue failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Job enqueued!\nJob ID: %s\nQueue ID: %d\n", resp.JobID, resp.QueueID)
	},
}

func init() {
	ingestCmd.Flags().StringP("source", "s", "unknown", "Supplier source tag for the feed")

	flags := enqueueCmd.Flags()
	flags.StringP("identity", "i", "", "Stable identity (supplier SKU) of the job (required)")
	flags.Float64("score", 0, "Pre-computed quality score (optional)")
	flags.Float64("cost", 0, "Unit cost for repricing (optional)")
	flags.Float64("competitor-price", 0, "Competitor price hint (optional)")
	flags.String("title", "", "Product title (optional)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(enqueueCmd)
}
