package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lingofeed",
	Short: "Personalized language-learning feed",
	Long: `lingofeed ranks listening and reading content for language learners,
adapting to their level, interests and vocabulary, and serves the feed
through a Telegram bot.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, importCmd, feedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
