// Command songsctl administers a parashasongs database from the shell.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "songsctl",
	Short: "parashasongs moderation tool",
	Example: `songsctl migrate
songsctl pending
songsctl approve 42
songsctl reject 42
songsctl redeem <token>
songsctl stats`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd(), pendingCmd(), approveCmd(), rejectCmd(), redeemCmd(), statsCmd())
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
