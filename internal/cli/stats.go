package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		counts, err := a.store.Counts(ctx)
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}

		fmt.Printf("Documents: %d total, %d embedded, %d pending\n",
			counts.Total, counts.Embedded, counts.Pending)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
