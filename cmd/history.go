// =============================================================================
// X9 Cash Letter Encoder - History Command
// =============================================================================
//
// COMMAND USAGE:
//   x9export history <batch-id>...
//
// Lists every file a deposit batch was exported in, oldest first.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x9-cash-letter/internal/database"
)

var historyCmd = &cobra.Command{
	Use:   "history <batch-id>...",
	Short: "Show the export history of deposit batches",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		db, err := a.openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		log := database.NewExportLog(db)
		for _, id := range args {
			entries, err := log.ForBatch(ctx, id)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("%s: never exported\n", id)
				continue
			}
			fmt.Printf("%s: exported %d time(s)\n", id, len(entries))
			for _, e := range entries {
				fmt.Printf("  %s  %-18s %-40s %4d item(s) %12s  business date %s  run %s\n",
					e.ExportedAt.Format("2006-01-02 15:04:05"), e.Dialect, e.FileName,
					e.ItemCount, e.TotalAmount.StringFixed(2), e.BusinessDate.Format("2006-01-02"), e.RunID)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
