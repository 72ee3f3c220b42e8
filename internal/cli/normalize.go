package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kweber84/erpimport/internal/imports"
)

func newNormalizeCmd(a *app) *cobra.Command {
	var supplierCode string
	var runID uint

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize captured records against the current mapping",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (supplierCode == "") == (runID == 0) {
				return fmt.Errorf("give exactly one of --supplier or --run-id")
			}
			norm := imports.NewNormalizer(a.log, a.store())

			var sum imports.Summary
			var err error
			if runID != 0 {
				sum, err = norm.ReprocessRun(cmd.Context(), runID)
			} else {
				sum, err = norm.NormalizeSupplier(cmd.Context(), supplierCode)
			}
			if err != nil {
				return err
			}

			for _, r := range sum.Runs {
				fmt.Printf("Processed ImportRun %d: %d success, %d errors with map_set %d.\n",
					r.RunID, r.Success, r.Errors, r.MapSetID)
			}
			fmt.Printf("Done. %d runs processed, %d records normalized, %d errors.\n",
				sum.TotalRuns, sum.Normalized, sum.Errored)
			return nil
		},
	}
	cmd.Flags().StringVar(&supplierCode, "supplier", "", "normalize all unbound runs of this supplier")
	cmd.Flags().UintVar(&runID, "run-id", 0, "reprocess one run from scratch")
	return cmd
}
