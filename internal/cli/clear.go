package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd(a *app) *cobra.Command {
	var supplierCode string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all import runs and raw records of a supplier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			supplier, err := st.SupplierByCode(supplierCode)
			if err != nil {
				return err
			}
			runs, records, err := st.SupplierImportCounts(supplier.ID)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("Would delete %d runs and %d raw records for %s.\n", runs, records, supplier.SupplierCode)
				return nil
			}
			if err := st.ClearSupplierImports(supplier.ID); err != nil {
				return err
			}
			a.log.Warn().Str("supplier", supplier.SupplierCode).Int64("runs", runs).Int64("records", records).Msg("supplier imports cleared")
			fmt.Printf("Deleted %d runs and %d raw records for %s.\n", runs, records, supplier.SupplierCode)
			return nil
		},
	}
	cmd.Flags().StringVar(&supplierCode, "supplier", "", "supplier code")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be deleted")
	_ = cmd.MarkFlagRequired("supplier")
	return cmd
}
