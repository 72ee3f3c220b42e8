package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kweber84/erpimport/internal/imports"
	"github.com/kweber84/erpimport/internal/sources"
	"github.com/kweber84/erpimport/internal/syncer"
)

func newImportCmd(a *app) *cobra.Command {
	var supplierCode, file string
	var dryRun bool
	var limit int

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Capture raw records from a supplier source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			binding, err := a.cfg.Supplier(supplierCode)
			if err != nil {
				return err
			}
			log := a.log.With().Str("supplier", supplierCode).Logger()
			src, err := syncer.BuildSource(log, binding)
			if err != nil {
				return err
			}
			opts := sources.FetchOptions{File: file, Limit: limit}
			capturer := imports.NewCapturer(log, a.store())

			if dryRun {
				items, err := capturer.Preview(cmd.Context(), src, opts, 20)
				if err != nil {
					return err
				}
				fmt.Printf("Dry run: %s\n", src.Describe(opts))
				for _, it := range items {
					b, _ := json.Marshal(it.Payload)
					fmt.Printf("%6d  %s\n", it.LineNumber, b)
				}
				fmt.Printf("%d records previewed, nothing written.\n", len(items))
				return nil
			}

			st := a.store()
			supplier, err := st.SupplierByCode(supplierCode)
			if err != nil {
				return err
			}
			srcType, err := st.SourceTypeByCode(binding.SourceTypeCode())
			if err != nil {
				return err
			}
			res, err := capturer.Run(cmd.Context(), src, supplier, srcType, opts)
			if err != nil {
				return err
			}
			fmt.Printf("ImportRun %d: %d records captured from %s.\n", res.RunID, res.Captured, res.Source)
			return nil
		},
	}
	cmd.Flags().StringVar(&supplierCode, "supplier", "", "supplier code (must be in config)")
	cmd.Flags().StringVar(&file, "file", "", "import this file instead of the newest one")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview the first records without writing")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many records (0 = all)")
	_ = cmd.MarkFlagRequired("supplier")
	return cmd
}
