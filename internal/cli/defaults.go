package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newDefaultsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Inspect global defaults",
	}
	cmd.AddCommand(newDefaultsShowCmd(a))
	return cmd
}

func newDefaultsShowCmd(a *app) *cobra.Command {
	var orgCode, asOf string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the base dict built from the defaults valid at a date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			org, err := st.OrganizationByCode(orgCode)
			if err != nil {
				return err
			}
			at, err := parseDate(asOf)
			if err != nil {
				return err
			}
			base, err := st.BuildBaseDict(org.ID, at)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(base)
		},
	}
	cmd.Flags().StringVar(&orgCode, "org", "", "organization code")
	cmd.Flags().StringVar(&asOf, "as-of", "", "resolution date (YYYY-MM-DD), default today")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
