package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.handle.Migrate(); err != nil {
				return err
			}
			a.log.Info().Str("db", a.handle.Path).Msg("schema migrated")
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}
