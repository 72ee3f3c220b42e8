package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference and configuration data",
	}
	cmd.AddCommand(newSeedTypesCmd(a))
	cmd.AddCommand(newSeedOrgCmd(a))
	cmd.AddCommand(newSeedSupplierCmd(a))
	cmd.AddCommand(newSeedDefaultsCmd(a))
	cmd.AddCommand(newSeedMappingCmd(a))
	return cmd
}

func newSeedTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Seed datatype, transform and source type registries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := a.store().SeedReferenceData()
			if err != nil {
				return err
			}
			fmt.Printf("Reference data seeded, %d new rows.\n", created)
			return nil
		},
	}
}

func newSeedOrgCmd(a *app) *cobra.Command {
	var code, name string
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Create an organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			org, created, err := a.store().SeedOrganization(code, name)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Organization %s created (id %d).\n", org.Code, org.ID)
			} else {
				fmt.Printf("Organization %s already exists (id %d).\n", org.Code, org.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "organization code")
	cmd.Flags().StringVar(&name, "name", "", "organization name")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newSeedSupplierCmd(a *app) *cobra.Command {
	var code, orgCode, description string
	cmd := &cobra.Command{
		Use:   "supplier",
		Short: "Create a supplier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			org, err := st.OrganizationByCode(orgCode)
			if err != nil {
				return err
			}
			sup, created, err := st.SeedSupplier(code, org.ID, description)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Supplier %s created (id %d).\n", sup.SupplierCode, sup.ID)
			} else {
				fmt.Printf("Supplier %s already exists (id %d).\n", sup.SupplierCode, sup.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "supplier code")
	cmd.Flags().StringVar(&orgCode, "org", "", "organization code")
	cmd.Flags().StringVar(&description, "description", "", "supplier description")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newSeedDefaultsCmd(a *app) *cobra.Command {
	var orgCode, validFrom string
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Seed the baseline global default set for an organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			org, err := st.OrganizationByCode(orgCode)
			if err != nil {
				return err
			}
			from, err := parseDate(validFrom)
			if err != nil {
				return err
			}
			set, created, err := st.SeedInitialDefaults(org, from)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Default set %d created for %s, valid from %s.\n", set.ID, org.Code, from.Format("2006-01-02"))
			} else {
				fmt.Printf("Default set %d updated for %s.\n", set.ID, org.Code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&orgCode, "org", "", "organization code")
	cmd.Flags().StringVar(&validFrom, "valid-from", "", "valid from date (YYYY-MM-DD), default today")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newSeedMappingCmd(a *app) *cobra.Command {
	var orgCode, supplierCode, sourceTypeCode, validFrom, file, description string
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Load a mapping set from a rule file",
		Long:  "Loads source_path:target_path:datatype:required[:transform] rules, one per line. Lines starting with # are comments.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store()
			org, err := st.OrganizationByCode(orgCode)
			if err != nil {
				return err
			}
			sup, err := st.SupplierByCode(supplierCode)
			if err != nil {
				return err
			}
			srcType, err := st.SourceTypeByCode(sourceTypeCode)
			if err != nil {
				return err
			}
			from, err := parseDate(validFrom)
			if err != nil {
				return err
			}
			set, rules, err := st.SeedMappingFromFile(org, sup, srcType, from, description, file)
			if err != nil {
				return err
			}
			fmt.Printf("Mapping set %d: %d rules for %s/%s, valid from %s.\n",
				set.ID, rules, sup.SupplierCode, srcType.Code, from.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&orgCode, "org", "", "organization code")
	cmd.Flags().StringVar(&supplierCode, "supplier", "", "supplier code")
	cmd.Flags().StringVar(&sourceTypeCode, "source-type", "file", "source type code")
	cmd.Flags().StringVar(&validFrom, "valid-from", "", "valid from date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&file, "file", "", "mapping rule file")
	cmd.Flags().StringVar(&description, "description", "", "mapping set description")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("supplier")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
