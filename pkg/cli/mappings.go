package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dentaldesk/legacymigrate/pkg/repositories"
	"github.com/dentaldesk/legacymigrate/pkg/services"
)

func mappingsCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Administer manual patient mappings",
	}

	cmd.AddCommand(mappingsCreateCmd(version))
	cmd.AddCommand(mappingsListCmd(version))
	cmd.AddCommand(mappingsDeleteCmd(version))
	cmd.AddCommand(mappingsUnmappedCmd(version))

	return cmd
}

// mappingAdmin wires the admin service for one subcommand invocation.
func mappingAdmin(cmd *cobra.Command, version string) (*services.MappingAdmin, *app, error) {
	app, err := newApp(cmd, version)
	if err != nil {
		return nil, nil, err
	}
	db, err := app.destination(cmd.Context())
	if err != nil {
		app.close()
		return nil, nil, err
	}
	admin := services.NewMappingAdmin(
		repositories.NewMappingRepository(db),
		repositories.NewPatientRepository(db),
		app.logger)
	return admin, app, nil
}

func mappingsCreateCmd(version string) *cobra.Command {
	var legacyCode int64
	var patientID, note string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a manual mapping from a legacy patient code to a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(patientID)
			if err != nil {
				return fmt.Errorf("invalid --patient-id: %w", err)
			}

			admin, app, err := mappingAdmin(cmd, version)
			if err != nil {
				return err
			}
			defer app.close()

			mapping, err := admin.CreateManual(cmd.Context(), legacyCode, id, note)
			if err != nil {
				return err
			}
			return printJSON(mapping)
		},
	}

	cmd.Flags().Int64Var(&legacyCode, "legacy-code", 0, "legacy patient code")
	cmd.Flags().StringVar(&patientID, "patient-id", "", "destination patient id")
	cmd.Flags().StringVar(&note, "note", "", "optional note recording why this mapping exists")
	_ = cmd.MarkFlagRequired("legacy-code")
	_ = cmd.MarkFlagRequired("patient-id")

	return cmd
}

func mappingsListCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all patient mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, app, err := mappingAdmin(cmd, version)
			if err != nil {
				return err
			}
			defer app.close()

			mappings, err := admin.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(mappings)
		},
	}
}

func mappingsDeleteCmd(version string) *cobra.Command {
	var legacyCode int64

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the mapping for a legacy patient code",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, app, err := mappingAdmin(cmd, version)
			if err != nil {
				return err
			}
			defer app.close()

			if err := admin.Delete(cmd.Context(), legacyCode); err != nil {
				return err
			}
			fmt.Printf("Deleted mapping for legacy patient code %d\n", legacyCode)
			return nil
		},
	}

	cmd.Flags().Int64Var(&legacyCode, "legacy-code", 0, "legacy patient code")
	_ = cmd.MarkFlagRequired("legacy-code")

	return cmd
}

func mappingsUnmappedCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "unmapped",
		Short: "List legacy patient codes with imported rows awaiting a mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, app, err := mappingAdmin(cmd, version)
			if err != nil {
				return err
			}
			defer app.close()

			codes, err := admin.Unmapped(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(codes)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
