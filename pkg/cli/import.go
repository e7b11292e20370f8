package cli

import (
	"github.com/spf13/cobra"

	"github.com/dentaldesk/legacymigrate/pkg/config"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/services"
)

func importCmd(version string) *cobra.Command {
	var params config.InvocationParams

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run an import for one domain",
		Long: `Extracts records from the legacy source, normalizes and resolves them,
and loads them into the destination. dry_run computes the full diff and
report without writing any domain rows; apply additionally requires
--confirm <domain>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := config.NewInvocation(params)
			if err != nil {
				return err
			}

			app, err := newApp(cmd, version)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			importer, err := app.importer(ctx)
			if err != nil {
				return err
			}

			result, err := importer.Run(ctx, inv)
			if err != nil {
				return err
			}

			return services.WriteReport(inv.OutputPath, services.BuildImportReport(result))
		},
	}

	cmd.Flags().StringVar(&params.Domain, "domain", "", "domain to import (restorative_treatments or treatment_plans)")
	cmd.Flags().StringVar(&params.Mode, "mode", models.ModeDryRun, "dry_run or apply")
	cmd.Flags().StringVar(&params.Confirm, "confirm", "", "confirmation value, must equal the domain for apply")
	cmd.Flags().Int64SliceVar(&params.PatientCodes, "patients", nil, "legacy patient codes to scope the run to")
	cmd.Flags().StringVar(&params.From, "from", "", "window start (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&params.To, "to", "", "window end (YYYY-MM-DD, inclusive)")
	cmd.Flags().BoolVar(&params.AllowUnresolved, "allow-unresolved", false, "import unmapped records with a null patient id for later backfill")
	cmd.Flags().StringVar(&params.OutputPath, "out", "", "report output path (stdout when empty)")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}
