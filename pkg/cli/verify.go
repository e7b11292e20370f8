package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dentaldesk/legacymigrate/pkg/config"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/services"
)

func verifyCmd(version string) *cobra.Command {
	var params config.InvocationParams

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify source/destination parity for one domain",
		Long: `Independently reads both sides and compares per-patient counts and
content fingerprints. Exits non-zero when any patient fails, so the
command can gate a cutover.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Mode = models.ModeDryRun // verification never writes
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
			verifier, err := app.verifier(ctx)
			if err != nil {
				return err
			}

			report, err := verifier.Verify(ctx, inv)
			if err != nil {
				return err
			}

			if err := services.WriteReport(inv.OutputPath, services.BuildParityRunReport(report)); err != nil {
				return err
			}
			if report.Overall == models.ParityFail {
				return fmt.Errorf("parity verification failed for domain %s", inv.Domain)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Domain, "domain", "", "domain to verify (restorative_treatments or treatment_plans)")
	cmd.Flags().Int64SliceVar(&params.PatientCodes, "patients", nil, "legacy patient codes to verify (defaults to every code with source rows)")
	cmd.Flags().StringVar(&params.From, "from", "", "window start (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&params.To, "to", "", "window end (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&params.OutputPath, "out", "", "report output path (stdout when empty)")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}
