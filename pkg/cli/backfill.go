package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dentaldesk/legacymigrate/pkg/apperrors"
	"github.com/dentaldesk/legacymigrate/pkg/models"
	"github.com/dentaldesk/legacymigrate/pkg/repositories"
	"github.com/dentaldesk/legacymigrate/pkg/services"
)

func backfillCmd(version string) *cobra.Command {
	var domain, confirm string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Link previously imported rows to patients mapped after import",
		Long: `Fills the destination patient id on rows that were imported before
their legacy code had a mapping. Dry run by default; pass
--confirm <domain> to apply. Safe to repeat: linked rows are no-ops.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.IsValidDomain(domain) {
				return fmt.Errorf("unknown domain %q (valid: %v)", domain, models.AllDomains())
			}
			apply := confirm != ""
			if apply && confirm != domain {
				return fmt.Errorf("%w: pass --confirm %s", apperrors.ErrConfirmationRequired, domain)
			}

			app, err := newApp(cmd, version)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			db, err := app.destination(ctx)
			if err != nil {
				return err
			}

			backfiller := services.NewBackfiller(
				repositories.NewRestorativeRepository(db),
				repositories.NewTreatmentPlanRepository(db),
				app.cfg.Import.BackfillChunkSize,
				app.logger)

			result, err := backfiller.Run(ctx, domain, apply)
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "domain to backfill (restorative_treatments or treatment_plans)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "confirmation value, must equal the domain to apply")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}
