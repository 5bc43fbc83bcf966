// internal/cli/audit.go
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/services"
)

type AuditOptions struct {
	*RootOptions
	Repair  bool
	Archive bool
}

func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check ledger invariants",
		Long: `Recompute supply, reservations and settlement coverage from the ledger
rows and report every inconsistency.

With --repair the denormalized available-token counter is rewritten from the
ledger. Balances are never modified.

Exit codes:
  0 - Ledger is consistent (or every finding was repaired)
  1 - Inconsistencies remain
  2 - Command error

Examples:
  ledgerctl audit
  ledgerctl audit --repair --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Repair, "repair", false, "rewrite drifted available-token counters")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "upload the report to the configured S3 bucket")
	return cmd
}

func runAudit(ctx context.Context, opts *AuditOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Initialize(opts.Config.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer database.Close(db)

	var archive services.ReportArchive
	if opts.Archive {
		storage, err := services.NewStorageService(opts.Config.AWS)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to configure report storage", err)
		}
		if storage == nil {
			return NewExitError(ExitCommandError, "--archive needs AWS_REPORT_BUCKET")
		}
		archive = storage
	}

	report, err := services.NewLedgerAuditService(db, archive).Run(ctx, opts.Repair)
	if err != nil {
		return WrapExitError(ExitCommandError, "audit failed", err)
	}

	if err := render(out, opts.Format, report, func(w io.Writer) {
		fmt.Fprintf(w, "properties checked: %d\n", report.PropertiesChecked)
		for _, f := range report.Findings {
			status := "open"
			if f.Repaired {
				status = "repaired"
			}
			fmt.Fprintf(w, "%-20s %s %-8s %s\n", f.Kind, f.PropertyID, status, f.Detail)
		}
		fmt.Fprintf(w, "findings: %d, repaired: %d\n", len(report.Findings), report.Repaired)
		if report.ArchiveLocation != "" {
			fmt.Fprintf(w, "archived to %s\n", report.ArchiveLocation)
		}
	}); err != nil {
		return err
	}

	if len(report.Findings) > report.Repaired {
		return NewExitError(ExitFailure, "ledger audit found unresolved inconsistencies")
	}
	return nil
}
