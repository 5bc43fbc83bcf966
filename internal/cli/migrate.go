// internal/cli/migrate.go
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/estatechain/ledger-backend/internal/database"
)

type migrateResult struct {
	Pending []string `json:"pending"`
	Applied bool     `json:"applied"`
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long: `Create or update the ledger schema: model tables first, then the
versioned SQL migrations that add partial indexes.

Examples:
  ledgerctl migrate
  ledgerctl migrate --dry-run --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Initialize(rootOpts.Config.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer database.Close(db)

			result := migrateResult{}
			if dryRun {
				if result.Pending, err = database.PendingMigrations(db); err != nil {
					return WrapExitError(ExitCommandError, "failed to plan migrations", err)
				}
			} else {
				if err := database.RunMigrations(db); err != nil {
					return WrapExitError(ExitCommandError, "failed to run migrations", err)
				}
				result.Applied = true
			}

			return render(cmd.OutOrStdout(), rootOpts.Format, result, func(w io.Writer) {
				if result.Applied {
					fmt.Fprintln(w, "migrations applied")
					return
				}
				if len(result.Pending) == 0 {
					fmt.Fprintln(w, "no pending SQL migrations")
					return
				}
				for _, id := range result.Pending {
					fmt.Fprintf(w, "pending: %s\n", id)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending SQL migrations without applying them")
	return cmd
}
