// internal/cli/root.go
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/estatechain/ledger-backend/internal/config"
	"github.com/estatechain/ledger-backend/internal/logging"
)

// RootOptions holds global flags and the configuration every command
// runs against.
type RootOptions struct {
	Format string // "json" | "text"

	// LoadConfig is replaced in tests.
	LoadConfig func() (*config.Config, error)
	Config     *config.Config
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the property token ledger",
		Long: `ledgerctl runs maintenance tasks against the token ledger database:
schema migrations, invariant audits, on-chain settlement verification and
operator token issuance. Configuration is read from the environment and .env.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := opts.LoadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			logging.Configure(logrus.StandardLogger(), cfg.Log, cmd.ErrOrStderr())
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
