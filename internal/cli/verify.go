// internal/cli/verify.go
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/services"
)

func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify pending settlements on chain",
		Long: `Look up the transaction receipt of each pending settlement and mark it
CONFIRMED, REVERTED or UNVERIFIABLE. Settlements the node has not seen, or
that lack the configured confirmation depth, stay PENDING.

Verification only annotates the settlement registry; reverted settlements
are reported for operator follow-up.

Examples:
  BLOCKCHAIN_RPC_URL=https://polygon-rpc.com ledgerctl verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg := rootOpts.Config
			if cfg.Blockchain.RPCURL == "" {
				return NewExitError(ExitCommandError, "BLOCKCHAIN_RPC_URL is not set")
			}

			db, err := database.Initialize(cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer database.Close(db)

			verifier, closeChain, err := services.ConnectBlockchainService(ctx, db, cfg.Blockchain)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to chain", err)
			}
			defer closeChain()

			summary, err := verifier.VerifyPending(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "verification failed", err)
			}

			if err := render(cmd.OutOrStdout(), rootOpts.Format, summary, func(w io.Writer) {
				fmt.Fprintf(w, "checked %d: %d confirmed, %d reverted, %d unverifiable, %d pending\n",
					summary.Checked, summary.Confirmed, summary.Reverted, summary.Unverifiable, summary.StillPending)
			}); err != nil {
				return err
			}

			if summary.Reverted > 0 {
				return NewExitError(ExitFailure, "reverted settlements found")
			}
			return nil
		},
	}
	return cmd
}
