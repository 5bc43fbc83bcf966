// internal/cli/token.go
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/estatechain/ledger-backend/internal/utils"
)

type TokenOptions struct {
	*RootOptions
	UserID string
	Wallet string
	Role   string
	TTL    int
}

type tokenResult struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	ExpiresIn int    `json:"expires_in_hours"`
}

func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Sign a bearer token with the configured JWT secret. Intended for
operators and integration environments.

Examples:
  ledgerctl token --user ops-1 --role admin
  ledgerctl token --user user-42 --wallet 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --ttl 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if opts.Role != utils.RoleInvestor && opts.Role != utils.RoleAdmin {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown role %q", opts.Role))
			}
			if opts.Wallet != "" && !utils.IsWalletAddress(opts.Wallet) {
				return NewExitError(ExitCommandError, "wallet must be a checksummed 0x address")
			}

			ttl := opts.TTL
			if ttl <= 0 {
				ttl = cfg.JWT.AccessTokenTTL
			}

			utils.SetJWTSecret(cfg.JWT.SecretKey)
			utils.SetJWTIssuer(cfg.JWT.Issuer)
			token, err := utils.GenerateJWT(opts.UserID, utils.NormalizeWallet(opts.Wallet), opts.Role, ttl)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to sign token", err)
			}

			result := tokenResult{Token: token, UserID: opts.UserID, Role: opts.Role, ExpiresIn: ttl}
			return render(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id placed in the token subject (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Wallet, "wallet", "", "wallet address claim")
	cmd.Flags().StringVar(&opts.Role, "role", utils.RoleInvestor, "investor|admin")
	cmd.Flags().IntVar(&opts.TTL, "ttl", 0, "lifetime in hours (defaults to JWT_ACCESS_TTL)")
	return cmd
}
