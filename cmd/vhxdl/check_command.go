package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vhxdl/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var withAuth bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, external tools and optionally credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if withAuth {
				var source preflight.TokenSource
				if cfg.Auth.ClientID != "" && cfg.Auth.Username != "" {
					logger, err := ctx.sessionLogger(false)
					if err != nil {
						return err
					}
					source = newAuthority(cfg, logger)
				}
				results = append(results, preflight.CheckAuth(cmd.Context(), source))
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			for _, r := range results {
				fmt.Fprintln(out, renderStatusLine(r.Name, resultKind(r), r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withAuth, "auth", false, "Also perform a token exchange with the configured credentials")
	return cmd
}
