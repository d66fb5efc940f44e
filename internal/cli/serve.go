package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API",
		Long: `Serve committed ledger state over HTTP until interrupted.

Routes:
  GET /healthz
  GET /metrics
  GET /components[?code=&factory=]
  GET /components/:address
  GET /registries/:registry/roles
  GET /registries/:registry/roles/:role/members
  GET /registries/:registry/roles/:role/members/:account
  GET /registries/:registry/actions
  GET /registries/:registry/authorized?account=&target=&op=
  GET /transactions
  GET /transactions/:id`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			n, err := rootOpts.openNode(ctx, cmd)
			if err != nil {
				return err
			}
			defer n.Close()

			if addr == "" {
				addr = n.Config.HTTPAddr
			}
			srv := server.New(n.Reader(), n.Logger, n.Config.CORSOrigins)
			if err := srv.Serve(ctx, addr); err != nil {
				return WrapExitError(ExitCommandError, "server failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config http_addr)")
	return cmd
}
