package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Into string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-apply the transaction log and verify determinism",
		Long: `Re-apply every logged transaction onto a fresh ledger with the same
genesis and compare each receipt with the log: status, error kind, return
data and change record ids.

Exit codes:
  0 - Every transaction reproduced
  1 - At least one divergence
  2 - Command error (database not found, etc.)

Examples:
  daokit replay --db ./daokit.db
  daokit replay --db ./daokit.db --into ./copy.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Into, "into", ":memory:", "database to replay into; must be new")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	source, cfg, err := opts.openStore()
	if err != nil {
		return err
	}
	defer source.Close()

	g, err := chain.LoadGenesis(ctx, source.Reader())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read genesis", err)
	}

	target, err := store.Open(opts.Into)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay database", err)
	}
	defer target.Close()

	logger := opts.logger(cmd, cfg)
	host, err := catalog.NewHost(g.ChainID,
		vm.WithMaxSteps(cfg.MaxSteps),
		vm.WithMaxDepth(cfg.MaxDepth),
		vm.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build host", err)
	}
	c, err := chain.New(ctx, target, host, chain.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay ledger", err)
	}
	if _, err := c.InitGenesis(ctx, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to apply genesis", err)
	}

	report, err := chain.Replay(ctx, source.Reader(), c)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	if err := opts.formatter(cmd).Success(report, func(w io.Writer) {
		if report.OK() {
			fmt.Fprintf(w, "✓ %d transaction(s) reproduced\n", report.Transactions)
			return
		}
		fmt.Fprintf(w, "✗ %d divergence(s) in %d transaction(s)\n", len(report.Divergences), report.Transactions)
		for _, d := range report.Divergences {
			fmt.Fprintf(w, "  seq %d tx %s: %s: logged %q, replayed %q\n", d.Seq, d.TxID, d.Field, d.Want, d.Got)
		}
	}); err != nil {
		return err
	}
	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d divergence(s)", len(report.Divergences)))
	}
	return nil
}
