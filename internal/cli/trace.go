package cli

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Emitter string
	Name    string
}

// TraceResult is the change records of a transaction or component.
type TraceResult struct {
	Transaction *ir.Transaction `json:"transaction,omitempty"`
	Records     []ir.Record     `json:"records"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [tx-id]",
		Short: "Show change records",
		Long: `Show the change records of one transaction, or every record emitted
by a component.

Reverted transactions are listed with their error and no records.

Examples:
  daokit trace 3f2a...
  daokit trace --emitter 0x...reg
  daokit trace --emitter orchestrator --name DAOCreated --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Emitter, "emitter", "", "only records emitted by this component")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only records with this name")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	if len(args) == 0 && opts.Emitter == "" {
		return NewExitError(ExitCommandError, "give a transaction id or --emitter")
	}
	ctx := cmd.Context()
	s, _, err := opts.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	r := s.Reader()

	var result TraceResult
	filter := store.RecordFilter{Name: opts.Name}
	if len(args) == 1 {
		tx, found, err := r.Transaction(ctx, args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read transaction", err)
		}
		if !found {
			return NewExitError(ExitCommandError, fmt.Sprintf("transaction %s not found", args[0]))
		}
		result.Transaction = &tx
		filter.TxID = tx.ID
	}
	if opts.Emitter != "" {
		var emitter common.Address
		if emitter, err = parseAddress(opts.Emitter); err != nil {
			return WrapExitError(ExitCommandError, "invalid --emitter", err)
		}
		filter.Emitter = emitter
	}
	if result.Records, err = r.Records(ctx, filter); err != nil {
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}

	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		if tx := result.Transaction; tx != nil {
			fmt.Fprintf(w, "tx %s seq=%d %s -> %s value=%s %s\n", tx.ID, tx.Seq, tx.From, tx.To, tx.Value, tx.Status)
			if tx.Error != "" {
				fmt.Fprintf(w, "  error [%s]: %s\n", tx.ErrorKind, tx.Error)
			}
		}
		for _, rec := range result.Records {
			fmt.Fprintf(w, "  [%d.%d] %s %s %s\n", rec.Seq, rec.Index, rec.Emitter, rec.Name, jsonText(rec.Fields))
		}
		if len(result.Records) == 0 {
			fmt.Fprintln(w, "  no records")
		}
	})
}
