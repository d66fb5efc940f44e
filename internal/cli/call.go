package cli

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/blueprint"
	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/vm"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	From     string
	Value    string
	Contract string
	View     bool
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <to> [method] [json-args]",
		Short: "Call a component method",
		Long: `Encode a method call from JSON arguments and apply it.

The method is looked up in the ABI of the component at <to>, or of
--contract. Addresses may be hex or the name of a genesis component.
Large integers should be written as JSON numbers or decimal strings.
Without a method the call is a plain value transfer.

With --view the call is simulated and its return values are printed;
nothing is committed.

Examples:
  daokit call 0x...core execute '[["0x...reg"],[0],["0x..."]]' --from 0x...a11ce
  daokit call 0x...reg hasRole '["EXECUTE","0x...a11ce"]' --view
  daokit call 0x...b0b --value 100 --from 0x...a11ce`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "calling account")
	cmd.Flags().StringVar(&opts.Value, "value", "", "native value to send")
	cmd.Flags().StringVar(&opts.Contract, "contract", "", "contract kind whose ABI to use")
	cmd.Flags().BoolVar(&opts.View, "view", false, "simulate and print return values")

	return cmd
}

func runCall(opts *CallOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	to, err := parseAddress(args[0])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target", err)
	}
	if opts.From == "" && !opts.View {
		return NewExitError(ExitCommandError, "--from is required unless --view is set")
	}
	var from common.Address
	if opts.From != "" {
		if from, err = parseAddress(opts.From); err != nil {
			return WrapExitError(ExitCommandError, "invalid --from", err)
		}
	}
	value, err := parseAmount(opts.Value)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --value", err)
	}

	n, err := opts.openNode(ctx, cmd)
	if err != nil {
		return err
	}
	defer n.Close()

	var method string
	var data []byte
	var contract vm.Contract
	if len(args) > 1 {
		method = args[1]
		code := opts.Contract
		if code == "" {
			comp, found, err := n.Reader().Component(ctx, to)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read target", err)
			}
			if !found {
				return NewExitError(ExitCommandError, fmt.Sprintf("no component at %s; set --contract", to.Hex()))
			}
			code = comp.Code
		}
		var ok bool
		if contract, ok = catalog.ByCode()[code]; !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown contract %q", code))
		}
		var callArgs []any
		if len(args) > 2 {
			if callArgs, err = parseArgs(args[2]); err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}
		}
		if data, err = blueprint.EncodeCall(code, method, callArgs, nil); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode call", err)
		}
	}

	formatter := opts.formatter(cmd)
	if opts.View {
		out, err := n.Chain.Call(ctx, from, to, data)
		if err != nil {
			if ferr := formatter.Error(ErrorKind(err), err.Error(), nil); ferr != nil {
				return ferr
			}
			return WrapExitError(ExitFailure, "call failed", err)
		}
		var values []any
		if contract != nil {
			if values, err = contract.ABI().Unpack(method, out); err != nil {
				return WrapExitError(ExitCommandError, "failed to decode return data", err)
			}
		}
		return formatter.Success(map[string]any{"return": values}, func(w io.Writer) {
			for _, v := range values {
				fmt.Fprintln(w, formatValue(v))
			}
		})
	}

	receipt, err := n.Chain.Apply(ctx, vm.Message{From: from, To: to, Value: value, Data: data})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to apply call", err)
	}
	if receipt.Reverted() {
		if err := formatter.Error(ErrorKind(receipt.Err), receipt.Err.Error(), map[string]any{"tx_id": receipt.TxID}); err != nil {
			return err
		}
		return revertError(receipt)
	}
	view := viewReceipt(receipt)
	return formatter.Success(view, func(w io.Writer) {
		fmt.Fprintf(w, "✓ applied tx %s (seq %d)\n", receipt.TxID, receipt.Seq)
		for _, rec := range view.Records {
			fmt.Fprintf(w, "  %s %s %s\n", rec.Emitter, rec.Name, jsonText(rec.Fields))
		}
	})
}
