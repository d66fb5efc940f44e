package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/blueprint"
	"github.com/roach88/daokit/internal/orchestrator"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	From  string
	Value string
}

// DeployResult is the outcome of a deployment.
type DeployResult struct {
	Blueprint string            `json:"blueprint"`
	Predicted map[string]string `json:"predicted"`
	Steps     []string          `json:"steps"`
	Receipt   receiptView       `json:"receipt"`
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy <blueprint.cue>",
		Short: "Create a DAO from a blueprint",
		Long: `Compile a blueprint and submit it to the orchestrator.

The DAO, its modules and every configuration step are applied in one
transaction. If any step fails nothing is created and the failing step's
index is reported.

Exit codes:
  0 - DAO created
  1 - Transaction reverted
  2 - Command error

Examples:
  daokit deploy ./acme.cue --from 0x...a11ce
  daokit deploy ./acme.cue --from 0x...a11ce --value 1000 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "submitting account (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&opts.Value, "value", "", "native value sent with the deployment")

	return cmd
}

func runDeploy(opts *DeployOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	from, err := parseAddress(opts.From)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --from", err)
	}
	value, err := parseAmount(opts.Value)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --value", err)
	}
	bp, err := blueprint.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load blueprint", err)
	}

	n, err := opts.openNode(ctx, cmd)
	if err != nil {
		return err
	}
	defer n.Close()

	plan, err := blueprint.Compile(bp, blueprint.Env{Predictor: n.Chain.Host().Predictor(), Sender: from})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile blueprint", err)
	}
	data, err := plan.Calldata()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode deployment", err)
	}

	receipt, err := n.Chain.Apply(ctx, vm.Message{From: from, To: orchestrator.Address, Value: value, Data: data})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to apply deployment", err)
	}

	result := DeployResult{
		Blueprint: bp.Name,
		Predicted: make(map[string]string, len(plan.Predicted)),
		Steps:     plan.Labels,
		Receipt:   viewReceipt(receipt),
	}
	for name, addr := range plan.Predicted {
		result.Predicted[name] = store.AddrKey(addr)
	}

	formatter := opts.formatter(cmd)
	if receipt.Reverted() {
		details := map[string]any{"tx_id": receipt.TxID, "root_kind": result.Receipt.RootKind}
		if idx := result.Receipt.StepIndex; idx != nil {
			details["step"] = *idx
			if *idx < len(plan.Labels) {
				details["label"] = plan.Labels[*idx]
			}
		}
		if err := formatter.Error(ErrorKind(receipt.Err), receipt.Err.Error(), details); err != nil {
			return err
		}
		return revertError(receipt)
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s created in tx %s (seq %d)\n", bp.Name, receipt.TxID, receipt.Seq)
		names := make([]string, 0, len(result.Predicted))
		for name := range result.Predicted {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-12s %s\n", name, result.Predicted[name])
		}
		for i, label := range plan.Labels {
			fmt.Fprintf(w, "  step %d: %s\n", i, label)
		}
		fmt.Fprintf(w, "  %d change record(s)\n", len(receipt.Records))
	})
}
