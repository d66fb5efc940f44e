package cli

import (
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/blueprint"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/store"
)

// PredictOptions holds flags for the predict command.
type PredictOptions struct {
	*RootOptions
	Salt        string
	Deployer    string
	Kind        string
	Name        string
	Symbol      string
	Holders     []string
	Allocations []string
	Sender      string
}

// NewPredictCommand creates the predict command.
func NewPredictCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PredictOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "predict [blueprint.cue]",
		Short: "Compute deployment addresses before deploying",
		Long: `Compute the addresses a deployment will occupy.

With a blueprint, prints the core, the registry and every named deploy
step as the orchestrator would create them for --sender. Without one,
predicts a single deployment from --salt: a DAO by default, or a module
with --kind. Factories derive addresses from the account that submits
the transaction, so --deployer defaults to --sender.

Examples:
  daokit predict ./acme.cue --sender 0x...a11ce
  daokit predict --salt acme --sender 0x...a11ce
  daokit predict --salt vault --kind treasury --deployer 0x...b0b
  daokit predict --salt token --kind token --name Acme --symbol ACME \
    --holders 0x...a11ce --allocations 1000 --sender 0x...a11ce`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Salt, "salt", "", "salt label or 0x-prefixed 32-byte value")
	cmd.Flags().StringVar(&opts.Deployer, "deployer", "", "account submitting the deployment (defaults to --sender)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "dao", "dao, treasury, token or governor")
	cmd.Flags().StringVar(&opts.Name, "name", "", "token name (token only)")
	cmd.Flags().StringVar(&opts.Symbol, "symbol", "", "token symbol (token only)")
	cmd.Flags().StringSliceVar(&opts.Holders, "holders", nil, "initial token holders (token only)")
	cmd.Flags().StringSliceVar(&opts.Allocations, "allocations", nil, "initial balances, one per holder (token only)")
	cmd.Flags().StringVar(&opts.Sender, "sender", "", "account submitting the blueprint")

	return cmd
}

func runPredict(opts *PredictOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	p := addressing.New(cfg.ChainID)

	var predicted map[string]common.Address
	if len(args) == 1 {
		predicted, err = predictBlueprint(p, args[0], opts.Sender)
	} else {
		predicted, err = predictOne(p, opts)
	}
	if err != nil {
		return err
	}

	out := make(map[string]string, len(predicted))
	for name, addr := range predicted {
		out[name] = store.AddrKey(addr)
	}
	return opts.formatter(cmd).Success(out, func(w io.Writer) {
		names := make([]string, 0, len(out))
		for name := range out {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%-12s %s\n", name, out[name])
		}
	})
}

func predictBlueprint(p addressing.Predictor, path, sender string) (map[string]common.Address, error) {
	var from common.Address
	if sender != "" {
		var err error
		if from, err = parseAddress(sender); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid sender", err)
		}
	}
	bp, err := blueprint.LoadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load blueprint", err)
	}
	plan, err := blueprint.Compile(bp, blueprint.Env{Predictor: p, Sender: from})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to compile blueprint", err)
	}
	return plan.Predicted, nil
}

func predictOne(p addressing.Predictor, opts *PredictOptions) (map[string]common.Address, error) {
	if opts.Salt == "" {
		return nil, NewExitError(ExitCommandError, "--salt is required without a blueprint")
	}
	salt, err := addressing.ParseSalt(opts.Salt)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid salt", err)
	}
	account := opts.Deployer
	if account == "" {
		account = opts.Sender
	}
	if account == "" {
		return nil, NewExitError(ExitCommandError, "--deployer or --sender is required without a blueprint")
	}
	deployer, err := parseAddress(account)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid deployer", err)
	}

	switch opts.Kind {
	case "dao":
		coreAddr, registry := factory.PredictDAO(p, deployer, salt)
		return map[string]common.Address{"core": coreAddr, "registry": registry}, nil
	case "treasury":
		return map[string]common.Address{"treasury": factory.PredictTreasury(p, deployer, salt)}, nil
	case "governor":
		return map[string]common.Address{"governor": factory.PredictGovernor(p, deployer, salt)}, nil
	case "token":
		holders, allocations, err := tokenDistribution(opts.Holders, opts.Allocations)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid token distribution", err)
		}
		addr, err := factory.PredictToken(p, deployer, salt, opts.Name, opts.Symbol, holders, allocations)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to predict token", err)
		}
		return map[string]common.Address{"token": addr}, nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q: want dao, treasury, token or governor", opts.Kind))
}

func tokenDistribution(holders, allocations []string) ([]common.Address, []*big.Int, error) {
	addrs := make([]common.Address, 0, len(holders))
	for _, h := range holders {
		a, err := parseAddress(h)
		if err != nil {
			return nil, nil, err
		}
		addrs = append(addrs, a)
	}
	amounts := make([]*big.Int, 0, len(allocations))
	for _, s := range allocations {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok || n.Sign() < 0 {
			return nil, nil, fmt.Errorf("allocation %q is not a non-negative integer", s)
		}
		amounts = append(amounts, n)
	}
	return addrs, amounts, nil
}
