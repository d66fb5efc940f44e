package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/config"
	"github.com/roach88/daokit/internal/node"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// loadConfig reads --config, or the defaults without one, and applies
// the --db and --verbose overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		var err error
		if cfg, err = config.Load(o.Config); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// logger writes text logs to stderr. Without --verbose only warnings and
// errors reach the terminal.
func (o *RootOptions) logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose || cfg.Level() < slog.LevelInfo {
		level = cfg.Level()
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openNode opens the configured ledger, applying genesis on first use.
func (o *RootOptions) openNode(ctx context.Context, cmd *cobra.Command, opts ...chain.Option) (*node.Node, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	n, err := node.Open(ctx, cfg, node.WithLogger(o.logger(cmd, cfg)), node.WithChainOptions(opts...))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	return n, nil
}

// openStore opens the configured database for reading.
func (o *RootOptions) openStore() (*store.Store, config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, cfg, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return s, cfg, nil
}

// parseAddress accepts a hex address or the code name of a genesis
// component, e.g. "orchestrator" or "treasury-factory".
func parseAddress(s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	for _, p := range catalog.Predeploys() {
		if p.Code == strings.ToLower(s) {
			return p.Address, nil
		}
	}
	return common.Address{}, fmt.Errorf("%q is not an address or a genesis component", s)
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

// parseArgs decodes a JSON array of call arguments. Numbers keep their
// full precision.
func parseArgs(s string) ([]any, error) {
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var args []any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON array: %w", err)
	}
	return args, nil
}

// receiptView is the printable form of a receipt.
type receiptView struct {
	TxID      string         `json:"tx_id"`
	Seq       int64          `json:"seq"`
	Status    string         `json:"status"`
	Return    string         `json:"return,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	RootKind  string         `json:"root_kind,omitempty"`
	StepIndex *int           `json:"step_index,omitempty"`
	Error     string         `json:"error,omitempty"`
	Records   []recordView   `json:"records"`
	Extra     map[string]any `json:"extra,omitempty"`
}

type recordView struct {
	Emitter string `json:"emitter"`
	Name    string `json:"name"`
	Fields  any    `json:"fields"`
}

func viewReceipt(r chain.Receipt) receiptView {
	v := receiptView{
		TxID:    r.TxID,
		Seq:     r.Seq,
		Status:  r.Status,
		Records: make([]recordView, 0, len(r.Records)),
	}
	if len(r.Return) > 0 {
		v.Return = fmt.Sprintf("0x%x", r.Return)
	}
	if r.Err != nil {
		v.ErrorKind = string(vm.KindOf(r.Err))
		v.RootKind = string(vm.RootKind(r.Err))
		if i := vm.IndexOf(r.Err); i >= 0 {
			v.StepIndex = &i
		}
		v.Error = r.Err.Error()
	}
	for _, rec := range r.Records {
		v.Records = append(v.Records, recordView{Emitter: rec.Emitter, Name: rec.Name, Fields: rec.Fields})
	}
	return v
}

// revertError turns a reverted receipt into the command's failure.
func revertError(r chain.Receipt) error {
	msg := fmt.Sprintf("transaction %s reverted", r.TxID)
	if i := vm.IndexOf(r.Err); i >= 0 {
		msg = fmt.Sprintf("%s at step %d", msg, i)
	}
	return WrapExitError(ExitFailure, msg, r.Err)
}

// formatValue renders a decoded ABI value for text output.
func formatValue(v any) string {
	switch x := v.(type) {
	case [4]byte:
		return hexutil.Encode(x[:])
	case [32]byte:
		return hexutil.Encode(x[:])
	case []byte:
		return hexutil.Encode(x)
	case common.Address:
		return store.AddrKey(x)
	}
	return fmt.Sprint(v)
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
