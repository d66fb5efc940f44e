package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/blueprint"
	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/orchestrator"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// ChainID is the chain id every scenario runs with.
const ChainID = 1337

// Well-known accounts, usable by name in scenarios.
var Accounts = map[string]common.Address{
	"alice": common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
	"bob":   common.HexToAddress("0x0000000000000000000000000000000000000b0b"),
	"carol": common.HexToAddress("0x00000000000000000000000000000000000ca201"),
}

// DefaultBalance is each well-known account's genesis balance unless the
// scenario sets an alloc.
const DefaultBalance = 1_000_000

// Run executes a scenario against a fresh in-memory ledger and returns the
// trace and every failed expectation. The error is non-nil only when the
// scenario could not be run at all.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	s, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	host, err := catalog.NewHost(ChainID)
	if err != nil {
		return nil, err
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := chain.New(ctx, s, host,
		chain.WithFlowGenerator(chain.NewSequenceGenerator(sc.Name)),
		chain.WithLogger(quiet))
	if err != nil {
		return nil, err
	}

	alloc, err := genesisAlloc(sc.Alloc)
	if err != nil {
		return nil, err
	}
	if _, err := c.InitGenesis(ctx, catalog.Genesis(ChainID, alloc)); err != nil {
		return nil, fmt.Errorf("failed to apply genesis: %w", err)
	}

	sender, err := account(sc.Sender, "alice")
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	bp, err := blueprint.LoadFile(sc.BlueprintPath())
	if err != nil {
		return nil, err
	}
	plan, err := blueprint.Compile(bp, blueprint.Env{
		Predictor: host.Predictor(),
		Sender:    sender,
		Accounts:  Accounts,
	})
	if err != nil {
		return nil, err
	}

	r := &runner{ctx: ctx, chain: c, plan: plan, result: NewResult()}
	for name, addr := range plan.Predicted {
		r.result.Predicted[name] = store.AddrKey(addr)
	}

	data, err := plan.Calldata()
	if err != nil {
		return nil, err
	}
	value, err := amount(sc.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	if err := r.apply("deploy "+bp.Name, vm.Message{
		From: sender, To: orchestrator.Address, Value: value, Data: data,
	}, sc.Expect); err != nil {
		return nil, err
	}

	for i, call := range sc.Calls {
		if err := r.call(i, call); err != nil {
			return nil, err
		}
	}

	for i, a := range sc.Assertions {
		if err := r.check(a); err != nil {
			r.result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return r.result, nil
}

type runner struct {
	ctx    context.Context
	chain  *chain.Chain
	plan   *blueprint.Plan
	result *Result
}

func (r *runner) call(i int, call Call) error {
	from, err := r.plan.Resolve(refOf(call.From))
	if err != nil {
		return fmt.Errorf("calls[%d].from: %w", i, err)
	}
	to, err := r.plan.Resolve(refOf(call.To))
	if err != nil {
		return fmt.Errorf("calls[%d].to: %w", i, err)
	}
	var data []byte
	label := "transfer"
	if call.Method != "" {
		to, data, err = r.plan.Encode(refOf(call.To), call.Contract, call.Method, call.Args)
		if err != nil {
			return fmt.Errorf("calls[%d]: %w", i, err)
		}
		label = call.Method
	}
	value, err := amount(call.Value)
	if err != nil {
		return fmt.Errorf("calls[%d].value: %w", i, err)
	}
	return r.apply(fmt.Sprintf("call %d %s", i, label), vm.Message{
		From: from, To: to, Value: value, Data: data,
	}, call.Expect)
}

// apply submits msg, appends it to the trace and checks expect, which
// defaults to applied.
func (r *runner) apply(label string, msg vm.Message, expect *Expect) error {
	receipt, err := r.chain.Apply(r.ctx, msg)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	ev := TraceEvent{
		Seq:     receipt.Seq,
		Label:   label,
		TxID:    receipt.TxID,
		From:    store.AddrKey(msg.From),
		To:      store.AddrKey(msg.To),
		Status:  receipt.Status,
		Records: make([]TraceRecord, 0, len(receipt.Records)),
	}
	if receipt.Err != nil {
		ev.ErrorKind = string(vm.KindOf(receipt.Err))
	}
	for _, rec := range receipt.Records {
		ev.Records = append(ev.Records, TraceRecord{
			ID: rec.ID, Emitter: rec.Emitter, Name: rec.Name, Fields: rec.Fields,
		})
	}
	r.result.Trace = append(r.result.Trace, ev)

	if expect == nil {
		expect = &Expect{Status: ir.StatusApplied}
	}
	if receipt.Status != expect.Status {
		msg := fmt.Sprintf("%s: status %s, want %s", label, receipt.Status, expect.Status)
		if receipt.Err != nil {
			msg += ": " + receipt.Err.Error()
		}
		r.result.AddError(msg)
		return nil
	}
	if expect.Error != "" && !matchesKind(receipt.Err, expect.Error) {
		r.result.AddError(fmt.Sprintf("%s: error %v, want kind %s", label, receipt.Err, expect.Error))
	}
	return nil
}

// matchesKind accepts the outermost or the root kind, so a failed
// deployment can be expected as StepFailed or by its cause.
func matchesKind(err error, kind string) bool {
	if err == nil {
		return false
	}
	return string(vm.KindOf(err)) == kind || string(vm.RootKind(err)) == kind
}

func genesisAlloc(spec map[string]string) (map[common.Address]*uint256.Int, error) {
	alloc := make(map[common.Address]*uint256.Int)
	if len(spec) == 0 {
		for _, addr := range Accounts {
			alloc[addr] = uint256.NewInt(DefaultBalance)
		}
		return alloc, nil
	}
	for name, amt := range spec {
		addr, err := account(name, "")
		if err != nil {
			return nil, fmt.Errorf("alloc: %w", err)
		}
		v, err := uint256.FromDecimal(amt)
		if err != nil {
			return nil, fmt.Errorf("alloc %s: %w", name, err)
		}
		alloc[addr] = v
	}
	return alloc, nil
}

// account resolves a well-known name or a hex address.
func account(s, fallback string) (common.Address, error) {
	if s == "" {
		s = fallback
	}
	if addr, ok := Accounts[strings.ToLower(s)]; ok {
		return addr, nil
	}
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	return common.Address{}, fmt.Errorf("unknown account %q", s)
}

// refOf lets a bare account name stand for its reference.
func refOf(s string) string {
	if _, ok := Accounts[strings.ToLower(s)]; ok {
		return "${" + strings.ToLower(s) + "}"
	}
	return s
}

func amount(v any) (*uint256.Int, error) {
	if v == nil {
		return nil, nil
	}
	n, err := blueprint.Amount(v)
	if err != nil {
		return nil, err
	}
	return bigToUint(n)
}

func bigToUint(n *big.Int) (*uint256.Int, error) {
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", n)
	}
	v, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("amount %s overflows 256 bits", n)
	}
	return v, nil
}
