// Package core implements the core executor: the organization's identity
// and its one generic, capability-gated call forwarder.
//
// Authorization is checked once, on entry to execute, by asking the
// registry whether the caller may perform (self, execute). A caller holding
// that capability can reach any number of downstream targets in one call;
// forwarded calls are not re-checked. Upgrades are gated by their own
// action and never by the execute capability.
package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/vm"
)

// Code is the core executor's code identity.
const Code = "core"

// Operation signatures gated by the registry.
const (
	ExecuteSig = "execute(address[],uint256[],bytes[])"
	UpgradeSig = "upgradeTo(address)"
)

var (
	// ExecuteOp is the fingerprint of execute.
	ExecuteOp = access.FingerprintOf(ExecuteSig)
	// UpgradeOp is the fingerprint of upgradeTo.
	UpgradeOp = access.FingerprintOf(UpgradeSig)
)

const coreABI = `[
	{"type":"function","name":"initialize","inputs":[{"name":"registry","type":"address"},{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"execute","inputs":[{"name":"targets","type":"address[]"},{"name":"values","type":"uint256[]"},{"name":"payloads","type":"bytes[]"}],"outputs":[{"name":"results","type":"bytes[]"}]},
	{"type":"function","name":"upgradeTo","inputs":[{"name":"implementation","type":"address"}],"outputs":[]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"registry","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"implementation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// ABI is the core executor's callable surface.
var ABI = vm.MustABI(coreABI)

// Executor is the core executor component.
type Executor struct{}

// Code implements vm.Contract.
func (Executor) Code() string { return Code }

// ABI implements vm.Contract.
func (Executor) ABI() *abi.ABI { return ABI }

// Call implements vm.Contract.
func (e Executor) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "initialize":
		registry := args[0].(common.Address)
		if registry == (common.Address{}) {
			return nil, vm.Errorf(vm.KindInvalidInput, "registry address is zero")
		}
		if err := f.SetAddress("registry", registry); err != nil {
			return nil, err
		}
		return nil, f.SetString("name", args[1].(string))
	case "execute":
		results, err := execute(f, args[0].([]common.Address), args[1].([]*big.Int), args[2].([][]byte))
		if err != nil {
			return nil, err
		}
		return []any{results}, nil
	case "upgradeTo":
		return nil, upgrade(f, args[0].(common.Address))
	case "name":
		name, err := f.GetString("name")
		return []any{name}, err
	case "registry":
		reg, err := f.GetAddress("registry")
		return []any{reg}, err
	case "implementation":
		impl, err := f.GetAddress("implementation")
		return []any{impl}, err
	}
	return nil, vm.ErrUnknownCall(e.Code(), m)
}

func execute(f *vm.Frame, targets []common.Address, values []*big.Int, payloads [][]byte) ([][]byte, error) {
	registry, err := f.GetAddress("registry")
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(f, registry, ExecuteOp); err != nil {
		return nil, err
	}
	if len(targets) != len(values) || len(targets) != len(payloads) {
		return nil, vm.Errorf(vm.KindArityMismatch, "%d targets, %d values, %d payloads",
			len(targets), len(values), len(payloads))
	}

	results := make([][]byte, len(targets))
	for i, target := range targets {
		value, err := vm.ToUint(values[i])
		if err != nil {
			return nil, vm.AtIndex(vm.KindSubcallReverted, i, err)
		}
		out, err := f.Call(target, value, payloads[i])
		if err != nil {
			return nil, vm.AtIndex(vm.KindSubcallReverted, i, err)
		}
		results[i] = out
	}
	f.Emit("Executed", vm.Fields("caller", f.Caller, "targets", targets, "values", values))
	return results, nil
}

func upgrade(f *vm.Frame, implementation common.Address) error {
	registry, err := f.GetAddress("registry")
	if err != nil {
		return err
	}
	if err := access.Authorize(f, registry, UpgradeOp); err != nil {
		return err
	}
	if err := f.SetAddress("implementation", implementation); err != nil {
		return err
	}
	f.Emit("Upgraded", vm.Fields("implementation", implementation))
	return nil
}

// ExecuteCalldata encodes a call to execute.
func ExecuteCalldata(targets []common.Address, values []*big.Int, payloads [][]byte) ([]byte, error) {
	if values == nil {
		values = make([]*big.Int, len(targets))
		for i := range values {
			values[i] = new(big.Int)
		}
	}
	return ABI.Pack("execute", targets, values, payloads)
}
