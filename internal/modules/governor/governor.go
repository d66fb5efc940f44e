// Package governor holds an organization's governance parameters. Voting
// and scheduling are outside this module; it only stores the executor it
// drives and a gated execution delay.
package governor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/vm"
)

// Code is the governor's code identity.
const Code = "governor"

// UpdateDelaySig is the gated operation.
const UpdateDelaySig = "updateDelay(uint256)"

// UpdateDelayOp is the fingerprint of updateDelay.
var UpdateDelayOp = access.FingerprintOf(UpdateDelaySig)

const governorABI = `[
	{"type":"function","name":"initialize","inputs":[{"name":"registry","type":"address"},{"name":"executor","type":"address"},{"name":"delay","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"updateDelay","inputs":[{"name":"delay","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"delay","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"executor","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"registry","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// ABI is the governor's callable surface.
var ABI = vm.MustABI(governorABI)

// Governor is the governor component.
type Governor struct{}

// Code implements vm.Contract.
func (Governor) Code() string { return Code }

// ABI implements vm.Contract.
func (Governor) ABI() *abi.ABI { return ABI }

// Call implements vm.Contract.
func (g Governor) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "initialize":
		registry, executor := args[0].(common.Address), args[1].(common.Address)
		if registry == (common.Address{}) || executor == (common.Address{}) {
			return nil, vm.Errorf(vm.KindInvalidInput, "registry and executor are required")
		}
		if err := f.SetAddress("registry", registry); err != nil {
			return nil, err
		}
		if err := f.SetAddress("executor", executor); err != nil {
			return nil, err
		}
		return nil, setDelay(f, args[2].(*big.Int))
	case "updateDelay":
		registry, err := f.GetAddress("registry")
		if err != nil {
			return nil, err
		}
		if err := access.Authorize(f, registry, UpdateDelayOp); err != nil {
			return nil, err
		}
		return nil, setDelay(f, args[0].(*big.Int))
	case "delay":
		d, err := f.GetUint("delay")
		if err != nil {
			return nil, err
		}
		return []any{d.ToBig()}, nil
	case "executor":
		a, err := f.GetAddress("executor")
		return []any{a}, err
	case "registry":
		a, err := f.GetAddress("registry")
		return []any{a}, err
	}
	return nil, vm.ErrUnknownCall(g.Code(), m)
}

func setDelay(f *vm.Frame, delay *big.Int) error {
	d, err := vm.ToUint(delay)
	if err != nil {
		return err
	}
	if err := f.SetUint("delay", d); err != nil {
		return err
	}
	f.Emit("DelayUpdated", vm.Fields("delay", d))
	return nil
}
