// Package treasury holds an organization's native balance and tokens.
// Withdrawals are gated through the organization's capability registry.
package treasury

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/modules/token"
	"github.com/roach88/daokit/internal/vm"
)

// Code is the treasury's code identity.
const Code = "treasury"

// Operation signatures gated by the registry.
const (
	WithdrawEthSig    = "withdrawEth(address[],uint256[])"
	WithdrawTokensSig = "withdrawTokens(address,address[],uint256[])"
)

var (
	WithdrawEthOp    = access.FingerprintOf(WithdrawEthSig)
	WithdrawTokensOp = access.FingerprintOf(WithdrawTokensSig)
)

const treasuryABI = `[
	{"type":"function","name":"initialize","inputs":[{"name":"registry","type":"address"}],"outputs":[]},
	{"type":"function","name":"withdrawEth","inputs":[{"name":"recipients","type":"address[]"},{"name":"amounts","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"withdrawTokens","inputs":[{"name":"token","type":"address"},{"name":"recipients","type":"address[]"},{"name":"amounts","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"registry","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// ABI is the treasury's callable surface.
var ABI = vm.MustABI(treasuryABI)

// Treasury is the treasury component.
type Treasury struct{}

// Code implements vm.Contract.
func (Treasury) Code() string { return Code }

// ABI implements vm.Contract.
func (Treasury) ABI() *abi.ABI { return ABI }

// Call implements vm.Contract.
func (t Treasury) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "initialize":
		registry := args[0].(common.Address)
		if registry == (common.Address{}) {
			return nil, vm.Errorf(vm.KindInvalidInput, "registry address is zero")
		}
		return nil, f.SetAddress("registry", registry)
	case "withdrawEth":
		return nil, withdrawEth(f, args[0].([]common.Address), args[1].([]*big.Int))
	case "withdrawTokens":
		return nil, withdrawTokens(f, args[0].(common.Address), args[1].([]common.Address), args[2].([]*big.Int))
	case "registry":
		reg, err := f.GetAddress("registry")
		return []any{reg}, err
	}
	return nil, vm.ErrUnknownCall(t.Code(), m)
}

func authorize(f *vm.Frame, op access.Fingerprint, recipients int, amounts int) error {
	registry, err := f.GetAddress("registry")
	if err != nil {
		return err
	}
	if err := access.Authorize(f, registry, op); err != nil {
		return err
	}
	if recipients != amounts {
		return vm.Errorf(vm.KindArityMismatch, "%d recipients, %d amounts", recipients, amounts)
	}
	return nil
}

func withdrawEth(f *vm.Frame, recipients []common.Address, amounts []*big.Int) error {
	if err := authorize(f, WithdrawEthOp, len(recipients), len(amounts)); err != nil {
		return err
	}
	for i, to := range recipients {
		amount, err := vm.ToUint(amounts[i])
		if err != nil {
			return err
		}
		if _, err := f.Call(to, amount, nil); err != nil {
			return err
		}
		f.Emit("EthWithdrawn", vm.Fields("recipient", to, "amount", amount))
	}
	return nil
}

func withdrawTokens(f *vm.Frame, tok common.Address, recipients []common.Address, amounts []*big.Int) error {
	if err := authorize(f, WithdrawTokensOp, len(recipients), len(amounts)); err != nil {
		return err
	}
	for i, to := range recipients {
		if _, err := f.CallMethod(tok, token.ABI, "transfer", nil, to, amounts[i]); err != nil {
			return err
		}
		f.Emit("TokensWithdrawn", vm.Fields("token", tok, "recipient", to, "amount", amounts[i]))
	}
	return nil
}
