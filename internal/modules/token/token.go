// Package token is a minimal fungible token, present so organizations have
// a real token to mint at creation and to move from batches.
package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// Code is the token's code identity.
const Code = "token"

const tokenABI = `[
	{"type":"function","name":"initialize","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"holders","type":"address[]"},{"name":"allocations","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

// ABI is the token's callable surface.
var ABI = vm.MustABI(tokenABI)

// Token is the token component.
type Token struct{}

// Code implements vm.Contract.
func (Token) Code() string { return Code }

// ABI implements vm.Contract.
func (Token) ABI() *abi.ABI { return ABI }

func balanceKey(a common.Address) string { return vm.Key("balance", store.AddrKey(a)) }

// Call implements vm.Contract.
func (t Token) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "initialize":
		return nil, initialize(f, args[0].(string), args[1].(string), args[2].([]common.Address), args[3].([]*big.Int))
	case "transfer":
		amount, err := vm.ToUint(args[1].(*big.Int))
		if err != nil {
			return nil, err
		}
		if err := move(f, f.Caller, args[0].(common.Address), amount); err != nil {
			return nil, err
		}
		return []any{true}, nil
	case "balanceOf":
		bal, err := f.GetUint(balanceKey(args[0].(common.Address)))
		if err != nil {
			return nil, err
		}
		return []any{bal.ToBig()}, nil
	case "totalSupply":
		supply, err := f.GetUint("supply")
		if err != nil {
			return nil, err
		}
		return []any{supply.ToBig()}, nil
	case "name":
		name, err := f.GetString("name")
		return []any{name}, err
	case "symbol":
		symbol, err := f.GetString("symbol")
		return []any{symbol}, err
	}
	return nil, vm.ErrUnknownCall(t.Code(), m)
}

func initialize(f *vm.Frame, name, symbol string, holders []common.Address, allocations []*big.Int) error {
	if len(holders) != len(allocations) {
		return vm.Errorf(vm.KindArityMismatch, "%d holders, %d allocations", len(holders), len(allocations))
	}
	if symbol == "" {
		return vm.Errorf(vm.KindInvalidInput, "empty symbol")
	}
	if err := f.SetString("name", name); err != nil {
		return err
	}
	if err := f.SetString("symbol", symbol); err != nil {
		return err
	}
	supply := new(uint256.Int)
	for i, holder := range holders {
		amount, err := vm.ToUint(allocations[i])
		if err != nil {
			return err
		}
		bal, err := f.GetUint(balanceKey(holder))
		if err != nil {
			return err
		}
		if err := f.SetUint(balanceKey(holder), new(uint256.Int).Add(bal, amount)); err != nil {
			return err
		}
		if _, overflow := supply.AddOverflow(supply, amount); overflow {
			return vm.Errorf(vm.KindInvalidInput, "total supply overflows uint256")
		}
		f.Emit("Transfer", vm.Fields("from", common.Address{}, "to", holder, "amount", amount))
	}
	return f.SetUint("supply", supply)
}

func move(f *vm.Frame, from, to common.Address, amount *uint256.Int) error {
	fromBal, err := f.GetUint(balanceKey(from))
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return vm.Errorf(vm.KindInsufficientBalance, "%s holds %s, needs %s", from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if err := f.SetUint(balanceKey(from), new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := f.GetUint(balanceKey(to))
	if err != nil {
		return err
	}
	if err := f.SetUint(balanceKey(to), new(uint256.Int).Add(toBal, amount)); err != nil {
		return err
	}
	f.Emit("Transfer", vm.Fields("from", from, "to", to, "amount", amount))
	return nil
}
