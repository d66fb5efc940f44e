package factory

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/modules/governor"
	"github.com/roach88/daokit/internal/modules/token"
	"github.com/roach88/daokit/internal/modules/treasury"
	"github.com/roach88/daokit/internal/vm"
)

// Code identities of the module factories.
const (
	TreasuryFactoryCode = "treasury-factory"
	TokenFactoryCode    = "token-factory"
	GovernorFactoryCode = "governor-factory"
)

var (
	TreasuryFactoryABI = vm.MustABI(`[
		{"type":"function","name":"create","inputs":[{"name":"registry","type":"address"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"predict","stateMutability":"view","inputs":[{"name":"deployer","type":"address"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
	]`)
	TokenFactoryABI = vm.MustABI(`[
		{"type":"function","name":"create","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"holders","type":"address[]"},{"name":"allocations","type":"uint256[]"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"predict","stateMutability":"view","inputs":[{"name":"deployer","type":"address"},{"name":"salt","type":"bytes32"},{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"holders","type":"address[]"},{"name":"allocations","type":"uint256[]"}],"outputs":[{"name":"","type":"address"}]}
	]`)
	GovernorFactoryABI = vm.MustABI(`[
		{"type":"function","name":"create","inputs":[{"name":"registry","type":"address"},{"name":"executor","type":"address"},{"name":"delay","type":"uint256"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"predict","stateMutability":"view","inputs":[{"name":"deployer","type":"address"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}
	]`)
)

// tokenArgs are the token constructor arguments hashed into its address.
// The initial distribution is part of them: two tokens that differ only in
// holders or allocations get different addresses.
var tokenArgs = abi.Arguments{
	{Name: "name", Type: mustType("string")},
	{Name: "symbol", Type: mustType("string")},
	{Name: "holders", Type: mustType("address[]")},
	{Name: "allocations", Type: mustType("uint256[]")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// TreasuryFactory deploys treasuries bound to a registry.
type TreasuryFactory struct{}

func (TreasuryFactory) Code() string  { return TreasuryFactoryCode }
func (TreasuryFactory) ABI() *abi.ABI { return TreasuryFactoryABI }

func (t TreasuryFactory) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "create":
		registry, salt := args[0].(common.Address), args[1].([32]byte)
		init, err := packInit(treasury.ABI, registry)
		if err != nil {
			return nil, err
		}
		addr, err := f.Create(vm.Deployment{Code: treasury.Code, Deployer: f.Origin(), Salt: salt, Init: init})
		if err != nil {
			return nil, err
		}
		f.Emit("TreasuryCreated", vm.Fields("treasury", addr, "registry", registry))
		return []any{addr}, nil
	case "predict":
		return []any{PredictTreasury(f.Predictor(), args[0].(common.Address), args[1].([32]byte))}, nil
	}
	return nil, vm.ErrUnknownCall(t.Code(), m)
}

// PredictTreasury returns the address a treasury deployed by deployer with
// salt receives.
func PredictTreasury(p addressing.Predictor, deployer common.Address, salt [32]byte) common.Address {
	return predict(p, TreasuryFactoryAddress, deployer, salt, treasury.Code, nil)
}

// TokenFactory deploys tokens. Name, symbol and the initial distribution
// are constructor arguments and therefore part of the address.
type TokenFactory struct{}

func (TokenFactory) Code() string  { return TokenFactoryCode }
func (TokenFactory) ABI() *abi.ABI { return TokenFactoryABI }

func (t TokenFactory) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "create":
		name, symbol := args[0].(string), args[1].(string)
		holders, allocations := args[2].([]common.Address), args[3].([]*big.Int)
		ctorArgs, err := tokenArgs.Pack(name, symbol, holders, allocations)
		if err != nil {
			return nil, vm.Wrap(vm.KindInvalidInput, err, "encode token arguments")
		}
		init, err := packInit(token.ABI, name, symbol, holders, allocations)
		if err != nil {
			return nil, err
		}
		addr, err := f.Create(vm.Deployment{Code: token.Code, Deployer: f.Origin(), Salt: args[4].([32]byte), Args: ctorArgs, Init: init})
		if err != nil {
			return nil, err
		}
		f.Emit("TokenCreated", vm.Fields("token", addr, "symbol", symbol))
		return []any{addr}, nil
	case "predict":
		addr, err := PredictToken(f.Predictor(), args[0].(common.Address), args[1].([32]byte),
			args[2].(string), args[3].(string), args[4].([]common.Address), args[5].([]*big.Int))
		if err != nil {
			return nil, vm.Wrap(vm.KindInvalidInput, err, "encode token arguments")
		}
		return []any{addr}, nil
	}
	return nil, vm.ErrUnknownCall(t.Code(), m)
}

// PredictToken returns the address a token deployed by deployer with salt
// and the given constructor arguments receives. Nil slices predict the
// same address as empty ones.
func PredictToken(p addressing.Predictor, deployer common.Address, salt [32]byte, name, symbol string,
	holders []common.Address, allocations []*big.Int) (common.Address, error) {
	if holders == nil {
		holders = []common.Address{}
	}
	if allocations == nil {
		allocations = []*big.Int{}
	}
	ctorArgs, err := tokenArgs.Pack(name, symbol, holders, allocations)
	if err != nil {
		return common.Address{}, err
	}
	return predict(p, TokenFactoryAddress, deployer, salt, token.Code, ctorArgs), nil
}

// GovernorFactory deploys governors bound to a registry and an executor.
type GovernorFactory struct{}

func (GovernorFactory) Code() string  { return GovernorFactoryCode }
func (GovernorFactory) ABI() *abi.ABI { return GovernorFactoryABI }

func (g GovernorFactory) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "create":
		registry := args[0].(common.Address)
		init, err := packInit(governor.ABI, registry, args[1].(common.Address), args[2].(*big.Int))
		if err != nil {
			return nil, err
		}
		addr, err := f.Create(vm.Deployment{Code: governor.Code, Deployer: f.Origin(), Salt: args[3].([32]byte), Init: init})
		if err != nil {
			return nil, err
		}
		f.Emit("GovernorCreated", vm.Fields("governor", addr, "registry", registry))
		return []any{addr}, nil
	case "predict":
		return []any{PredictGovernor(f.Predictor(), args[0].(common.Address), args[1].([32]byte))}, nil
	}
	return nil, vm.ErrUnknownCall(g.Code(), m)
}

// PredictGovernor returns the address a governor deployed by deployer with
// salt receives.
func PredictGovernor(p addressing.Predictor, deployer common.Address, salt [32]byte) common.Address {
	return predict(p, GovernorFactoryAddress, deployer, salt, governor.Code, nil)
}
