// Package factory implements the component factories. Factories are
// stateless components pre-deployed at genesis; each one deploys a single
// component kind at the address the predictor assigns to (factory,
// originator, salt, code, args) and initializes it in the same frame.
//
// The deployer is the account that submitted the transaction, not the
// immediate caller. A DAO created through the orchestrator therefore
// lands where its submitter predicted, and no other account can take
// that address by reusing the salt.
package factory

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/vm"
)

// Genesis addresses of the factories.
var (
	CoreFactoryAddress     = common.HexToAddress("0x0000000000000000000000000000000000000f01")
	TreasuryFactoryAddress = common.HexToAddress("0x0000000000000000000000000000000000000f02")
	TokenFactoryAddress    = common.HexToAddress("0x0000000000000000000000000000000000000f03")
	GovernorFactoryAddress = common.HexToAddress("0x0000000000000000000000000000000000000f04")
)

// Predeploy pairs a genesis address with its code.
type Predeploy struct {
	Address  common.Address
	Contract vm.Contract
}

// Predeploys lists every factory with its genesis address.
func Predeploys() []Predeploy {
	return []Predeploy{
		{CoreFactoryAddress, CoreFactory{}},
		{TreasuryFactoryAddress, TreasuryFactory{}},
		{TokenFactoryAddress, TokenFactory{}},
		{GovernorFactoryAddress, GovernorFactory{}},
	}
}

// Kinds maps the deployable kinds to their factory address.
var Kinds = map[string]common.Address{
	"core":     CoreFactoryAddress,
	"treasury": TreasuryFactoryAddress,
	"token":    TokenFactoryAddress,
	"governor": GovernorFactoryAddress,
}

func predict(p addressing.Predictor, factory, deployer common.Address, salt [32]byte, code string, args []byte) common.Address {
	return p.Predict(factory, deployer, salt, addressing.CodeHash(code), addressing.ArgsHash(args))
}

func packInit(a *abi.ABI, args ...any) ([]byte, error) {
	data, err := a.Pack(vm.InitializerName, args...)
	if err != nil {
		return nil, vm.Wrap(vm.KindInvalidInput, err, "encode initializer")
	}
	return data, nil
}
