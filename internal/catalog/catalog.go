// Package catalog lists the component code a node runs and the components
// present at genesis.
package catalog

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/core"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/modules/governor"
	"github.com/roach88/daokit/internal/modules/token"
	"github.com/roach88/daokit/internal/modules/treasury"
	"github.com/roach88/daokit/internal/orchestrator"
	"github.com/roach88/daokit/internal/vm"
)

// Contracts returns every component kind.
func Contracts() []vm.Contract {
	contracts := []vm.Contract{
		access.Registry{},
		core.Executor{},
		token.Token{},
		treasury.Treasury{},
		governor.Governor{},
		orchestrator.MetaFactory{},
	}
	for _, p := range factory.Predeploys() {
		contracts = append(contracts, p.Contract)
	}
	return contracts
}

// NewHost returns a host for chainID with every component kind registered.
func NewHost(chainID uint64, opts ...vm.Option) (*vm.Host, error) {
	h := vm.NewHost(addressing.New(chainID), opts...)
	if err := h.Register(Contracts()...); err != nil {
		return nil, err
	}
	return h, nil
}

// Predeploys returns the factories and the orchestrator at their genesis
// addresses.
func Predeploys() []chain.Predeploy {
	out := []chain.Predeploy{{Address: orchestrator.Address, Code: orchestrator.Code}}
	for _, p := range factory.Predeploys() {
		out = append(out, chain.Predeploy{Address: p.Address, Code: p.Contract.Code()})
	}
	return out
}

// Genesis returns the standard genesis for chainID with alloc balances.
func Genesis(chainID uint64, alloc map[common.Address]*uint256.Int) chain.Genesis {
	return chain.Genesis{ChainID: chainID, Alloc: alloc, Predeploys: Predeploys()}
}

// ByCode maps code identities to their component kind.
func ByCode() map[string]vm.Contract {
	out := make(map[string]vm.Contract)
	for _, c := range Contracts() {
		out[c.Code()] = c
	}
	return out
}
