// Package orchestrator implements the one-shot organization bootstrapper.
//
// createDAOAndExecute deploys a core executor and its registry through the
// core factory, drives a caller-supplied batch with a temporary execute
// capability, then gives that capability up. The whole call is one frame:
// any failure, including a capability that survives release, rolls back
// every deployment and every batch effect.
package orchestrator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/vm"
)

// Code is the orchestrator's code identity.
const Code = "orchestrator"

// Address is the orchestrator's genesis address.
var Address = common.HexToAddress("0x0000000000000000000000000000000000000f00")

const orchestratorABI = `[
	{"type":"function","name":"createDAOAndExecute","inputs":[
		{"name":"coreFactory","type":"address"},
		{"name":"salt","type":"bytes32"},
		{"name":"name","type":"string"},
		{"name":"roles","type":"string[]"},
		{"name":"roleAdmins","type":"string[]"},
		{"name":"members","type":"address[][]"},
		{"name":"daoOps","type":"bytes4[]"},
		{"name":"daoActionRoles","type":"string[][]"},
		{"name":"targets","type":"address[]"},
		{"name":"values","type":"uint256[]"},
		{"name":"payloads","type":"bytes[]"}],
	 "outputs":[{"name":"core","type":"address"},{"name":"registry","type":"address"}]}
]`

// ABI is the orchestrator's callable surface.
var ABI = vm.MustABI(orchestratorABI)

// Step is one batch entry, sent from the orchestrator itself.
type Step struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
}

// Request is the full input of createDAOAndExecute.
type Request struct {
	CoreFactory common.Address
	Salt        [32]byte
	Founding    factory.Founding
	Steps       []Step
}

// MetaFactory is the orchestrator component.
type MetaFactory struct{}

// Code implements vm.Contract.
func (MetaFactory) Code() string { return Code }

// ABI implements vm.Contract.
func (MetaFactory) ABI() *abi.ABI { return ABI }

// Call implements vm.Contract.
func (o MetaFactory) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	if m.Name != "createDAOAndExecute" {
		return nil, vm.ErrUnknownCall(o.Code(), m)
	}
	targets, values, payloads := args[8].([]common.Address), args[9].([]*big.Int), args[10].([][]byte)
	if len(targets) != len(values) || len(targets) != len(payloads) {
		return nil, vm.Errorf(vm.KindArityMismatch, "%d targets, %d values, %d payloads",
			len(targets), len(values), len(payloads))
	}
	steps := make([]Step, len(targets))
	for i := range targets {
		steps[i] = Step{Target: targets[i], Value: values[i], Payload: payloads[i]}
	}
	req := Request{
		CoreFactory: args[0].(common.Address),
		Salt:        args[1].([32]byte),
		Founding: factory.Founding{
			Name:           args[2].(string),
			Roles:          args[3].([]string),
			Admins:         args[4].([]string),
			Members:        args[5].([][]common.Address),
			DAOOps:         args[6].([][4]byte),
			DAOActionRoles: args[7].([][]string),
		},
		Steps: steps,
	}

	b := newBootstrap(f, req)
	if err := b.run(); err != nil {
		return nil, err
	}
	return []any{b.core, b.registry}, nil
}

// Calldata encodes a createDAOAndExecute call.
func Calldata(req Request) ([]byte, error) {
	targets := make([]common.Address, len(req.Steps))
	values := make([]*big.Int, len(req.Steps))
	payloads := make([][]byte, len(req.Steps))
	for i, s := range req.Steps {
		targets[i] = s.Target
		values[i] = s.Value
		if values[i] == nil {
			values[i] = new(big.Int)
		}
		payloads[i] = s.Payload
		if payloads[i] == nil {
			payloads[i] = []byte{}
		}
	}
	fd := req.Founding
	return ABI.Pack("createDAOAndExecute", req.CoreFactory, req.Salt, fd.Name, fd.Roles, fd.Admins,
		fd.Members, fd.DAOOps, fd.DAOActionRoles, targets, values, payloads)
}
