package factory

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/core"
	"github.com/roach88/daokit/internal/vm"
)

// CoreFactoryCode is the core factory's code identity.
const CoreFactoryCode = "core-factory"

const coreFactoryABI = `[
	{"type":"function","name":"create","inputs":[
		{"name":"salt","type":"bytes32"},
		{"name":"name","type":"string"},
		{"name":"roles","type":"string[]"},
		{"name":"roleAdmins","type":"string[]"},
		{"name":"members","type":"address[][]"},
		{"name":"daoOps","type":"bytes4[]"},
		{"name":"daoActionRoles","type":"string[][]"}],
	 "outputs":[{"name":"core","type":"address"},{"name":"registry","type":"address"}]},
	{"type":"function","name":"predict","stateMutability":"view","inputs":[{"name":"deployer","type":"address"},{"name":"salt","type":"bytes32"}],
	 "outputs":[{"name":"core","type":"address"},{"name":"registry","type":"address"}]}
]`

// CoreFactoryABI is the core factory's callable surface.
var CoreFactoryABI = vm.MustABI(coreFactoryABI)

// Founding is the founding configuration of an organization. Roles,
// Admins and Members are parallel; so are DAOOps and DAOActionRoles, whose
// actions all target the new core executor.
type Founding struct {
	Name           string
	Roles          []string
	Admins         []string
	Members        [][]common.Address
	DAOOps         [][4]byte
	DAOActionRoles [][]string
}

// CoreFactory deploys a core executor together with its capability
// registry.
type CoreFactory struct{}

// Code implements vm.Contract.
func (CoreFactory) Code() string { return CoreFactoryCode }

// ABI implements vm.Contract.
func (CoreFactory) ABI() *abi.ABI { return CoreFactoryABI }

// Call implements vm.Contract.
func (c CoreFactory) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "create":
		fd := Founding{
			Name:           args[1].(string),
			Roles:          args[2].([]string),
			Admins:         args[3].([]string),
			Members:        args[4].([][]common.Address),
			DAOOps:         args[5].([][4]byte),
			DAOActionRoles: args[6].([][]string),
		}
		coreAddr, registry, err := createDAO(f, args[0].([32]byte), fd)
		if err != nil {
			return nil, err
		}
		return []any{coreAddr, registry}, nil
	case "predict":
		coreAddr, registry := PredictDAO(f.Predictor(), args[0].(common.Address), args[1].([32]byte))
		return []any{coreAddr, registry}, nil
	}
	return nil, vm.ErrUnknownCall(c.Code(), m)
}

func createDAO(f *vm.Frame, salt [32]byte, fd Founding) (common.Address, common.Address, error) {
	if len(fd.DAOOps) != len(fd.DAOActionRoles) {
		return common.Address{}, common.Address{}, vm.Errorf(vm.KindArityMismatch,
			"%d dao ops, %d action role lists", len(fd.DAOOps), len(fd.DAOActionRoles))
	}
	coreDep := vm.Deployment{Code: core.Code, Deployer: f.Origin(), Salt: salt}
	registryDep := vm.Deployment{Code: access.Code, Deployer: f.Origin(), Salt: salt}
	coreAddr := f.Predict(coreDep)
	registry := f.Predict(registryDep)

	targets := make([]common.Address, len(fd.DAOOps))
	for i := range targets {
		targets[i] = coreAddr
	}
	init, err := packInit(access.ABI, coreAddr, fd.Roles, fd.Admins, fd.Members, targets, fd.DAOOps, fd.DAOActionRoles)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	registryDep.Init = init
	if _, err := f.Create(registryDep); err != nil {
		return common.Address{}, common.Address{}, err
	}

	init, err = packInit(core.ABI, registry, fd.Name)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	coreDep.Init = init
	if _, err := f.Create(coreDep); err != nil {
		return common.Address{}, common.Address{}, err
	}

	f.Emit("DAOCreated", vm.Fields("core", coreAddr, "registry", registry, "sender", f.Caller, "creator", f.Origin()))
	return coreAddr, registry, nil
}

// PredictDAO returns the core executor and registry addresses the core
// factory assigns to deployer and salt. deployer is the submitting
// account, also when the factory is reached through the orchestrator.
func PredictDAO(p addressing.Predictor, deployer common.Address, salt [32]byte) (coreAddr, registry common.Address) {
	coreAddr = predict(p, CoreFactoryAddress, deployer, salt, core.Code, nil)
	registry = predict(p, CoreFactoryAddress, deployer, salt, access.Code, nil)
	return coreAddr, registry
}

// CreateCalldata encodes a call to the core factory's create.
func CreateCalldata(salt [32]byte, fd Founding) ([]byte, error) {
	return CoreFactoryABI.Pack("create", salt, fd.Name, fd.Roles, fd.Admins, fd.Members, fd.DAOOps, fd.DAOActionRoles)
}
