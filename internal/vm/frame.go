package vm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/store"
)

// execution is the state shared by every frame of one transaction.
type execution struct {
	ctx     context.Context
	host    *Host
	tx      *store.Tx
	env     Env
	origin  common.Address
	quota   *quota
	journal []Emitted
}

// Frame is one active call. Contracts read and write state, call other
// components, deploy components and emit change records through it.
type Frame struct {
	ex     *execution
	Caller common.Address
	Self   common.Address
	Value  *uint256.Int
	Depth  int
}

// Context returns the transaction context.
func (f *Frame) Context() context.Context { return f.ex.ctx }

// State returns the transaction's store handle.
func (f *Frame) State() *store.Tx { return f.ex.tx }

// Origin returns the external account that submitted the transaction.
func (f *Frame) Origin() common.Address { return f.ex.origin }

// Seq returns the transaction's sequence number.
func (f *Frame) Seq() int64 { return f.ex.env.Seq }

// Logger returns the host logger.
func (f *Frame) Logger() *slog.Logger { return f.ex.host.logger }

// Predictor returns the host's address predictor.
func (f *Frame) Predictor() addressing.Predictor { return f.ex.host.predictor }

// Emit appends a change record from this component. It is dropped if this
// frame or any enclosing frame fails.
func (f *Frame) Emit(name string, fields ir.Object) {
	f.ex.journal = append(f.ex.journal, Emitted{Emitter: f.Self, Name: name, Fields: fields})
}

// Call sends value and calldata from this component to target.
func (f *Frame) Call(target common.Address, value *uint256.Int, data []byte) ([]byte, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	return f.ex.call(f.Self, target, value, data, f.Depth+1, false)
}

// CallMethod packs method of a, calls target and unpacks the outputs.
func (f *Frame) CallMethod(target common.Address, a *abi.ABI, method string, value *uint256.Int, args ...any) ([]any, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, Wrap(KindInvalidInput, err, "pack %s", method)
	}
	out, err := f.Call(target, value, data)
	if err != nil {
		return nil, err
	}
	res, err := a.Unpack(method, out)
	if err != nil {
		return nil, Wrap(KindInvalidInput, err, "unpack %s", method)
	}
	return res, nil
}

// Deployment describes a component to create.
type Deployment struct {
	// Code is the registered code identity.
	Code string
	// Deployer namespaces Salt; usually the account that asked the factory.
	Deployer common.Address
	Salt     [32]byte
	// Args are the ABI-encoded constructor arguments hashed into the address.
	Args []byte
	// Init is the calldata of the component's initializer.
	Init []byte
}

// Predict returns the address Create would use for d from this frame.
func (f *Frame) Predict(d Deployment) common.Address {
	return f.ex.host.predictor.Predict(f.Self, d.Deployer, d.Salt,
		addressing.CodeHash(d.Code), addressing.ArgsHash(d.Args))
}

// Create deploys d at its predicted address with this component as the
// factory and runs its initializer. Either both succeed or neither leaves
// a trace: a component never exists uninitialized.
func (f *Frame) Create(d Deployment) (common.Address, error) {
	ex := f.ex
	if _, ok := ex.host.codes[d.Code]; !ok {
		return common.Address{}, Errorf(KindInvalidInput, "unknown code %q", d.Code)
	}
	addr := f.Predict(d)

	taken, err := ex.tx.HasCode(ex.ctx, addr)
	if err != nil {
		return common.Address{}, Internal(err)
	}
	if taken {
		return common.Address{}, Errorf(KindAddressCollision, "%s already holds a component", addr.Hex())
	}

	sp, err := ex.tx.Savepoint(ex.ctx)
	if err != nil {
		return common.Address{}, Internal(err)
	}
	mark := len(ex.journal)

	err = ex.deploy(f, addr, d)
	if err != nil {
		ex.journal = ex.journal[:mark]
		if rbErr := ex.tx.RollbackTo(ex.ctx, sp); rbErr != nil {
			return common.Address{}, Internal(errors.Join(err, rbErr))
		}
		return common.Address{}, err
	}
	if err := ex.tx.Release(ex.ctx, sp); err != nil {
		return common.Address{}, Internal(err)
	}
	return addr, nil
}

func (ex *execution) deploy(f *Frame, addr common.Address, d Deployment) error {
	err := ex.tx.InsertComponent(ex.ctx, ir.Component{
		Address:  store.AddrKey(addr),
		Code:     d.Code,
		CodeHash: addressing.CodeHash(d.Code).Hex(),
		ArgsHash: addressing.ArgsHash(d.Args).Hex(),
		Factory:  store.AddrKey(f.Self),
		Deployer: store.AddrKey(d.Deployer),
		Salt:     hexutil.Encode(d.Salt[:]),
		Seq:      ex.env.Seq,
	})
	if err != nil {
		return Internal(err)
	}
	if _, err := ex.call(f.Self, addr, new(uint256.Int), d.Init, f.Depth+1, true); err != nil {
		return Wrap(KindInitializationFailed, err, "%s at %s", d.Code, addr.Hex())
	}
	if err := ex.tx.MarkInitialized(ex.ctx, addr); err != nil {
		return Internal(err)
	}
	ex.host.logger.Debug("component created",
		"code", d.Code, "address", addr.Hex(), "factory", f.Self.Hex(), "seq", ex.env.Seq)
	return nil
}

// call runs one frame inside a savepoint.
func (ex *execution) call(caller, target common.Address, value *uint256.Int, data []byte, depth int, init bool) ([]byte, error) {
	if err := ex.quota.enter(depth); err != nil {
		return nil, err
	}
	sp, err := ex.tx.Savepoint(ex.ctx)
	if err != nil {
		return nil, Internal(err)
	}
	mark := len(ex.journal)

	out, err := ex.run(caller, target, value, data, depth, init)
	if err != nil {
		ex.journal = ex.journal[:mark]
		if rbErr := ex.tx.RollbackTo(ex.ctx, sp); rbErr != nil {
			return nil, Internal(errors.Join(err, rbErr))
		}
		return nil, err
	}
	if err := ex.tx.Release(ex.ctx, sp); err != nil {
		return nil, Internal(err)
	}
	return out, nil
}

func (ex *execution) run(caller, target common.Address, value *uint256.Int, data []byte, depth int, init bool) ([]byte, error) {
	if !value.IsZero() {
		if err := ex.transfer(caller, target, value); err != nil {
			return nil, err
		}
	}

	comp, exists, err := ex.tx.Component(ex.ctx, target)
	if err != nil {
		return nil, Internal(err)
	}
	if len(data) == 0 {
		// plain value transfer
		return nil, nil
	}
	if !exists {
		return nil, Errorf(KindNoCode, "no component at %s", target.Hex())
	}
	contract, ok := ex.host.codes[comp.Code]
	if !ok {
		return nil, Errorf(KindNoCode, "code %q not registered", comp.Code)
	}
	if len(data) < 4 {
		return nil, Errorf(KindUnknownMethod, "calldata shorter than a selector")
	}
	method, err := contract.ABI().MethodById(data[:4])
	if err != nil {
		return nil, Errorf(KindUnknownMethod, "%s has no method %s", comp.Code, hexutil.Encode(data[:4]))
	}

	switch {
	case method.Name == InitializerName && comp.Initialized:
		return nil, Errorf(KindAlreadyInitialized, "%s at %s", comp.Code, target.Hex())
	case method.Name == InitializerName && !init:
		return nil, Errorf(KindUnauthorized, "initializer of %s is only callable by its factory", comp.Code)
	case method.Name != InitializerName && !comp.Initialized:
		return nil, Errorf(KindNotInitialized, "%s at %s", comp.Code, target.Hex())
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, Wrap(KindInvalidInput, err, "decode %s arguments", method.Sig)
	}

	ex.host.logger.Debug("dispatch",
		"code", comp.Code, "method", method.Sig, "caller", caller.Hex(),
		"target", target.Hex(), "depth", depth)

	frame := &Frame{ex: ex, Caller: caller, Self: target, Value: value, Depth: depth}
	outs, err := contract.Call(frame, method, args)
	if err != nil {
		return nil, err
	}
	ret, err := method.Outputs.Pack(outs...)
	if err != nil {
		return nil, Wrap(KindInternal, err, "encode %s results", method.Sig)
	}
	return ret, nil
}

func (ex *execution) transfer(from, to common.Address, amount *uint256.Int) error {
	fromBal, err := ex.tx.Balance(ex.ctx, from)
	if err != nil {
		return Internal(err)
	}
	if fromBal.Lt(amount) {
		return Errorf(KindInsufficientBalance, "%s has %s, needs %s", from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal, err := ex.tx.Balance(ex.ctx, to)
	if err != nil {
		return Internal(err)
	}
	if err := ex.tx.SetBalance(ex.ctx, from, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return Internal(err)
	}
	if err := ex.tx.SetBalance(ex.ctx, to, new(uint256.Int).Add(toBal, amount)); err != nil {
		return Internal(err)
	}
	return nil
}
