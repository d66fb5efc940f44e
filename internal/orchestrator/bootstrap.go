package orchestrator

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/core"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/vm"
)

type phase int

const (
	phaseInit phase = iota
	phaseAcquired
	phaseBatched
	phaseReleased
	phaseFinalized
)

func (p phase) String() string {
	switch p {
	case phaseInit:
		return "init"
	case phaseAcquired:
		return "acquired"
	case phaseBatched:
		return "batched"
	case phaseReleased:
		return "released"
	case phaseFinalized:
		return "finalized"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// bootstrap walks acquire, batch, release and finalize strictly in that
// order. Each phase refuses to run out of turn.
type bootstrap struct {
	f     *vm.Frame
	req   Request
	phase phase

	core     common.Address
	registry common.Address
}

func newBootstrap(f *vm.Frame, req Request) *bootstrap {
	return &bootstrap{f: f, req: req}
}

func (b *bootstrap) advance(from, to phase) error {
	if b.phase != from {
		return vm.Errorf(vm.KindInternal, "bootstrap: cannot enter %s from %s", to, b.phase)
	}
	b.phase = to
	return nil
}

func (b *bootstrap) run() error {
	start, err := b.startingBalance()
	if err != nil {
		return err
	}
	if err := b.acquire(); err != nil {
		return err
	}
	if err := b.batch(); err != nil {
		return err
	}
	if err := b.release(); err != nil {
		return err
	}
	if err := b.finalize(); err != nil {
		return err
	}
	if err := b.refund(start); err != nil {
		return err
	}
	b.f.Emit("DAOCreated", vm.Fields("core", b.core, "registry", b.registry, "caller", b.f.Caller))
	return nil
}

// acquire deploys the organization with the orchestrator added to every
// founding role that may execute through the core.
func (b *bootstrap) acquire() error {
	if err := b.advance(phaseInit, phaseAcquired); err != nil {
		return err
	}
	fd := b.req.Founding
	fd.Members = withTemporaryMember(fd, b.f.Self)

	data, err := factory.CreateCalldata(b.req.Salt, fd)
	if err != nil {
		return vm.Wrap(vm.KindInvalidInput, err, "encode founding parameters")
	}
	out, err := b.f.Call(b.req.CoreFactory, nil, data)
	if err != nil {
		return err
	}
	res, err := factory.CoreFactoryABI.Unpack("create", out)
	if err != nil {
		return vm.Wrap(vm.KindInvalidInput, err, "decode core factory result")
	}
	b.core, b.registry = res[0].(common.Address), res[1].(common.Address)
	b.f.Logger().Debug("bootstrap acquired", "core", b.core.Hex(), "registry", b.registry.Hex())
	return nil
}

// withTemporaryMember returns fd.Members with self appended to each role
// authorized for the core's execute. Malformed founding input is passed
// through untouched for the registry to reject.
func withTemporaryMember(fd factory.Founding, self common.Address) [][]common.Address {
	if len(fd.Members) != len(fd.Roles) || len(fd.DAOOps) != len(fd.DAOActionRoles) {
		return fd.Members
	}
	members := make([][]common.Address, len(fd.Members))
	for i := range fd.Members {
		members[i] = slices.Clone(fd.Members[i])
	}
	for i, op := range fd.DAOOps {
		if access.Fingerprint(op) != core.ExecuteOp {
			continue
		}
		for _, role := range fd.DAOActionRoles[i] {
			j := slices.Index(fd.Roles, role)
			if j < 0 || slices.Contains(members[j], self) {
				continue
			}
			members[j] = append(members[j], self)
		}
	}
	return members
}

func (b *bootstrap) batch() error {
	if err := b.advance(phaseAcquired, phaseBatched); err != nil {
		return err
	}
	for i, s := range b.req.Steps {
		value, err := vm.ToUint(s.Value)
		if err != nil {
			return vm.AtIndex(vm.KindStepFailed, i, err)
		}
		if _, err := b.f.Call(s.Target, value, s.Payload); err != nil {
			return vm.AtIndex(vm.KindStepFailed, i, err)
		}
	}
	return nil
}

// release renounces whatever the orchestrator still holds, including roles
// a batch step granted it.
func (b *bootstrap) release() error {
	if err := b.advance(phaseBatched, phaseReleased); err != nil {
		return err
	}
	held, err := access.RolesOf(b.f, b.registry, b.f.Self)
	if err != nil {
		return err
	}
	for _, role := range held {
		if err := access.Renounce(b.f, b.registry, role); err != nil {
			return err
		}
	}
	b.f.Emit("PrivilegeReleased", vm.Fields("registry", b.registry, "roles", held))
	return nil
}

func (b *bootstrap) finalize() error {
	if err := b.advance(phaseReleased, phaseFinalized); err != nil {
		return err
	}
	canExecute, err := access.ActionIsAuthorized(b.f, b.registry, b.f.Self, b.core, core.ExecuteOp)
	if err != nil {
		return err
	}
	held, err := access.RolesOf(b.f, b.registry, b.f.Self)
	if err != nil {
		return err
	}
	if canExecute || len(held) > 0 {
		return vm.Errorf(vm.KindPrivilegeLeak, "orchestrator still holds %v on %s", held, b.registry.Hex())
	}
	return nil
}

// startingBalance is the orchestrator's balance before the caller's value
// arrived.
func (b *bootstrap) startingBalance() (*uint256.Int, error) {
	bal, err := b.f.Balance(b.f.Self)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Sub(bal, b.f.Value), nil
}

// refund returns value the batch did not spend to the caller.
func (b *bootstrap) refund(start *uint256.Int) error {
	if b.phase != phaseFinalized {
		return vm.Errorf(vm.KindInternal, "bootstrap: refund before finalize")
	}
	bal, err := b.f.Balance(b.f.Self)
	if err != nil {
		return err
	}
	if !bal.Gt(start) {
		return nil
	}
	_, err = b.f.Call(b.f.Caller, new(uint256.Int).Sub(bal, start), nil)
	return err
}
