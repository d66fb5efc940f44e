package access

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/vm"
)

// Authorize asks registry whether the frame's caller may perform op on the
// frame's component, and fails with Unauthorized otherwise. The question
// is a real call into the registry component, so the answer reflects the
// registry's current tables inside the running transaction.
func Authorize(f *vm.Frame, registry common.Address, op Fingerprint) error {
	ok, err := ActionIsAuthorized(f, registry, f.Caller, f.Self, op)
	if err != nil {
		return err
	}
	if !ok {
		return vm.Errorf(vm.KindUnauthorized, "%s may not call %s on %s", f.Caller.Hex(), op, f.Self.Hex())
	}
	return nil
}

// ActionIsAuthorized calls registry.actionIsAuthorized from frame f.
func ActionIsAuthorized(f *vm.Frame, registry, account, target common.Address, op Fingerprint) (bool, error) {
	out, err := f.CallMethod(registry, ABI, "actionIsAuthorized", nil, account, target, [4]byte(op))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// RolesOf calls registry.rolesOf from frame f.
func RolesOf(f *vm.Frame, registry, account common.Address) ([]string, error) {
	out, err := f.CallMethod(registry, ABI, "rolesOf", nil, account)
	if err != nil {
		return nil, err
	}
	return out[0].([]string), nil
}

// ActionRoles calls registry.getActionRoles from frame f.
func ActionRoles(f *vm.Frame, registry, target common.Address, op Fingerprint) ([]string, error) {
	out, err := f.CallMethod(registry, ABI, "getActionRoles", nil, target, [4]byte(op))
	if err != nil {
		return nil, err
	}
	return out[0].([]string), nil
}

// Renounce makes the frame's component renounce role in registry.
func Renounce(f *vm.Frame, registry common.Address, role string) error {
	_, err := f.CallMethod(registry, ABI, "renounceRole", nil, role, f.Self)
	return err
}
