package access

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// Code is the registry's code identity.
const Code = "registry"

// DAORole is the founding role. It administers itself and every role
// created without an explicit admin, and is held by the core executor.
const DAORole = "DAO_ROLE"

// Registry is the capability registry component.
type Registry struct{}

// Code implements vm.Contract.
func (Registry) Code() string { return Code }

// ABI implements vm.Contract.
func (Registry) ABI() *abi.ABI { return ABI }

// Call implements vm.Contract.
func (r Registry) Call(f *vm.Frame, m *abi.Method, args []any) ([]any, error) {
	t := tables{f: f}
	switch m.Name {
	case "initialize":
		return nil, t.initialize(args[0].(common.Address), args[1].([]string), args[2].([]string),
			args[3].([][]common.Address), args[4].([]common.Address), args[5].([][4]byte), args[6].([][]string))
	case "createRole":
		return nil, t.createRole(args[0].(string), args[1].(string))
	case "grantRole":
		return nil, t.grantRole(args[0].(string), args[1].(common.Address))
	case "grantRoles":
		return nil, t.grantRoles(args[0].([]string), args[1].([][]common.Address))
	case "revokeRole":
		return nil, t.revokeRole(args[0].(string), args[1].(common.Address))
	case "renounceRole":
		return nil, t.renounceRole(args[0].(string), args[1].(common.Address))
	case "addActionsRoles":
		return nil, t.addActionsRoles(args[0].([]common.Address), args[1].([][4]byte), args[2].([][]string))
	case "removeActionsRoles":
		return nil, t.removeActionsRoles(args[0].([]common.Address), args[1].([][4]byte), args[2].([][]string))
	case "hasRole":
		ok, err := f.State().HasRole(f.Context(), f.Self, args[0].(string), args[1].(common.Address))
		return []any{ok}, wrapRead(err)
	case "getRoleAdmin":
		admin, ok, err := f.State().RoleAdmin(f.Context(), f.Self, args[0].(string))
		if err != nil {
			return nil, vm.Internal(err)
		}
		if !ok {
			return nil, vm.Errorf(vm.KindRoleMissing, "%s", args[0].(string))
		}
		return []any{admin}, nil
	case "isRoleAuthorized":
		ok, err := f.State().IsRoleAuthorized(f.Context(), f.Self, args[0].(string), args[1].(common.Address), args[2].([4]byte))
		return []any{ok}, wrapRead(err)
	case "actionIsAuthorized":
		ok, err := f.State().ActionIsAuthorized(f.Context(), f.Self, args[0].(common.Address), args[1].(common.Address), args[2].([4]byte))
		return []any{ok}, wrapRead(err)
	case "getActionRoles":
		roles, err := f.State().ActionRoles(f.Context(), f.Self, args[0].(common.Address), args[1].([4]byte))
		return []any{roles}, wrapRead(err)
	case "rolesOf":
		roles, err := f.State().RolesOf(f.Context(), f.Self, args[0].(common.Address))
		return []any{roles}, wrapRead(err)
	case "dao":
		dao, err := f.GetAddress("dao")
		return []any{dao}, err
	}
	return nil, vm.ErrUnknownCall(r.Code(), m)
}

func wrapRead(err error) error {
	if err != nil {
		return vm.Internal(err)
	}
	return nil
}

// tables applies registry mutations for one frame. The registry's own
// address scopes every row it touches.
type tables struct {
	f *vm.Frame
}

func (t tables) state() *store.Tx { return t.f.State() }

func (t tables) initialize(dao common.Address, roles, admins []string, members [][]common.Address,
	targets []common.Address, ops [][4]byte, actionRoles [][]string) error {
	if len(roles) != len(admins) || len(roles) != len(members) {
		return vm.Errorf(vm.KindArityMismatch, "%d roles, %d admins, %d member lists", len(roles), len(admins), len(members))
	}
	if err := checkActionArity(targets, ops, actionRoles); err != nil {
		return err
	}
	if err := t.f.SetAddress("dao", dao); err != nil {
		return err
	}

	if err := t.create(DAORole, DAORole); err != nil {
		return err
	}
	if err := t.add(DAORole, dao); err != nil {
		return err
	}

	// Founding roles may name admins defined later in the list, so every
	// role is created before any admin reference is checked.
	for i, role := range roles {
		if err := t.create(role, admins[i]); err != nil {
			return err
		}
	}
	for i, role := range roles {
		if t.requireRole(admins[i]) != nil {
			return vm.Errorf(vm.KindRoleMissing, "admin %q of %q", admins[i], role)
		}
		for _, account := range members[i] {
			if err := t.add(role, account); err != nil {
				return err
			}
		}
	}
	return t.bind(targets, ops, actionRoles)
}

func (t tables) createRole(role, admin string) error {
	if err := t.requireAdmin(DAORole); err != nil {
		return err
	}
	if admin != role {
		if err := t.requireRole(admin); err != nil {
			return err
		}
	}
	return t.create(role, admin)
}

func (t tables) grantRole(role string, account common.Address) error {
	admin, exists, err := t.state().RoleAdmin(t.f.Context(), t.f.Self, role)
	if err != nil {
		return vm.Internal(err)
	}
	if !exists {
		// A role is created on first grant, administered by the founding role.
		if err := t.requireAdmin(DAORole); err != nil {
			return err
		}
		if err := t.create(role, DAORole); err != nil {
			return err
		}
		return t.add(role, account)
	}
	if err := t.requireAdmin(admin); err != nil {
		return err
	}
	return t.add(role, account)
}

func (t tables) grantRoles(roles []string, members [][]common.Address) error {
	if len(roles) != len(members) {
		return vm.Errorf(vm.KindArityMismatch, "%d roles, %d member lists", len(roles), len(members))
	}
	for i, role := range roles {
		for _, account := range members[i] {
			if err := t.grantRole(role, account); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t tables) revokeRole(role string, account common.Address) error {
	admin, exists, err := t.state().RoleAdmin(t.f.Context(), t.f.Self, role)
	if err != nil {
		return vm.Internal(err)
	}
	if !exists {
		return vm.Errorf(vm.KindRoleMissing, "%s", role)
	}
	if err := t.requireAdmin(admin); err != nil {
		return err
	}
	return t.remove(role, account)
}

func (t tables) renounceRole(role string, account common.Address) error {
	if account != t.f.Caller {
		return vm.Errorf(vm.KindUnauthorized, "%s can only renounce roles for itself", t.f.Caller.Hex())
	}
	return t.remove(role, account)
}

func (t tables) addActionsRoles(targets []common.Address, ops [][4]byte, roles [][]string) error {
	if err := t.requireAdmin(DAORole); err != nil {
		return err
	}
	if err := checkActionArity(targets, ops, roles); err != nil {
		return err
	}
	return t.bind(targets, ops, roles)
}

func (t tables) removeActionsRoles(targets []common.Address, ops [][4]byte, roles [][]string) error {
	if err := t.requireAdmin(DAORole); err != nil {
		return err
	}
	if err := checkActionArity(targets, ops, roles); err != nil {
		return err
	}
	ctx := t.f.Context()
	for i, target := range targets {
		for _, role := range roles[i] {
			removed, err := t.state().RemoveActionRole(ctx, t.f.Self, target, ops[i], role)
			if err != nil {
				return vm.Internal(err)
			}
			if removed {
				t.f.Emit("ActionRoleRemoved", vm.Fields("target", target, "op", ops[i], "role", role))
			}
		}
	}
	return nil
}

func (t tables) bind(targets []common.Address, ops [][4]byte, roles [][]string) error {
	ctx := t.f.Context()
	for i, target := range targets {
		for _, role := range roles[i] {
			if err := t.requireRole(role); err != nil {
				return err
			}
			added, err := t.state().AddActionRole(ctx, t.f.Self, target, ops[i], role)
			if err != nil {
				return vm.Internal(err)
			}
			if added {
				t.f.Emit("ActionRoleAdded", vm.Fields("target", target, "op", ops[i], "role", role))
			}
		}
	}
	return nil
}

func (t tables) create(role, admin string) error {
	if role == "" {
		return vm.Errorf(vm.KindInvalidInput, "empty role name")
	}
	created, err := t.state().CreateRole(t.f.Context(), t.f.Self, role, admin)
	if err != nil {
		return vm.Internal(err)
	}
	if !created {
		return vm.Errorf(vm.KindRoleExists, "%s", role)
	}
	t.f.Emit("RoleCreated", vm.Fields("role", role, "adminRole", admin))
	return nil
}

func (t tables) add(role string, account common.Address) error {
	added, err := t.state().AddMember(t.f.Context(), t.f.Self, role, account)
	if err != nil {
		return vm.Internal(err)
	}
	if added {
		t.f.Emit("RoleGranted", vm.Fields("role", role, "account", account, "sender", t.f.Caller))
	}
	return nil
}

func (t tables) remove(role string, account common.Address) error {
	removed, err := t.state().RemoveMember(t.f.Context(), t.f.Self, role, account)
	if err != nil {
		return vm.Internal(err)
	}
	if removed {
		t.f.Emit("RoleRevoked", vm.Fields("role", role, "account", account, "sender", t.f.Caller))
	}
	return nil
}

func (t tables) requireRole(role string) error {
	_, exists, err := t.state().RoleAdmin(t.f.Context(), t.f.Self, role)
	if err != nil {
		return vm.Internal(err)
	}
	if !exists {
		return vm.Errorf(vm.KindRoleMissing, "%s", role)
	}
	return nil
}

func (t tables) requireAdmin(admin string) error {
	ok, err := t.state().HasRole(t.f.Context(), t.f.Self, admin, t.f.Caller)
	if err != nil {
		return vm.Internal(err)
	}
	if !ok {
		return vm.Errorf(vm.KindNotAdmin, "%s lacks %s", t.f.Caller.Hex(), admin)
	}
	return nil
}

func checkActionArity(targets []common.Address, ops [][4]byte, roles [][]string) error {
	if len(targets) != len(ops) || len(targets) != len(roles) {
		return vm.Errorf(vm.KindArityMismatch, "%d targets, %d ops, %d role lists", len(targets), len(ops), len(roles))
	}
	return nil
}
