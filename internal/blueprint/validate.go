package blueprint

import (
	"fmt"
	"slices"

	"github.com/roach88/daokit/internal/access"
)

var reserved = []string{RefCore, RefRegistry, RefOrchestrator, RefSender}

// Validate checks what the schema cannot: per-kind required fields, unique
// step names and role references. It needs no ledger.
func Validate(bp *Blueprint) error {
	roles := map[string]bool{access.DAORole: true}
	for _, r := range bp.Roles {
		if r.Name == access.DAORole {
			return &CompileError{Field: "roles", Message: "DAO_ROLE is created by the registry and cannot be redeclared"}
		}
		roles[r.Name] = true
	}
	for _, r := range bp.Roles {
		if !roles[r.Admin] {
			return &CompileError{Field: "roles." + r.Name + ".admin", Message: fmt.Sprintf("unknown role %q", r.Admin)}
		}
	}
	for i, a := range bp.Actions {
		if _, err := access.ParseFingerprint(a.Op); err != nil {
			return &CompileError{Field: fmt.Sprintf("dao_actions[%d].op", i), Message: err.Error(), Pos: a.Pos}
		}
		for _, role := range a.Roles {
			if !roles[role] {
				return &CompileError{Field: fmt.Sprintf("dao_actions[%d].roles", i), Message: fmt.Sprintf("unknown role %q", role), Pos: a.Pos}
			}
		}
	}

	names := map[string]bool{}
	for i, s := range bp.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		fail := func(format string, args ...any) error {
			return &CompileError{Field: field, Message: fmt.Sprintf(format, args...), Pos: s.Pos}
		}
		if s.Name != "" {
			if slices.Contains(reserved, s.Name) {
				return fail("step name %q is reserved", s.Name)
			}
			if names[s.Name] {
				return fail("duplicate step name %q", s.Name)
			}
			names[s.Name] = true
		}
		switch s.Kind {
		case KindDeploy:
			if s.Factory == "" || s.Salt == "" {
				return fail("deploy needs factory and salt")
			}
		case KindCall:
			if s.Target == "" || s.Method == "" {
				return fail("call needs target and method")
			}
		case KindRenounce:
			if s.Role == "" {
				return fail("renounce needs role")
			}
			if !roles[s.Role] {
				return fail("unknown role %q", s.Role)
			}
		}
	}
	return nil
}
