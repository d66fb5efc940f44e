package harness

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/blueprint"
	"github.com/roach88/daokit/internal/store"
)

// AssertionError describes a failed assertion with enough context to
// debug it from the report alone.
type AssertionError struct {
	Type     string
	Expected any
	Actual   any
	Subject  string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s %s: expected %v, got %v", e.Type, e.Subject, e.Expected, e.Actual)
}

func (r *runner) check(a Assertion) error {
	reader := r.chain.Store().Reader()
	switch a.Type {
	case AssertHasRole:
		registry, account, err := r.resolve2(a.registry(), a.Account)
		if err != nil {
			return err
		}
		got, err := reader.HasRole(r.ctx, registry, a.Role, account)
		if err != nil {
			return err
		}
		return compareBool(a, got, fmt.Sprintf("%s %s", a.Role, a.Account))

	case AssertRoleAuthorized:
		registry, target, err := r.resolve2(a.registry(), a.Target)
		if err != nil {
			return err
		}
		op, err := access.ParseFingerprint(a.Op)
		if err != nil {
			return err
		}
		got, err := reader.IsRoleAuthorized(r.ctx, registry, a.Role, target, op)
		if err != nil {
			return err
		}
		return compareBool(a, got, fmt.Sprintf("%s on %s.%s", a.Role, a.Target, a.Op))

	case AssertActionAuthorized:
		registry, account, err := r.resolve2(a.registry(), a.Account)
		if err != nil {
			return err
		}
		target, err := r.plan.Resolve(refOf(a.Target))
		if err != nil {
			return err
		}
		op, err := access.ParseFingerprint(a.Op)
		if err != nil {
			return err
		}
		got, err := reader.ActionIsAuthorized(r.ctx, registry, account, target, op)
		if err != nil {
			return err
		}
		return compareBool(a, got, fmt.Sprintf("%s on %s.%s", a.Account, a.Target, a.Op))

	case AssertComponent:
		addr, err := r.plan.Resolve(a.Address)
		if err != nil {
			return err
		}
		comp, ok, err := reader.Component(r.ctx, addr)
		if err != nil {
			return err
		}
		if err := compareBool(a, ok, a.Address); err != nil || !ok {
			return err
		}
		if a.Code != "" && comp.Code != a.Code {
			return &AssertionError{Type: a.Type, Subject: a.Address + " code", Expected: a.Code, Actual: comp.Code}
		}
		return nil

	case AssertBalance:
		addr, err := r.plan.Resolve(refOf(a.Account))
		if err != nil {
			return err
		}
		want, err := blueprint.Amount(a.Expect)
		if err != nil {
			return err
		}
		got, err := reader.Balance(r.ctx, addr)
		if err != nil {
			return err
		}
		if got.ToBig().Cmp(want) != 0 {
			return &AssertionError{Type: a.Type, Subject: a.Account, Expected: want.String(), Actual: got.Dec()}
		}
		return nil

	case AssertRecord:
		filter := store.RecordFilter{Name: a.Name}
		if a.Emitter != "" {
			emitter, err := r.plan.Resolve(a.Emitter)
			if err != nil {
				return err
			}
			filter.Emitter = emitter
		}
		recs, err := reader.Records(r.ctx, filter)
		if err != nil {
			return err
		}
		if len(recs) != *a.Count {
			return &AssertionError{Type: a.Type, Subject: a.Name, Expected: *a.Count, Actual: len(recs)}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (a Assertion) registry() string {
	if a.Registry == "" {
		return "${" + blueprint.RefRegistry + "}"
	}
	return a.Registry
}

func (r *runner) resolve2(registry, account string) (common.Address, common.Address, error) {
	reg, err := r.plan.Resolve(registry)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	acc, err := r.plan.Resolve(refOf(account))
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return reg, acc, nil
}

// compareBool checks a boolean outcome. A missing expect means true.
func compareBool(a Assertion, got bool, subject string) error {
	want := true
	if a.Expect != nil {
		b, ok := a.Expect.(bool)
		if !ok {
			return fmt.Errorf("expect must be a boolean, got %T", a.Expect)
		}
		want = b
	}
	if got != want {
		return &AssertionError{Type: a.Type, Subject: subject, Expected: want, Actual: got}
	}
	return nil
}
