package blueprint

import (
	"fmt"
	"math/big"
	"regexp"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/core"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/modules/governor"
	"github.com/roach88/daokit/internal/modules/token"
	"github.com/roach88/daokit/internal/modules/treasury"
	"github.com/roach88/daokit/internal/orchestrator"
)

// Reserved reference names.
const (
	RefCore         = "core"
	RefRegistry     = "registry"
	RefOrchestrator = "orchestrator"
	RefSender       = "sender"
)

var refPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Env is what compilation needs to know about the target ledger.
type Env struct {
	Predictor   addressing.Predictor
	Sender      common.Address
	CoreFactory common.Address
	// Accounts are extra names usable as ${name}.
	Accounts map[string]common.Address
}

// Plan is a compiled blueprint, ready to submit.
type Plan struct {
	Request orchestrator.Request
	// Labels describes each step for display.
	Labels []string
	// Predicted holds every address known before submission: core,
	// registry and each named deploy step.
	Predicted map[string]common.Address

	env  Env
	refs map[string]target
}

// Core returns the predicted core address.
func (p *Plan) Core() common.Address { return p.Predicted[RefCore] }

// Registry returns the predicted registry address.
func (p *Plan) Registry() common.Address { return p.Predicted[RefRegistry] }

// Calldata encodes the createDAOAndExecute call.
func (p *Plan) Calldata() ([]byte, error) {
	return orchestrator.Calldata(p.Request)
}

// target is a resolved address with the component kind behind it, if known.
type target struct {
	addr common.Address
	code string
}

type compiler struct {
	env  Env
	bp   *Blueprint
	refs map[string]target
}

// Compile resolves every reference in bp and encodes its steps. Deploy
// steps are predicted with env.Sender as deployer, so later steps and
// founding members can name them.
func Compile(bp *Blueprint, env Env) (*Plan, error) {
	if env.CoreFactory == (common.Address{}) {
		env.CoreFactory = factory.CoreFactoryAddress
	}
	if err := Validate(bp); err != nil {
		return nil, err
	}
	salt, err := addressing.ParseSalt(bp.Salt)
	if err != nil {
		return nil, &CompileError{Field: "salt", Message: err.Error()}
	}
	coreAddr, registry := factory.PredictDAO(env.Predictor, env.Sender, salt)

	c := &compiler{env: env, bp: bp, refs: map[string]target{
		RefCore:         {coreAddr, core.Code},
		RefRegistry:     {registry, access.Code},
		RefOrchestrator: {orchestrator.Address, orchestrator.Code},
		RefSender:       {env.Sender, ""},
	}}
	for name, addr := range env.Accounts {
		if _, taken := c.refs[name]; taken {
			return nil, &CompileError{Field: "accounts", Message: fmt.Sprintf("account name %q is reserved", name)}
		}
		c.refs[name] = target{addr: addr}
	}
	for i, s := range bp.Steps {
		if s.Kind != KindDeploy || s.Name == "" {
			continue
		}
		if _, taken := c.refs[s.Name]; taken {
			return nil, stepError(i, s, fmt.Errorf("step name %q shadows an account", s.Name))
		}
		addr, err := c.predictDeploy(s)
		if err != nil {
			return nil, stepError(i, s, err)
		}
		c.refs[s.Name] = target{addr, s.Factory}
	}

	fd, err := c.founding()
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Request: orchestrator.Request{
			CoreFactory: env.CoreFactory,
			Salt:        salt,
			Founding:    fd,
		},
		Predicted: map[string]common.Address{},
		env:       env,
		refs:      c.refs,
	}
	plan.Predicted[RefCore] = coreAddr
	plan.Predicted[RefRegistry] = registry
	for _, s := range bp.Steps {
		if s.Kind == KindDeploy && s.Name != "" {
			plan.Predicted[s.Name] = c.refs[s.Name].addr
		}
	}
	for i, s := range bp.Steps {
		step, label, err := c.step(s)
		if err != nil {
			return nil, stepError(i, s, err)
		}
		plan.Request.Steps = append(plan.Request.Steps, step)
		plan.Labels = append(plan.Labels, label)
	}
	return plan, nil
}

func stepError(i int, s Step, err error) error {
	if ce, ok := err.(*CompileError); ok {
		if !ce.Pos.IsValid() {
			ce.Pos = s.Pos
		}
		return ce
	}
	return &CompileError{Field: fmt.Sprintf("steps[%d]", i), Message: err.Error(), Pos: s.Pos}
}

func (c *compiler) founding() (factory.Founding, error) {
	fd := factory.Founding{Name: c.bp.Name}
	for _, r := range c.bp.Roles {
		members := make([]common.Address, 0, len(r.Members))
		for _, m := range r.Members {
			t, err := c.resolve(m)
			if err != nil {
				return fd, &CompileError{Field: "roles." + r.Name + ".members", Message: err.Error()}
			}
			members = append(members, t.addr)
		}
		fd.Roles = append(fd.Roles, r.Name)
		fd.Admins = append(fd.Admins, r.Admin)
		fd.Members = append(fd.Members, members)
	}
	for _, a := range c.bp.Actions {
		fp, err := access.ParseFingerprint(a.Op)
		if err != nil {
			return fd, &CompileError{Field: "dao_actions.op", Message: err.Error(), Pos: a.Pos}
		}
		fd.DAOOps = append(fd.DAOOps, [4]byte(fp))
		fd.DAOActionRoles = append(fd.DAOActionRoles, a.Roles)
	}
	return fd, nil
}

// resolve turns an address literal or ${name} into an address.
func (c *compiler) resolve(s string) (target, error) {
	if m := refPattern.FindStringSubmatch(s); m != nil {
		t, ok := c.refs[m[1]]
		if !ok {
			return target{}, fmt.Errorf("unknown reference ${%s}", m[1])
		}
		return t, nil
	}
	if !common.IsHexAddress(s) {
		return target{}, fmt.Errorf("%q is neither an address nor a reference", s)
	}
	return target{addr: common.HexToAddress(s)}, nil
}

func (c *compiler) salt(s Step) ([32]byte, error) {
	salt, err := addressing.ParseSalt(s.Salt)
	if err != nil {
		return salt, &CompileError{Field: "salt", Message: err.Error(), Pos: s.Pos}
	}
	return salt, nil
}

func (c *compiler) predictDeploy(s Step) (common.Address, error) {
	salt, err := c.salt(s)
	if err != nil {
		return common.Address{}, err
	}
	p, sender := c.env.Predictor, c.env.Sender
	switch s.Factory {
	case treasury.Code:
		return factory.PredictTreasury(p, sender, salt), nil
	case governor.Code:
		return factory.PredictGovernor(p, sender, salt), nil
	case token.Code:
		args, err := c.tokenParams(s)
		if err != nil {
			return common.Address{}, err
		}
		return factory.PredictToken(p, sender, salt, args[0].(string), args[1].(string),
			args[2].([]common.Address), args[3].([]*big.Int))
	}
	return common.Address{}, fmt.Errorf("unknown factory %q", s.Factory)
}

func (c *compiler) step(s Step) (orchestrator.Step, string, error) {
	value, err := toBig(s.Value)
	if err != nil {
		return orchestrator.Step{}, "", fmt.Errorf("value: %w", err)
	}
	switch s.Kind {
	case KindDeploy:
		st, err := c.deploy(s)
		st.Value = value
		return st, fmt.Sprintf("deploy %s %s", s.Factory, s.Salt), err
	case KindRenounce:
		payload, err := access.ABI.Pack("renounceRole", s.Role, orchestrator.Address)
		return orchestrator.Step{Target: c.refs[RefRegistry].addr, Value: value, Payload: payload},
			"renounce " + s.Role, err
	case KindCall:
		return c.call(s, value)
	}
	return orchestrator.Step{}, "", fmt.Errorf("unknown step kind %q", s.Kind)
}

func (c *compiler) deploy(s Step) (orchestrator.Step, error) {
	salt, err := c.salt(s)
	if err != nil {
		return orchestrator.Step{}, err
	}
	if _, ok := s.Params["salt"]; ok {
		return orchestrator.Step{}, fmt.Errorf("salt belongs on the step, not in params")
	}
	registry := c.refs[RefRegistry].addr
	switch s.Factory {
	case treasury.Code:
		payload, err := factory.TreasuryFactoryABI.Pack("create", registry, salt)
		return orchestrator.Step{Target: factory.TreasuryFactoryAddress, Payload: payload}, err
	case token.Code:
		args, err := c.tokenParams(s)
		if err != nil {
			return orchestrator.Step{}, err
		}
		payload, err := factory.TokenFactoryABI.Pack("create", args...)
		return orchestrator.Step{Target: factory.TokenFactoryAddress, Payload: payload}, err
	case governor.Code:
		args, err := c.params(factory.GovernorFactoryABI, "create", s.Params, map[string]any{
			"registry": "${registry}", "executor": "${core}", "delay": 0, "salt": s.Salt,
		})
		if err != nil {
			return orchestrator.Step{}, err
		}
		payload, err := factory.GovernorFactoryABI.Pack("create", args...)
		return orchestrator.Step{Target: factory.GovernorFactoryAddress, Payload: payload}, err
	}
	return orchestrator.Step{}, fmt.Errorf("unknown factory %q", s.Factory)
}

// tokenParams converts a token step's parameters into the factory's create
// inputs. Holders may name deploy steps declared earlier.
func (c *compiler) tokenParams(s Step) ([]any, error) {
	return c.params(factory.TokenFactoryABI, "create", s.Params, map[string]any{
		"holders": []any{}, "allocations": []any{}, "salt": s.Salt,
	})
}

// params converts named parameters into a's positional inputs of method,
// taking missing ones from defaults.
func (c *compiler) params(a *abi.ABI, method string, given, defaults map[string]any) ([]any, error) {
	m := a.Methods[method]
	out := make([]any, len(m.Inputs))
	for name := range given {
		if !slices.ContainsFunc(m.Inputs, func(in abi.Argument) bool { return in.Name == name }) {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
	}
	for i, in := range m.Inputs {
		v, ok := given[in.Name]
		if !ok {
			if v, ok = defaults[in.Name]; !ok {
				return nil, fmt.Errorf("missing parameter %q", in.Name)
			}
		}
		conv, err := c.convert(in.Type, v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", in.Name, err)
		}
		out[i] = conv
	}
	return out, nil
}

func (c *compiler) call(s Step, value *big.Int) (orchestrator.Step, string, error) {
	t, code, payload, err := c.encode(s.Target, s.Contract, s.Method, s.Args)
	if err != nil {
		return orchestrator.Step{}, "", err
	}
	label := fmt.Sprintf("call %s.%s", code, s.Method)
	if s.Via != "core" {
		return orchestrator.Step{Target: t.addr, Value: value, Payload: payload}, label, nil
	}
	wrapped, err := core.ExecuteCalldata([]common.Address{t.addr}, []*big.Int{value}, [][]byte{payload})
	if err != nil {
		return orchestrator.Step{}, "", err
	}
	return orchestrator.Step{Target: c.refs[RefCore].addr, Value: value, Payload: wrapped}, label + " via core", nil
}

// encode resolves ref and packs method with args against the ABI of the
// component behind it, or of contract when given.
func (c *compiler) encode(ref, contract, method string, args []any) (target, string, []byte, error) {
	t, err := c.resolve(ref)
	if err != nil {
		return target{}, "", nil, err
	}
	code := t.code
	if contract != "" {
		code = contract
	}
	if code == "" {
		return target{}, "", nil, fmt.Errorf("target %s has no known contract; set contract", ref)
	}
	payload, err := c.pack(code, method, args)
	if err != nil {
		return target{}, "", nil, err
	}
	return t, code, payload, nil
}

func (c *compiler) pack(code, method string, args []any) ([]byte, error) {
	kind, ok := catalog.ByCode()[code]
	if !ok {
		return nil, fmt.Errorf("unknown contract %q", code)
	}
	m, ok := kind.ABI().Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s has no method %q", code, method)
	}
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s.%s takes %d arguments, got %d", code, method, len(m.Inputs), len(args))
	}
	conv := make([]any, len(args))
	for i, in := range m.Inputs {
		var err error
		if conv[i], err = c.convert(in.Type, args[i]); err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, in.Name, err)
		}
	}
	return kind.ABI().Pack(method, conv...)
}

// EncodeCall packs method of the contract kind code without a plan.
// Address arguments are literals or ${name} for names in refs.
func EncodeCall(code, method string, args []any, refs map[string]common.Address) ([]byte, error) {
	c := &compiler{refs: make(map[string]target, len(refs))}
	for name, addr := range refs {
		c.refs[name] = target{addr: addr}
	}
	return c.pack(code, method, args)
}

// Resolve turns an address literal or any reference the plan knows into an
// address.
func (p *Plan) Resolve(ref string) (common.Address, error) {
	c := &compiler{env: p.env, refs: p.refs}
	t, err := c.resolve(ref)
	return t.addr, err
}

// Encode packs a call for use once the plan is deployed. ref and address
// arguments may use every reference of the plan.
func (p *Plan) Encode(ref, contract, method string, args []any) (common.Address, []byte, error) {
	c := &compiler{env: p.env, refs: p.refs}
	t, _, payload, err := c.encode(ref, contract, method, args)
	return t.addr, payload, err
}

// Amount converts a blueprint value to an integer.
func Amount(v any) (*big.Int, error) {
	return toBig(v)
}
