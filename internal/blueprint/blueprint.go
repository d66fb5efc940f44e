// Package blueprint compiles CUE descriptions of an organization into the
// founding parameters and ordered steps of one createDAOAndExecute call.
//
// A blueprint names its founding roles, binds core operations to them and
// lists the steps the orchestrator runs while it temporarily holds the
// execute capability:
//
//	name: "Acme"
//	salt: "acme"
//	roles: EXECUTE: members: ["${sender}"]
//	dao_actions: [{op: "execute(address[],uint256[],bytes[])", roles: ["EXECUTE"]}]
//	steps: [
//		{kind: "deploy", name: "vault", factory: "treasury", salt: "vault"},
//		{kind: "renounce", role: "EXECUTE"},
//	]
package blueprint

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// Blueprint is a parsed, schema-checked blueprint. References are still
// unresolved.
type Blueprint struct {
	Name    string
	Salt    string
	Roles   []Role
	Actions []Action
	Steps   []Step
}

// Role is a founding role.
type Role struct {
	Name    string
	Admin   string
	Members []string
}

// Action binds a core operation to roles.
type Action struct {
	Op    string
	Roles []string
	Pos   token.Pos
}

// Step is one orchestrator step before resolution.
type Step struct {
	Kind     string
	Name     string
	Factory  string
	Salt     string
	Params   map[string]any
	Target   string
	Contract string
	Method   string
	Args     []any
	Via      string
	Value    any
	Role     string
	Pos      token.Pos
}

// Step kinds.
const (
	KindDeploy   = "deploy"
	KindCall     = "call"
	KindRenounce = "renounce"
)

type rawBlueprint struct {
	Name       string             `json:"name"`
	Salt       string             `json:"salt"`
	Roles      map[string]rawRole `json:"roles"`
	DAOActions []rawAction        `json:"dao_actions"`
	Steps      []rawStep          `json:"steps"`
}

type rawRole struct {
	Admin   string   `json:"admin"`
	Members []string `json:"members"`
}

type rawAction struct {
	Op    string   `json:"op"`
	Roles []string `json:"roles"`
}

type rawStep struct {
	Kind     string         `json:"kind"`
	Name     string         `json:"name"`
	Factory  string         `json:"factory"`
	Salt     string         `json:"salt"`
	Params   map[string]any `json:"params"`
	Target   string         `json:"target"`
	Contract string         `json:"contract"`
	Method   string         `json:"method"`
	Args     []any          `json:"args"`
	Via      string         `json:"via"`
	Value    any            `json:"value"`
	Role     string         `json:"role"`
}

// CompileError is a blueprint error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile parses the blueprint at path.
func LoadFile(path string) (*Blueprint, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load blueprint: %w", err)
	}
	return Parse(src, path)
}

// Parse compiles src, unifies it with the blueprint schema and decodes it.
// filename only labels positions.
func Parse(src []byte, filename string) (*Blueprint, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("blueprint schema: %w", err)
	}

	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Blueprint")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var raw rawBlueprint
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}

	bp := &Blueprint{Name: raw.Name, Salt: raw.Salt}
	names := make([]string, 0, len(raw.Roles))
	for name := range raw.Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := raw.Roles[name]
		bp.Roles = append(bp.Roles, Role{Name: name, Admin: r.Admin, Members: r.Members})
	}

	actionPos := positions(v.LookupPath(cue.ParsePath("dao_actions")))
	for i, a := range raw.DAOActions {
		bp.Actions = append(bp.Actions, Action{Op: a.Op, Roles: a.Roles, Pos: at(actionPos, i)})
	}

	stepPos := positions(v.LookupPath(cue.ParsePath("steps")))
	for i, s := range raw.Steps {
		bp.Steps = append(bp.Steps, Step{
			Kind: s.Kind, Name: s.Name, Factory: s.Factory, Salt: s.Salt, Params: s.Params,
			Target: s.Target, Contract: s.Contract, Method: s.Method, Args: s.Args,
			Via: s.Via, Value: s.Value, Role: s.Role, Pos: at(stepPos, i),
		})
	}
	return bp, nil
}

func positions(list cue.Value) []token.Pos {
	iter, err := list.List()
	if err != nil {
		return nil
	}
	var out []token.Pos
	for iter.Next() {
		out = append(out, iter.Value().Pos())
	}
	return out
}

func at(ps []token.Pos, i int) token.Pos {
	if i < len(ps) {
		return ps[i]
	}
	return token.NoPos
}

// formatCUEError returns the first CUE error that has a position as a
// CompileError.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if ps := errors.Positions(first); len(ps) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: ps[0]}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
