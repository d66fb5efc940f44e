package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Blueprint is the CUE blueprint to deploy, relative to the scenario
	// file.
	Blueprint string `yaml:"blueprint"`

	// Sender submits createDAOAndExecute. Defaults to alice.
	Sender string `yaml:"sender,omitempty"`

	// Value is sent with createDAOAndExecute.
	Value any `yaml:"value,omitempty"`

	// Alloc overrides the genesis balances. Keys are account names or
	// addresses, values decimal amounts.
	Alloc map[string]string `yaml:"alloc,omitempty"`

	// Expect checks the deployment. Defaults to status applied.
	Expect *Expect `yaml:"expect,omitempty"`

	// Calls run after the deployment, in order.
	Calls []Call `yaml:"calls,omitempty"`

	// Assertions check committed state after every call.
	Assertions []Assertion `yaml:"assertions"`

	// dir resolves Blueprint.
	dir string
}

// Call is a transaction applied after the deployment.
type Call struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Contract string `yaml:"contract,omitempty"`
	Method   string `yaml:"method,omitempty"`
	Args     []any  `yaml:"args,omitempty"`
	Value    any    `yaml:"value,omitempty"`
	Expect   *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a transaction.
type Expect struct {
	// Status is applied or reverted.
	Status string `yaml:"status"`
	// Error is the expected error kind of a revert, e.g. Unauthorized.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks committed state.
type Assertion struct {
	Type     string `yaml:"type"`
	Registry string `yaml:"registry,omitempty"`
	Role     string `yaml:"role,omitempty"`
	Account  string `yaml:"account,omitempty"`
	Target   string `yaml:"target,omitempty"`
	Op       string `yaml:"op,omitempty"`
	Address  string `yaml:"address,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Emitter  string `yaml:"emitter,omitempty"`
	Count    *int   `yaml:"count,omitempty"`
	Expect   any    `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertHasRole          = "has_role"
	AssertRoleAuthorized   = "role_authorized"
	AssertActionAuthorized = "action_authorized"
	AssertComponent        = "component"
	AssertBalance          = "balance"
	AssertRecord           = "record"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	sc.dir = filepath.Dir(path)

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// BlueprintPath returns the blueprint path resolved against the scenario
// file's directory.
func (s *Scenario) BlueprintPath() string {
	if filepath.IsAbs(s.Blueprint) || s.dir == "" {
		return s.Blueprint
	}
	return filepath.Join(s.dir, s.Blueprint)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Blueprint == "" {
		return fmt.Errorf("blueprint is required")
	}
	if s.Expect != nil {
		if err := validateExpect(s.Expect); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
	}
	for i, c := range s.Calls {
		if c.From == "" || c.To == "" {
			return fmt.Errorf("calls[%d]: from and to are required", i)
		}
		if c.Method == "" && len(c.Args) > 0 {
			return fmt.Errorf("calls[%d]: args need a method", i)
		}
		if c.Expect != nil {
			if err := validateExpect(c.Expect); err != nil {
				return fmt.Errorf("calls[%d].expect: %w", i, err)
			}
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(e *Expect) error {
	switch e.Status {
	case "applied":
		if e.Error != "" {
			return fmt.Errorf("an applied transaction has no error")
		}
	case "reverted":
	default:
		return fmt.Errorf("status must be applied or reverted, got %q", e.Status)
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	need := func(ok bool, what string) error {
		if !ok {
			return fmt.Errorf("assertions[%d]: %s is required for %s", index, what, a.Type)
		}
		return nil
	}
	switch a.Type {
	case AssertHasRole:
		if err := need(a.Role != "", "role"); err != nil {
			return err
		}
		return need(a.Account != "", "account")
	case AssertRoleAuthorized:
		if err := need(a.Role != "", "role"); err != nil {
			return err
		}
		return need(a.Target != "" && a.Op != "", "target and op")
	case AssertActionAuthorized:
		if err := need(a.Account != "", "account"); err != nil {
			return err
		}
		return need(a.Target != "" && a.Op != "", "target and op")
	case AssertComponent:
		return need(a.Address != "", "address")
	case AssertBalance:
		if err := need(a.Account != "", "account"); err != nil {
			return err
		}
		return need(a.Expect != nil, "expect")
	case AssertRecord:
		if err := need(a.Name != "", "name"); err != nil {
			return err
		}
		if err := need(a.Count != nil, "count"); err != nil {
			return err
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record", index)
		}
		return nil
	}
	return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
}
