package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/ir"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := LoadScenario(path)
			require.NoError(t, err)

			res, err := Run(t.Context(), sc)
			require.NoError(t, err)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
		})
	}
}

func TestRun_VaultTrace(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/vault_bootstrap.yaml")
	require.NoError(t, err)

	res, err := Run(t.Context(), sc)
	require.NoError(t, err)
	require.Len(t, res.Trace, 4)

	deploy := res.Trace[0]
	assert.Equal(t, int64(1), deploy.Seq)
	assert.Equal(t, "deploy Vault Collective", deploy.Label)
	assert.Equal(t, ir.StatusApplied, deploy.Status)
	require.NotEmpty(t, deploy.Records)
	assert.Equal(t, "DAOCreated", deploy.Records[len(deploy.Records)-1].Name)
	names := make([]string, len(deploy.Records))
	for i, rec := range deploy.Records {
		names[i] = rec.Name
	}
	assert.Contains(t, names, "PrivilegeReleased")
	assert.Contains(t, names, "RoleRevoked")

	assert.Equal(t, "call 0 transfer", res.Trace[1].Label)
	assert.Empty(t, res.Trace[1].Records)

	denied := res.Trace[2]
	assert.Equal(t, ir.StatusReverted, denied.Status)
	assert.Equal(t, "Unauthorized", denied.ErrorKind)
	assert.Empty(t, denied.Records)

	assert.Equal(t, res.Predicted["vault"], res.Trace[3].To)
	for _, name := range []string{"core", "registry", "vault", "gov"} {
		assert.Contains(t, res.Predicted, name)
	}
}

func TestRun_FailedDeployIsAtomic(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/failed_step.yaml")
	require.NoError(t, err)

	res, err := Run(t.Context(), sc)
	require.NoError(t, err)
	require.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Equal(t, "StepFailed", res.Trace[0].ErrorKind)
	assert.Empty(t, res.Trace[0].Records)
}

func TestRun_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	bp, err := os.ReadFile("testdata/blueprints/vault.cue")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vault.cue"), bp, 0644))

	content := `
name: wrong
description: "every expectation is wrong"
blueprint: vault.cue
calls:
  - from: bob
    to: "${vault}"
    method: withdrawEth
    args: [["${bob}"], [1]]
assertions:
  - type: has_role
    role: EXECUTE
    account: "${orchestrator}"
  - type: balance
    account: carol
    expect: 7
  - type: component
    address: "${vault}"
    code: token
  - type: record
    name: DAOCreated
    count: 2
`
	path := filepath.Join(dir, "wrong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	res, err := Run(t.Context(), sc)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 5)
	assert.Contains(t, res.Errors[0], "status reverted, want applied")
	assert.Contains(t, res.Errors[1], "has_role")
	assert.Contains(t, res.Errors[2], "expected 7, got 1000000")
	assert.Contains(t, res.Errors[3], "expected token, got treasury")
	assert.Contains(t, res.Errors[4], "expected 2, got 1")
}

func TestRun_CompileErrorsAbort(t *testing.T) {
	path := writeScenario(t, "name: s\ndescription: d\nblueprint: missing.cue\n")
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = Run(t.Context(), sc)
	assert.Error(t, err)
}

func TestRun_Alloc(t *testing.T) {
	sc := &Scenario{
		Name:        "alloc",
		Description: "custom balances",
		Blueprint:   "testdata/blueprints/vault.cue",
		Alloc:       map[string]string{"alice": "50", "0x00000000000000000000000000000000000000d4": "9"},
		Assertions: []Assertion{
			{Type: AssertBalance, Account: "alice", Expect: 50},
			{Type: AssertBalance, Account: "bob", Expect: 0},
			{Type: AssertBalance, Account: "0x00000000000000000000000000000000000000d4", Expect: "9"},
		},
	}
	res, err := Run(t.Context(), sc)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestAccount(t *testing.T) {
	addr, err := account("", "alice")
	require.NoError(t, err)
	assert.Equal(t, Accounts["alice"], addr)

	addr, err = account("BOB", "")
	require.NoError(t, err)
	assert.Equal(t, Accounts["bob"], addr)

	_, err = account("mallory", "")
	assert.ErrorContains(t, err, "unknown account")
}
