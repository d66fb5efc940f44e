package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/vault_bootstrap.yaml")
	require.NoError(t, err)

	assert.Equal(t, "vault_bootstrap", sc.Name)
	assert.Equal(t, "alice", sc.Sender)
	assert.Len(t, sc.Calls, 3)
	assert.Equal(t, "withdrawEth", sc.Calls[1].Method)
	assert.Equal(t, &Expect{Status: "reverted", Error: "Unauthorized"}, sc.Calls[1].Expect)
	assert.Equal(t, filepath.Join("testdata", "blueprints", "vault.cue"), sc.BlueprintPath())
	require.NotEmpty(t, sc.Assertions)
	assert.Equal(t, AssertHasRole, sc.Assertions[0].Type)
	assert.Equal(t, false, sc.Assertions[0].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asertions")
}

func TestLoadScenario_Rejects(t *testing.T) {
	const head = "name: s\ndescription: d\nblueprint: b.cue\n"
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no name", "description: d\nblueprint: b.cue\n", "name is required"},
		{"no description", "name: s\nblueprint: b.cue\n", "description is required"},
		{"no blueprint", "name: s\ndescription: d\n", "blueprint is required"},
		{"bad status", head + "expect: {status: done}\n", "status must be applied or reverted"},
		{"applied with error", head + "expect: {status: applied, error: Unauthorized}\n", "applied transaction has no error"},
		{"call without to", head + "calls: [{from: alice}]\n", "calls[0]: from and to are required"},
		{"args without method", head + "calls: [{from: alice, to: bob, args: [1]}]\n", "args need a method"},
		{"unknown assertion", head + "assertions: [{type: trace_contains}]\n", "unknown assertion type"},
		{"has_role without account", head + "assertions: [{type: has_role, role: R}]\n", "account is required"},
		{"role_authorized without op", head + "assertions: [{type: role_authorized, role: R, target: x}]\n", "target and op is required"},
		{"balance without expect", head + "assertions: [{type: balance, account: bob}]\n", "expect is required"},
		{"record without count", head + "assertions: [{type: record, name: X}]\n", "count is required"},
		{"negative count", head + "assertions: [{type: record, name: X, count: -1}]\n", "count must be non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
