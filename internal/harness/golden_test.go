package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Deterministic(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/vault_bootstrap.yaml")
	require.NoError(t, err)

	first, err := Run(t.Context(), sc)
	require.NoError(t, err)
	second, err := Run(t.Context(), sc)
	require.NoError(t, err)

	a, err := Snapshot(sc.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(sc.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"scenario_name":"vault_bootstrap"`)
}

func TestRunWithGolden_RoundTrip(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/failed_step.yaml")
	require.NoError(t, err)
	dir := t.TempDir()

	res, err := Run(t.Context(), sc)
	require.NoError(t, err)
	snap, err := Snapshot(sc.Name, res)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
	require.NoError(t, g.Update(t, sc.Name, snap))

	// A fresh run must match the fixture written by the first.
	_, err = RunWithGolden(t, sc, goldie.WithFixtureDir(dir))
	require.NoError(t, err)
}
