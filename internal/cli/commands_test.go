package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/store"
)

const (
	alice = "0x0000000000000000000000000000000000a11ce0"
	bob   = "0x0000000000000000000000000000000000000b0b"
)

// execute runs the root command and returns what it wrote to stdout and
// stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// envelope decodes a JSON response, unmarshalling data into v.
func envelope(t *testing.T, out string, v any) Response {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *ResponseError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return Response{Status: raw.Status, Error: raw.Error}
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ledger.db")
}

func deployAcme(t *testing.T, db string) DeployResult {
	t.Helper()
	out, _, err := execute(t, "--db", db, "--format", "json", "deploy", "testdata/acme.cue", "--from", alice)
	require.NoError(t, err, out)
	var res DeployResult
	resp := envelope(t, out, &res)
	require.Equal(t, "ok", resp.Status)
	return res
}

func TestPredict_SingleDAO(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "predict", "--salt", "acme", "--sender", alice)
	require.NoError(t, err)

	var got map[string]string
	envelope(t, out, &got)

	salt, err := addressing.ParseSalt("acme")
	require.NoError(t, err)
	coreAddr, registry := factory.PredictDAO(addressing.New(1337), common.HexToAddress(alice), salt)
	assert.Equal(t, store.AddrKey(coreAddr), got["core"])
	assert.Equal(t, store.AddrKey(registry), got["registry"])

	out, _, err = execute(t, "--format", "json", "predict", "--salt", "acme", "--deployer", bob)
	require.NoError(t, err)
	var other map[string]string
	envelope(t, out, &other)
	assert.NotEqual(t, got["core"], other["core"])

	_, _, err = execute(t, "predict", "--salt", "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--deployer or --sender")
}

func TestPredict_TokenDistribution(t *testing.T) {
	predict := func(allocation string) string {
		out, _, err := execute(t, "--format", "json", "predict", "--salt", "token", "--kind", "token",
			"--name", "Acme", "--symbol", "ACME", "--holders", bob, "--allocations", allocation, "--sender", alice)
		require.NoError(t, err)
		var got map[string]string
		envelope(t, out, &got)
		return got["token"]
	}
	assert.NotEqual(t, predict("1"), predict("2"))

	_, _, err := execute(t, "predict", "--salt", "token", "--kind", "token", "--name", "Acme", "--symbol", "ACME",
		"--holders", bob, "--allocations=-1", "--sender", alice)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPredict_Kinds(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "predict", "--salt", "vault", "--kind", "treasury", "--sender", alice)
	require.NoError(t, err)
	var got map[string]string
	envelope(t, out, &got)
	assert.Contains(t, got, "treasury")

	_, _, err = execute(t, "predict", "--salt", "vault", "--kind", "oracle", "--sender", alice)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "predict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--salt is required")
}

func TestPredict_BlueprintMatchesDeploy(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "predict", "testdata/acme.cue", "--sender", alice)
	require.NoError(t, err)
	var predicted map[string]string
	envelope(t, out, &predicted)

	res := deployAcme(t, tempDB(t))
	assert.Equal(t, predicted, res.Predicted)
	assert.Contains(t, predicted, "vault")
}

func TestValidate(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/acme.cue", "testdata/broken.cue")
	require.NoError(t, err, "a failing step is a runtime outcome, not a blueprint error")
	assert.Contains(t, out, "2 blueprint(s) valid")

	out, _, err = execute(t, "--format", "json", "validate", "testdata/acme.cue", "testdata/invalid.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var res ValidationResult
	envelope(t, out, &res)
	assert.False(t, res.Valid)
	assert.Equal(t, 2, res.Files)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "unknown reference")
}

func TestDeploy_QueryAndTrace(t *testing.T) {
	db := tempDB(t)
	res := deployAcme(t, db)
	assert.Equal(t, "Acme", res.Blueprint)
	assert.Equal(t, "applied", res.Receipt.Status)
	registry := res.Predicted["registry"]
	vault := res.Predicted["vault"]

	query := func(args ...string) any {
		t.Helper()
		out, _, err := execute(t, append([]string{"--db", db, "--format", "json", "query"}, args...)...)
		require.NoError(t, err, out)
		var v any
		envelope(t, out, &v)
		return v
	}

	assert.Equal(t, true, query("has-role", registry, "EXECUTE", alice))
	assert.Equal(t, false, query("has-role", registry, "EXECUTE", "orchestrator"), "orchestrator renounced")
	assert.Equal(t, true, query("has-role", registry, "DAO_ROLE", res.Predicted["core"]))
	assert.Equal(t, true, query("role-authorized", registry, "WITHDRAW", vault, "withdrawEth(address[],uint256[])"))
	assert.Equal(t, true, query("action-authorized", registry, alice, vault, "withdrawEth(address[],uint256[])"))
	assert.Equal(t, false, query("action-authorized", registry, bob, vault, "withdrawEth(address[],uint256[])"))

	out, _, err := execute(t, "--db", db, "--format", "json", "trace", res.Receipt.TxID, "--name", "DAOCreated")
	require.NoError(t, err)
	var trace struct {
		Records []struct {
			Name string `json:"name"`
		} `json:"records"`
	}
	envelope(t, out, &trace)
	require.Len(t, trace.Records, 1)
	assert.Equal(t, "DAOCreated", trace.Records[0].Name)

	out, _, err = execute(t, "--db", db, "trace", "--emitter", "orchestrator")
	require.NoError(t, err)
	assert.Contains(t, out, "PrivilegeReleased")
}

func TestDeploy_FailedStepCreatesNothing(t *testing.T) {
	db := tempDB(t)
	out, _, err := execute(t, "--db", db, "--format", "json", "deploy", "testdata/broken.cue", "--from", alice)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "at step 1")

	resp := envelope(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "StepFailed", resp.Error.Kind)

	out, _, err = execute(t, "--db", db, "--format", "json", "query", "components", "--code", "core")
	require.NoError(t, err)
	var comps []any
	envelope(t, out, &comps)
	assert.Empty(t, comps)
}

func TestCall_ViewAndRevert(t *testing.T) {
	db := tempDB(t)
	res := deployAcme(t, db)
	registry := res.Predicted["registry"]

	out, _, err := execute(t, "--db", db, "call", registry, "hasRole", `["WITHDRAW","`+alice+`"]`, "--view")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, _, err = execute(t, "--db", db, "call", res.Predicted["core"], "upgradeTo", `["`+res.Predicted["vault"]+`"]`, "--from", bob)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [Unauthorized]")

	_, _, err = execute(t, "--db", db, "call", registry, "grantRole", `["X"]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from is required")
}

func TestReplay_ReproducesLedger(t *testing.T) {
	db := tempDB(t)
	res := deployAcme(t, db)
	_, _, err := execute(t, "--db", db, "call", res.Predicted["core"], "upgradeTo", `["`+res.Predicted["vault"]+`"]`, "--from", bob)
	require.Error(t, err)

	out, _, err := execute(t, "--db", db, "--format", "json", "replay")
	require.NoError(t, err, out)
	var report struct {
		Transactions int   `json:"transactions"`
		Divergences  []any `json:"divergences"`
	}
	envelope(t, out, &report)
	assert.Equal(t, 2, report.Transactions)
	assert.Empty(t, report.Divergences)
}

func TestTestCommand(t *testing.T) {
	golden := t.TempDir()
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")

	out, _, err := execute(t, "test", scenarios, "--golden", golden, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
	assert.FileExists(t, filepath.Join(golden, "vault_bootstrap.golden"))

	out, _, err = execute(t, "--format", "json", "test", scenarios, "--golden", golden, "--filter", "vault*")
	require.NoError(t, err, out)
	var res TestResult
	envelope(t, out, &res)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Passed)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "vault_bootstrap.golden"), []byte("{}"), 0o644))
	_, _, err = execute(t, "test", scenarios, "--golden", golden, "--filter", "vault*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestTestCommandErrors(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")

	_, _, err = execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")

	_, _, err = execute(t, "test", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios found")

	_, _, err = execute(t, "test", t.TempDir(), "--update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--update needs --golden")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, _, err = execute(t, "config", "init", path)
	require.Error(t, err, "existing file needs --force")
	_, _, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)

	out, _, err := execute(t, "-c", path, "--db", "other.db", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "other.db")
	assert.Contains(t, out, "1337")
}
