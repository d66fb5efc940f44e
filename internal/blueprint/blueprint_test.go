package blueprint

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Acme(t *testing.T) {
	bp, err := LoadFile(filepath.Join("testdata", "acme.cue"))
	require.NoError(t, err)

	assert.Equal(t, "Acme Collective", bp.Name)
	assert.Equal(t, "acme", bp.Salt)
	require.Len(t, bp.Roles, 4)
	assert.Equal(t, "EXECUTE", bp.Roles[0].Name, "roles are sorted by name")
	assert.Equal(t, "DAO_ROLE", bp.Roles[0].Admin, "admin defaults to DAO_ROLE")
	assert.Equal(t, []string{"${sender}"}, bp.Roles[0].Members)
	assert.Empty(t, bp.Roles[1].Members)

	require.Len(t, bp.Actions, 2)
	require.Len(t, bp.Steps, 7)
	assert.Equal(t, KindDeploy, bp.Steps[0].Kind)
	assert.Equal(t, "vault", bp.Steps[0].Name)
	assert.Equal(t, "core", bp.Steps[3].Via)
	assert.Equal(t, KindRenounce, bp.Steps[6].Kind)
	assert.True(t, bp.Steps[6].Pos.IsValid())
}

func TestParse_SchemaErrorsCarryPositions(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing salt", `name: "x"
roles: {}`},
		{"unknown field", `name: "x"
salt: "s"
roles: {}
colour: "red"`},
		{"bad step kind", `name: "x"
salt: "s"
roles: {}
steps: [{kind: "selfdestruct"}]`},
		{"bad member", `name: "x"
salt: "s"
roles: A: members: ["alice"]`},
		{"negative value", `name: "x"
salt: "s"
roles: {}
steps: [{kind: "renounce", role: "A", value: -1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.cue")
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, "cue", ce.Field)
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte(`name: "x`), "broken.cue")
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, "broken.cue", ce.Pos.Filename())
}

func TestValidate(t *testing.T) {
	base := func() *Blueprint {
		return &Blueprint{
			Name: "x", Salt: "s",
			Roles:   []Role{{Name: "EXECUTE", Admin: "DAO_ROLE"}},
			Actions: []Action{{Op: "execute(address[],uint256[],bytes[])", Roles: []string{"EXECUTE"}}},
		}
	}
	require.NoError(t, Validate(base()))

	tests := []struct {
		name   string
		mutate func(*Blueprint)
		want   string
	}{
		{"redeclared DAO_ROLE", func(b *Blueprint) { b.Roles = append(b.Roles, Role{Name: "DAO_ROLE", Admin: "DAO_ROLE"}) }, "cannot be redeclared"},
		{"unknown admin", func(b *Blueprint) { b.Roles[0].Admin = "NOBODY" }, `unknown role "NOBODY"`},
		{"bad op", func(b *Blueprint) { b.Actions[0].Op = "execute" }, "not a signature"},
		{"unknown action role", func(b *Blueprint) { b.Actions[0].Roles = []string{"GHOST"} }, `unknown role "GHOST"`},
		{"reserved name", func(b *Blueprint) {
			b.Steps = []Step{{Kind: KindDeploy, Name: "core", Factory: "treasury", Salt: "a"}}
		}, "reserved"},
		{"duplicate name", func(b *Blueprint) {
			b.Steps = []Step{
				{Kind: KindDeploy, Name: "v", Factory: "treasury", Salt: "a"},
				{Kind: KindDeploy, Name: "v", Factory: "treasury", Salt: "b"},
			}
		}, "duplicate"},
		{"deploy without salt", func(b *Blueprint) { b.Steps = []Step{{Kind: KindDeploy, Factory: "treasury"}} }, "factory and salt"},
		{"call without method", func(b *Blueprint) { b.Steps = []Step{{Kind: KindCall, Target: "${core}"}} }, "target and method"},
		{"renounce unknown role", func(b *Blueprint) { b.Steps = []Step{{Kind: KindRenounce, Role: "GHOST"}} }, "unknown role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base()
			tt.mutate(b)
			err := Validate(b)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
