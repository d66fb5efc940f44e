package store

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/query"
)

// Every compiled listing has to be accepted by SQLite itself, not only
// match an expected string.
func TestCompiledQueries_RunAgainstSchema(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	selects := []query.Select{
		{From: "components", Where: query.Where("code", "core"), OrderBy: []string{"seq", "address"}},
		{From: "roles", Columns: []string{"role"}, Where: query.Where("registry", AddrKey(registry)), OrderBy: []string{"role"}},
		{From: "role_members", Columns: []string{"account"}, Where: query.Where("registry", AddrKey(registry), "role", "EXECUTE_ROLE"), OrderBy: []string{"account"}},
		{From: "action_roles", Columns: []string{"target", "op", "role"}, OrderBy: []string{"target", "op", "role"}},
		{From: "records", Where: query.Where("emitter", AddrKey(core)), OrderBy: []string{"seq", "log_index"}, Limit: 10},
		authorizedSelect(registry, alice, core, execOp),
	}
	for _, sel := range selects {
		sqlText, params, err := query.Compile(sel)
		require.NoError(t, err)
		rows, err := s.db.QueryContext(ctx, sqlText, params...)
		require.NoError(t, err, sqlText)
		require.NoError(t, rows.Close())
	}
}

func TestReader_ListingsAfterWrites(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		if err := tx.InsertComponent(ctx, ir.Component{Address: AddrKey(core), Code: "core", Factory: AddrKey(registry), Seq: 1, Initialized: true}); err != nil {
			return err
		}
		if _, err := tx.CreateRole(ctx, registry, "EXECUTE_ROLE", "DAO_ROLE"); err != nil {
			return err
		}
		for _, acct := range []common.Address{bob, alice} {
			if _, err := tx.AddMember(ctx, registry, "EXECUTE_ROLE", acct); err != nil {
				return err
			}
		}
		_, err := tx.AddActionRole(ctx, registry, core, execOp, "EXECUTE_ROLE")
		return err
	}))

	r := s.Reader()
	comps, err := r.Components(ctx)
	require.NoError(t, err)
	require.Len(t, comps, 1)

	comps, err = r.ComponentsWhere(ctx, "core", registry)
	require.NoError(t, err)
	assert.Len(t, comps, 1)
	comps, err = r.ComponentsWhere(ctx, "registry", common.Address{})
	require.NoError(t, err)
	assert.Empty(t, comps)

	members, err := r.Members(ctx, registry, "EXECUTE_ROLE")
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, bob}, members)

	roles, err := r.RolesOf(ctx, registry, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"EXECUTE_ROLE"}, roles)

	ok, err := r.ActionIsAuthorized(ctx, registry, bob, core, execOp)
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := r.Records(ctx, RecordFilter{Emitter: core})
	require.NoError(t, err)
	assert.Empty(t, recs)
}
