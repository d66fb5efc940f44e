package store

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/ir"
)

func TestReader_ActionIsAuthorized(t *testing.T) {
	s := createTestStore(t)
	update(t, s, func(ctx context.Context, tx *Tx) {
		for _, role := range []string{"EXECUTE_ROLE", "UPGRADE_ROLE"} {
			_, err := tx.CreateRole(ctx, registry, role, "DAO_ROLE")
			require.NoError(t, err)
		}
		_, err := tx.AddMember(ctx, registry, "EXECUTE_ROLE", alice)
		require.NoError(t, err)
		_, err = tx.AddMember(ctx, registry, "UPGRADE_ROLE", bob)
		require.NoError(t, err)
		_, err = tx.AddActionRole(ctx, registry, core, execOp, "EXECUTE_ROLE")
		require.NoError(t, err)
	})

	ctx := context.Background()
	r := s.Reader()

	ok, err := r.ActionIsAuthorized(ctx, registry, alice, core, execOp)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ActionIsAuthorized(ctx, registry, bob, core, execOp)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.ActionIsAuthorized(ctx, core, alice, core, execOp)
	require.NoError(t, err)
	assert.False(t, ok, "tables are scoped per registry")

	ok, err = r.IsRoleAuthorized(ctx, registry, "UPGRADE_ROLE", core, execOp)
	require.NoError(t, err)
	assert.False(t, ok)

	roles, err := r.ActionRoles(ctx, registry, core, execOp)
	require.NoError(t, err)
	assert.Equal(t, []string{"EXECUTE_ROLE"}, roles)

	edges, err := r.ActionEdges(ctx, registry)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "0xa04a0908", edges[0].Op)
}

// The authorization query must agree with the definition: some role held by
// the account is bound to the action. Checked over random graphs.
func TestReader_ActionIsAuthorizedMatchesDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	roles := []string{"R0", "R1", "R2", "R3", "R4"}
	accounts := make([]common.Address, 6)
	for i := range accounts {
		accounts[i] = common.BytesToAddress([]byte{0xee, byte(i + 1)})
	}
	targets := []common.Address{core, registry}
	ops := [][4]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}

	for round := 0; round < 10; round++ {
		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			s := createTestStore(t)
			held := map[common.Address]map[string]bool{}
			bound := map[string]map[string]bool{}

			update(t, s, func(ctx context.Context, tx *Tx) {
				for _, role := range roles {
					_, err := tx.CreateRole(ctx, registry, role, "DAO_ROLE")
					require.NoError(t, err)
				}
				for _, a := range accounts {
					held[a] = map[string]bool{}
					for _, role := range roles {
						if rng.Intn(4) == 0 {
							_, err := tx.AddMember(ctx, registry, role, a)
							require.NoError(t, err)
							held[a][role] = true
						}
					}
				}
				for _, tg := range targets {
					for _, op := range ops {
						key := AddrKey(tg) + OpKey(op)
						bound[key] = map[string]bool{}
						for _, role := range roles {
							if rng.Intn(3) == 0 {
								_, err := tx.AddActionRole(ctx, registry, tg, op, role)
								require.NoError(t, err)
								bound[key][role] = true
							}
						}
					}
				}
			})

			ctx := context.Background()
			for _, a := range accounts {
				for _, tg := range targets {
					for _, op := range ops {
						want := false
						for role := range held[a] {
							if bound[AddrKey(tg)+OpKey(op)][role] {
								want = true
							}
						}
						got, err := s.Reader().ActionIsAuthorized(ctx, registry, a, tg, op)
						require.NoError(t, err)
						assert.Equal(t, want, got, "account %s target %s op %x", a, tg, op)
					}
				}
			}
		})
	}
}

func TestReader_RolesOfSorted(t *testing.T) {
	s := createTestStore(t)
	update(t, s, func(ctx context.Context, tx *Tx) {
		for _, role := range []string{"WITHDRAWER_ROLE", "EXECUTE_ROLE", "GOVERNOR_ROLE"} {
			_, err := tx.CreateRole(ctx, registry, role, "DAO_ROLE")
			require.NoError(t, err)
			_, err = tx.AddMember(ctx, registry, role, alice)
			require.NoError(t, err)
		}
	})

	roles, err := s.Reader().RolesOf(context.Background(), registry, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"EXECUTE_ROLE", "GOVERNOR_ROLE", "WITHDRAWER_ROLE"}, roles)

	all, err := s.Reader().Roles(context.Background(), registry)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReader_TransactionLogAndRecords(t *testing.T) {
	s := createTestStore(t)
	txID := ir.MustTransactionID("flow", AddrKey(alice), AddrKey(core), "0", "0x", 1)
	fields := ir.Object{"role": ir.String("EXECUTE_ROLE"), "account": ir.String(AddrKey(bob))}

	update(t, s, func(ctx context.Context, tx *Tx) {
		require.NoError(t, tx.WriteTransaction(ctx, ir.Transaction{
			ID: txID, FlowToken: "flow", Seq: 1, From: AddrKey(alice), To: AddrKey(core),
			Value: "0", Data: "0x", Status: ir.StatusApplied,
		}))
		for i, name := range []string{"RoleGranted", "RoleRevoked"} {
			rec := ir.Record{TxID: txID, Seq: 1, Index: i, Emitter: AddrKey(registry), Name: name, Fields: fields}
			rec.ID = ir.MustRecordID(txID, i, rec.Emitter, name, fields)
			require.NoError(t, tx.WriteRecord(ctx, rec))
			require.NoError(t, tx.WriteRecord(ctx, rec), "duplicate ignored")
		}
	})

	ctx := context.Background()
	r := s.Reader()

	got, ok, err := r.Transaction(ctx, txID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.StatusApplied, got.Status)

	_, ok, err = r.Transaction(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := r.Records(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "RoleGranted", all[0].Name)
	assert.Equal(t, "EXECUTE_ROLE", all[0].Fields.Str("role"))

	revoked, err := r.Records(ctx, RecordFilter{Emitter: registry, Name: "RoleRevoked"})
	require.NoError(t, err)
	assert.Len(t, revoked, 1)

	seq, err := r.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	txs, err := r.Transactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestReader_RecordRequiresTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.WriteRecord(ctx, ir.Record{ID: "r", TxID: "missing", Emitter: "0x", Name: "X"})
	assert.Error(t, err)
}
