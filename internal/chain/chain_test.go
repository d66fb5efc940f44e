package chain_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/orchestrator"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/testutil"
	"github.com/roach88/daokit/internal/vm"
)

func TestApply_PersistsReceipt(t *testing.T) {
	l := testutil.NewLedger(t)
	ctx := context.Background()

	d := l.MustCreateDAO(testutil.Alice, "persist", testutil.StandardFounding(testutil.Alice))
	r := d.Receipt
	assert.Equal(t, ir.StatusApplied, r.Status)
	assert.Equal(t, int64(1), r.Seq)
	assert.Equal(t, "test-flow-1", r.FlowToken)
	assert.Positive(t, r.Steps)
	assert.False(t, r.Reverted())

	tr, ok, err := l.Reader().Transaction(ctx, r.TxID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.StatusApplied, tr.Status)
	assert.Equal(t, store.AddrKey(orchestrator.Address), tr.To)
	assert.Empty(t, tr.ErrorKind)

	recs, err := l.Reader().Records(ctx, store.RecordFilter{TxID: r.TxID})
	require.NoError(t, err)
	require.Len(t, recs, len(r.Records))
	for i, rec := range recs {
		assert.Equal(t, r.Records[i].ID, rec.ID)
		assert.Equal(t, i, rec.Index)
	}
}

func TestApply_RevertIsLoggedWithoutEffects(t *testing.T) {
	l := testutil.NewLedger(t)
	ctx := context.Background()
	d := l.MustCreateDAO(testutil.Alice, "revert", testutil.StandardFounding(testutil.Alice))

	r := l.Send(testutil.Bob, d.Registry, access.ABI, "grantRole", testutil.RoleGovern, testutil.Bob)
	require.ErrorIs(t, r.Err, vm.ErrNotAdmin)
	assert.True(t, r.Reverted())
	assert.Empty(t, r.Records)
	assert.Equal(t, int64(2), r.Seq)

	tr, ok, err := l.Reader().Transaction(ctx, r.TxID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.StatusReverted, tr.Status)
	assert.Equal(t, string(vm.KindNotAdmin), tr.ErrorKind)
	assert.NotEmpty(t, tr.Error)

	recs, err := l.Reader().Records(ctx, store.RecordFilter{TxID: r.TxID})
	require.NoError(t, err)
	assert.Empty(t, recs)

	held, err := l.Reader().HasRole(ctx, d.Registry, testutil.RoleGovern, testutil.Bob)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestApply_IdsAreReproducible(t *testing.T) {
	a := testutil.NewLedger(t)
	b := testutil.NewLedger(t)

	ra := a.MustCreateDAO(testutil.Alice, "same", testutil.StandardFounding(testutil.Alice)).Receipt
	rb := b.MustCreateDAO(testutil.Alice, "same", testutil.StandardFounding(testutil.Alice)).Receipt

	assert.Equal(t, ra.TxID, rb.TxID)
	require.Equal(t, len(ra.Records), len(rb.Records))
	for i := range ra.Records {
		assert.Equal(t, ra.Records[i].ID, rb.Records[i].ID)
	}
}

func TestApply_HooksSeeEveryReceipt(t *testing.T) {
	var mu sync.Mutex
	var statuses []string
	hook := func(msg vm.Message, r chain.Receipt) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, r.Status)
	}
	l := testutil.NewLedger(t, chain.WithHook(hook))

	l.MustCreateDAO(testutil.Alice, "hooked", testutil.StandardFounding(testutil.Alice))
	l.CreateDAO(testutil.Alice, "hooked", testutil.StandardFounding(testutil.Alice))

	assert.Equal(t, []string{ir.StatusApplied, ir.StatusReverted}, statuses)
}

func TestCall_DoesNotCommit(t *testing.T) {
	l := testutil.NewLedger(t)
	d := l.MustCreateDAO(testutil.Alice, "view", testutil.StandardFounding(testutil.Alice))
	before := l.Snapshot()

	data := vm.MustPack(access.ABI, "hasRole", testutil.RoleExecute, testutil.Alice)
	out, err := l.Call(context.Background(), testutil.Alice, d.Registry, data)
	require.NoError(t, err)
	vals, err := access.ABI.Unpack("hasRole", out)
	require.NoError(t, err)
	assert.Equal(t, true, vals[0])
	assert.Equal(t, before, l.Snapshot())
	assert.Equal(t, int64(1), l.Clock().Current())
}

func TestSubmit_RunAppliesInOrder(t *testing.T) {
	l := testutil.NewLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var seqs []int64
	for i := 0; i < 3; i++ {
		r, err := l.Submit(ctx, vm.Message{From: testutil.Alice, To: testutil.Bob, Value: uint256.NewInt(1)})
		require.NoError(t, err)
		require.NoError(t, r.Err)
		seqs = append(seqs, r.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)

	l.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err := l.Submit(ctx, vm.Message{From: testutil.Alice, To: testutil.Bob})
	assert.ErrorIs(t, err, chain.ErrStopped)
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	l := testutil.NewLedger(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func openChain(t *testing.T, path string, opts ...vm.Option) *chain.Chain {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	h, err := catalog.NewHost(testutil.ChainID, opts...)
	require.NoError(t, err)
	c, err := chain.New(context.Background(), s, h, chain.WithFlowGenerator(chain.NewSequenceGenerator("test-flow")))
	require.NoError(t, err)
	return c
}

func testGenesis() chain.Genesis {
	return catalog.Genesis(testutil.ChainID, map[common.Address]*uint256.Int{
		testutil.Alice: testutil.InitialBalance.Clone(),
		testutil.Bob:   testutil.InitialBalance.Clone(),
		testutil.Carol: testutil.InitialBalance.Clone(),
	})
}

func TestInitGenesis_Idempotent(t *testing.T) {
	c := openChain(t, filepath.Join(t.TempDir(), "g.db"))
	ctx := context.Background()

	applied, err := c.InitGenesis(ctx, testGenesis())
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = c.InitGenesis(ctx, testGenesis())
	require.NoError(t, err)
	assert.False(t, applied)

	comps, err := c.Store().Reader().Components(ctx)
	require.NoError(t, err)
	assert.Len(t, comps, len(catalog.Predeploys()))

	loaded, err := chain.LoadGenesis(ctx, c.Store().Reader())
	require.NoError(t, err)
	assert.Equal(t, uint64(testutil.ChainID), loaded.ChainID)
	assert.Equal(t, testutil.InitialBalance.Dec(), loaded.Alloc[testutil.Bob].Dec())
	assert.Len(t, loaded.Predeploys, len(catalog.Predeploys()))
}

func TestInitGenesis_Rejects(t *testing.T) {
	c := openChain(t, filepath.Join(t.TempDir(), "g.db"))
	ctx := context.Background()
	_, err := c.InitGenesis(ctx, testGenesis())
	require.NoError(t, err)

	other := testGenesis()
	other.Alloc[testutil.Alice] = uint256.NewInt(1)
	_, err = c.InitGenesis(ctx, other)
	assert.ErrorContains(t, err, "initialized with genesis")

	wrongChain := testGenesis()
	wrongChain.ChainID = 1
	_, err = c.InitGenesis(ctx, wrongChain)
	assert.ErrorContains(t, err, "chain id")

	unknown := openChain(t, filepath.Join(t.TempDir(), "u.db"))
	bad := testGenesis()
	bad.Predeploys = append(bad.Predeploys, chain.Predeploy{Address: common.Address{0xee}, Code: "nope"})
	_, err = unknown.InitGenesis(ctx, bad)
	assert.ErrorContains(t, err, "not registered")
}

func TestNew_ResumesClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.db")
	ctx := context.Background()

	c := openChain(t, path)
	_, err := c.InitGenesis(ctx, testGenesis())
	require.NoError(t, err)
	_, err = c.Apply(ctx, vm.Message{From: testutil.Alice, To: testutil.Bob, Value: uint256.NewInt(1)})
	require.NoError(t, err)

	again, err := chain.New(ctx, c.Store(), c.Host())
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Clock().Current())
}

// history writes a mixed log: a creation, a revert, a grant through the
// core and a plain transfer.
func history(t *testing.T, l *testutil.Ledger) {
	d := l.MustCreateDAO(testutil.Alice, "history", testutil.StandardFounding(testutil.Alice))
	l.CreateDAO(testutil.Bob, "history", testutil.StandardFounding(testutil.Alice))
	r := l.Execute(testutil.Alice, d.Core, d.Registry,
		vm.MustPack(access.ABI, "grantRole", testutil.RoleGovern, testutil.Carol))
	require.NoError(t, r.Err)
	l.SendValue(testutil.Carol, testutil.Bob, uint256.NewInt(5), nil)
}

func TestReplay_Reproduces(t *testing.T) {
	source := testutil.NewLedger(t)
	history(t, source)

	target := openChain(t, filepath.Join(t.TempDir(), "replay.db"))
	ctx := context.Background()
	_, err := target.InitGenesis(ctx, testGenesis())
	require.NoError(t, err)

	report, err := chain.Replay(ctx, source.Reader(), target)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Transactions)
	assert.True(t, report.OK(), "divergences: %+v", report.Divergences)
	assert.Equal(t, int64(4), target.Clock().Current())

	_, err = chain.Replay(ctx, source.Reader(), target)
	assert.ErrorContains(t, err, "already has")
}

func TestReplay_ReportsDivergence(t *testing.T) {
	source := testutil.NewLedger(t)
	history(t, source)

	// A tighter step quota makes the creation revert on replay.
	target := openChain(t, filepath.Join(t.TempDir(), "diverge.db"), vm.WithMaxSteps(3))
	ctx := context.Background()
	_, err := target.InitGenesis(ctx, testGenesis())
	require.NoError(t, err)

	report, err := chain.Replay(ctx, source.Reader(), target)
	require.NoError(t, err)
	require.False(t, report.OK())
	first := report.Divergences[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "status", first.Field)
	assert.Equal(t, ir.StatusApplied, first.Want)
	assert.Equal(t, ir.StatusReverted, first.Got)
}
