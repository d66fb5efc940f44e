// Package testutil builds throwaway ledgers for tests: a temp-dir store, a
// host with every component kind, the standard genesis and reproducible
// flow tokens.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/catalog"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/vm"
)

// ChainID is the chain id test ledgers run with.
const ChainID = 1337

// Well-known external accounts. Each starts with InitialBalance.
var (
	Alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	Bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	Carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

// InitialBalance is every well-known account's genesis balance.
var InitialBalance = uint256.NewInt(1_000_000)

// Ledger is a chain over a temp-dir database.
type Ledger struct {
	*chain.Chain
	t *testing.T
}

// NewLedger returns a ledger with genesis applied.
func NewLedger(t *testing.T, opts ...chain.Option) *Ledger {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h, err := catalog.NewHost(ChainID)
	require.NoError(t, err)

	opts = append([]chain.Option{chain.WithFlowGenerator(chain.NewSequenceGenerator("test-flow"))}, opts...)
	c, err := chain.New(context.Background(), s, h, opts...)
	require.NoError(t, err)

	alloc := map[common.Address]*uint256.Int{
		Alice: InitialBalance.Clone(),
		Bob:   InitialBalance.Clone(),
		Carol: InitialBalance.Clone(),
	}
	_, err = c.InitGenesis(context.Background(), catalog.Genesis(ChainID, alloc))
	require.NoError(t, err)
	return &Ledger{Chain: c, t: t}
}

// Send applies a call to method of a on to from from and returns the
// receipt, reverted or not.
func (l *Ledger) Send(from, to common.Address, a *abi.ABI, method string, args ...any) chain.Receipt {
	l.t.Helper()
	return l.SendValue(from, to, nil, vm.MustPack(a, method, args...))
}

// SendValue applies raw calldata with value attached.
func (l *Ledger) SendValue(from, to common.Address, value *uint256.Int, data []byte) chain.Receipt {
	l.t.Helper()
	r, err := l.Apply(context.Background(), vm.Message{From: from, To: to, Value: value, Data: data})
	require.NoError(l.t, err)
	return r
}

// MustSend is Send that fails the test on a revert.
func (l *Ledger) MustSend(from, to common.Address, a *abi.ABI, method string, args ...any) chain.Receipt {
	l.t.Helper()
	r := l.Send(from, to, a, method, args...)
	require.NoError(l.t, r.Err, "%s reverted", method)
	return r
}

// View calls a view method and returns its decoded outputs.
func (l *Ledger) View(to common.Address, a *abi.ABI, method string, args ...any) []any {
	l.t.Helper()
	out, err := l.Call(context.Background(), Alice, to, vm.MustPack(a, method, args...))
	require.NoError(l.t, err, "view %s", method)
	vals, err := a.Unpack(method, out)
	require.NoError(l.t, err)
	return vals
}

// Reader returns a reader over committed state.
func (l *Ledger) Reader() store.Reader { return l.Store().Reader() }

// Balance returns the committed native balance of addr.
func (l *Ledger) Balance(addr common.Address) *uint256.Int {
	l.t.Helper()
	b, err := l.Reader().Balance(context.Background(), addr)
	require.NoError(l.t, err)
	return b
}

// Snapshot captures every table a failed transaction must leave untouched.
type Snapshot struct {
	Components []ir.Component
	Edges      map[string][]store.ActionEdge
	Members    map[string][]string
	Records    int
	Balances   map[common.Address]string
}

// Snapshot returns the committed components, registry tables of every
// registry, the number of change records and the balances of accounts.
func (l *Ledger) Snapshot(accounts ...common.Address) Snapshot {
	l.t.Helper()
	ctx := context.Background()
	r := l.Reader()

	comps, err := r.Components(ctx)
	require.NoError(l.t, err)
	snap := Snapshot{
		Components: comps,
		Edges:      map[string][]store.ActionEdge{},
		Members:    map[string][]string{},
		Balances:   map[common.Address]string{},
	}
	for _, c := range comps {
		if c.Code != "registry" {
			continue
		}
		reg := common.HexToAddress(c.Address)
		edges, err := r.ActionEdges(ctx, reg)
		require.NoError(l.t, err)
		snap.Edges[c.Address] = edges
		roles, err := r.Roles(ctx, reg)
		require.NoError(l.t, err)
		for _, role := range roles {
			members, err := r.Members(ctx, reg, role)
			require.NoError(l.t, err)
			for _, m := range members {
				snap.Members[c.Address] = append(snap.Members[c.Address], role+"/"+store.AddrKey(m))
			}
		}
	}
	recs, err := r.Records(ctx, store.RecordFilter{})
	require.NoError(l.t, err)
	snap.Records = len(recs)
	for _, a := range accounts {
		snap.Balances[a] = l.Balance(a).Dec()
	}
	return snap
}

// CountRecords counts the records named name in r.
func CountRecords(r chain.Receipt, name string) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Name == name {
			n++
		}
	}
	return n
}
