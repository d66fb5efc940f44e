package factory_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/core"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/modules/token"
	"github.com/roach88/daokit/internal/store"
	"github.com/roach88/daokit/internal/testutil"
	"github.com/roach88/daokit/internal/vm"
)

func TestCoreFactory_DeploysAtPredictedAddresses(t *testing.T) {
	l := testutil.NewLedger(t)
	salt := testutil.Salt("acme")

	view := l.View(factory.CoreFactoryAddress, factory.CoreFactoryABI, "predict", testutil.Alice, salt)
	wantCore, wantRegistry := factory.PredictDAO(l.Host().Predictor(), testutil.Alice, salt)
	assert.Equal(t, wantCore, view[0])
	assert.Equal(t, wantRegistry, view[1])
	assert.NotEqual(t, wantCore, wantRegistry)

	d := l.CreateCore(testutil.Alice, "acme", testutil.StandardFounding(testutil.Alice))
	out, err := factory.CoreFactoryABI.Unpack("create", d.Receipt.Return)
	require.NoError(t, err)
	assert.Equal(t, wantCore, out[0])
	assert.Equal(t, wantRegistry, out[1])

	ctx := context.Background()
	for addr, code := range map[common.Address]string{wantCore: core.Code, wantRegistry: access.Code} {
		comp, ok, err := l.Reader().Component(ctx, addr)
		require.NoError(t, err)
		require.True(t, ok, code)
		assert.Equal(t, code, comp.Code)
		assert.True(t, comp.Initialized)
		assert.Equal(t, store.AddrKey(factory.CoreFactoryAddress), comp.Factory)
		assert.Equal(t, store.AddrKey(testutil.Alice), comp.Deployer)
	}

	require.Equal(t, 1, testutil.CountRecords(d.Receipt, "DAOCreated"))
	last := d.Receipt.Records[len(d.Receipt.Records)-1]
	assert.Equal(t, store.AddrKey(wantCore), last.Fields.Str("core"))
	assert.Equal(t, store.AddrKey(wantRegistry), last.Fields.Str("registry"))
	assert.Equal(t, store.AddrKey(testutil.Alice), last.Fields.Str("creator"))
}

func TestCoreFactory_SaltCollision(t *testing.T) {
	l := testutil.NewLedger(t)
	fd := testutil.StandardFounding(testutil.Alice)
	l.CreateCore(testutil.Alice, "acme", fd)
	before := l.Snapshot()

	data, err := factory.CreateCalldata(testutil.Salt("acme"), fd)
	require.NoError(t, err)
	r := l.SendValue(testutil.Alice, factory.CoreFactoryAddress, nil, data)
	require.ErrorIs(t, r.Err, vm.ErrAddressCollision)
	assert.Equal(t, before, l.Snapshot())

	// The same salt from another deployer is a different slot.
	r = l.SendValue(testutil.Bob, factory.CoreFactoryAddress, nil, data)
	require.NoError(t, r.Err)
}

func TestCoreFactory_ArityMismatch(t *testing.T) {
	l := testutil.NewLedger(t)
	fd := testutil.StandardFounding(testutil.Alice)
	fd.DAOActionRoles = fd.DAOActionRoles[:1]

	data, err := factory.CreateCalldata(testutil.Salt("acme"), fd)
	require.NoError(t, err)
	r := l.SendValue(testutil.Alice, factory.CoreFactoryAddress, nil, data)
	assert.ErrorIs(t, r.Err, vm.ErrArityMismatch)

	fd = testutil.StandardFounding(testutil.Alice)
	fd.Members = fd.Members[:2]
	data, err = factory.CreateCalldata(testutil.Salt("acme"), fd)
	require.NoError(t, err)
	r = l.SendValue(testutil.Alice, factory.CoreFactoryAddress, nil, data)
	require.ErrorIs(t, r.Err, vm.ErrInitializationFailed)
	assert.ErrorIs(t, r.Err, vm.ErrArityMismatch)
}

func TestTokenFactory_ArgumentsArePartOfTheAddress(t *testing.T) {
	l := testutil.NewLedger(t)
	p := l.Host().Predictor()
	salt := testutil.Salt("tok")

	a, err := factory.PredictToken(p, testutil.Alice, salt, "One", "ONE", nil, nil)
	require.NoError(t, err)
	b, err := factory.PredictToken(p, testutil.Alice, salt, "Two", "TWO", nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	view := l.View(factory.TokenFactoryAddress, factory.TokenFactoryABI, "predict", testutil.Alice, salt, "One", "ONE",
		[]common.Address{}, []*big.Int{})
	assert.Equal(t, a, view[0])

	r := l.MustSend(testutil.Alice, factory.TokenFactoryAddress, factory.TokenFactoryABI, "create",
		"One", "ONE", []common.Address{}, []*big.Int{}, salt)
	out, err := factory.TokenFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	assert.Equal(t, a, out[0])
	assert.Equal(t, 1, testutil.CountRecords(r, "TokenCreated"))
}

func TestTokenFactory_DistributionIsPartOfTheAddress(t *testing.T) {
	l := testutil.NewLedger(t)
	p := l.Host().Predictor()
	salt := testutil.Salt("tok")
	holders := []common.Address{testutil.Bob}

	var created []common.Address
	for _, amount := range []int64{1, 2} {
		allocations := []*big.Int{big.NewInt(amount)}
		want, err := factory.PredictToken(p, testutil.Alice, salt, "Same", "SAME", holders, allocations)
		require.NoError(t, err)

		r := l.Send(testutil.Alice, factory.TokenFactoryAddress, factory.TokenFactoryABI, "create",
			"Same", "SAME", holders, allocations, salt)
		require.NoError(t, r.Err, "allocation %d", amount)
		out, err := factory.TokenFactoryABI.Unpack("create", r.Return)
		require.NoError(t, err)
		assert.Equal(t, want, out[0])
		created = append(created, out[0].(common.Address))

		bal := l.View(want, token.ABI, "balanceOf", testutil.Bob)
		assert.Equal(t, big.NewInt(amount), bal[0])
	}
	assert.NotEqual(t, created[0], created[1])
}

func TestFactories_DeployerIsOriginator(t *testing.T) {
	l := testutil.NewLedger(t)
	p := l.Host().Predictor()
	salt := testutil.Salt("module")

	alice := factory.PredictTreasury(p, testutil.Alice, salt)
	bob := factory.PredictTreasury(p, testutil.Bob, salt)
	require.NotEqual(t, alice, bob)

	d := l.CreateCore(testutil.Alice, "acme", testutil.StandardFounding(testutil.Alice))
	r := l.MustSend(testutil.Bob, factory.TreasuryFactoryAddress, factory.TreasuryFactoryABI, "create", d.Registry, salt)
	out, err := factory.TreasuryFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	assert.Equal(t, bob, out[0])

	r = l.MustSend(testutil.Alice, factory.TreasuryFactoryAddress, factory.TreasuryFactoryABI, "create", d.Registry, salt)
	out, err = factory.TreasuryFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	assert.Equal(t, alice, out[0])
}

func TestModuleFactories_PredictMatchesCreate(t *testing.T) {
	l := testutil.NewLedger(t)
	p := l.Host().Predictor()
	d := l.CreateCore(testutil.Alice, "acme", testutil.StandardFounding(testutil.Alice))
	salt := testutil.Salt("module")

	r := l.MustSend(testutil.Alice, factory.TreasuryFactoryAddress, factory.TreasuryFactoryABI, "create", d.Registry, salt)
	out, err := factory.TreasuryFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	assert.Equal(t, factory.PredictTreasury(p, testutil.Alice, salt), out[0])
	assert.Equal(t, out[0], l.View(factory.TreasuryFactoryAddress, factory.TreasuryFactoryABI, "predict", testutil.Alice, salt)[0])
	assert.Equal(t, 1, testutil.CountRecords(r, "TreasuryCreated"))

	r = l.MustSend(testutil.Alice, factory.GovernorFactoryAddress, factory.GovernorFactoryABI, "create",
		d.Registry, d.Core, big.NewInt(5), salt)
	out, err = factory.GovernorFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	assert.Equal(t, factory.PredictGovernor(p, testutil.Alice, salt), out[0])
	assert.Equal(t, 1, testutil.CountRecords(r, "GovernorCreated"))

	r = l.Send(testutil.Alice, factory.TreasuryFactoryAddress, factory.TreasuryFactoryABI, "create", d.Registry, salt)
	assert.ErrorIs(t, r.Err, vm.ErrAddressCollision)
}

func TestPredeploys_AreDistinct(t *testing.T) {
	seen := map[common.Address]bool{}
	codes := map[string]bool{}
	for _, p := range factory.Predeploys() {
		assert.False(t, seen[p.Address], p.Address.Hex())
		assert.False(t, codes[p.Contract.Code()], p.Contract.Code())
		seen[p.Address] = true
		codes[p.Contract.Code()] = true
	}
	assert.Len(t, factory.Kinds, len(factory.Predeploys()))
}
