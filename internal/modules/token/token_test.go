package token_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/modules/token"
	"github.com/roach88/daokit/internal/testutil"
	"github.com/roach88/daokit/internal/vm"
)

func deployToken(t *testing.T, l *testutil.Ledger) common.Address {
	t.Helper()
	r := l.MustSend(testutil.Alice, factory.TokenFactoryAddress, factory.TokenFactoryABI, "create",
		"Gov Token", "GOV",
		[]common.Address{testutil.Alice, testutil.Bob},
		[]*big.Int{big.NewInt(700), big.NewInt(300)},
		testutil.Salt("gov"))
	out, err := factory.TokenFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	return out[0].(common.Address)
}

func balanceOf(l *testutil.Ledger, tok, account common.Address) *big.Int {
	return l.View(tok, token.ABI, "balanceOf", account)[0].(*big.Int)
}

func TestToken_InitialAllocation(t *testing.T) {
	l := testutil.NewLedger(t)
	tok := deployToken(t, l)

	assert.Equal(t, "Gov Token", l.View(tok, token.ABI, "name")[0])
	assert.Equal(t, "GOV", l.View(tok, token.ABI, "symbol")[0])
	assert.Equal(t, big.NewInt(1000), l.View(tok, token.ABI, "totalSupply")[0])
	assert.Equal(t, big.NewInt(700), balanceOf(l, tok, testutil.Alice))
	assert.Equal(t, big.NewInt(300), balanceOf(l, tok, testutil.Bob))
	assert.Equal(t, big.NewInt(0), balanceOf(l, tok, testutil.Carol))
}

func TestToken_Transfer(t *testing.T) {
	l := testutil.NewLedger(t)
	tok := deployToken(t, l)

	r := l.MustSend(testutil.Bob, tok, token.ABI, "transfer", testutil.Carol, big.NewInt(120))
	assert.Equal(t, 1, testutil.CountRecords(r, "Transfer"))
	assert.Equal(t, big.NewInt(180), balanceOf(l, tok, testutil.Bob))
	assert.Equal(t, big.NewInt(120), balanceOf(l, tok, testutil.Carol))

	r = l.Send(testutil.Carol, tok, token.ABI, "transfer", testutil.Alice, big.NewInt(121))
	require.ErrorIs(t, r.Err, vm.ErrInsufficientBalance)
	assert.Equal(t, big.NewInt(120), balanceOf(l, tok, testutil.Carol))
	assert.Equal(t, big.NewInt(1000), l.View(tok, token.ABI, "totalSupply")[0])
}

func TestToken_InitializationErrors(t *testing.T) {
	l := testutil.NewLedger(t)

	r := l.Send(testutil.Alice, factory.TokenFactoryAddress, factory.TokenFactoryABI, "create",
		"Bad", "BAD", []common.Address{testutil.Alice}, []*big.Int{}, testutil.Salt("bad"))
	require.ErrorIs(t, r.Err, vm.ErrInitializationFailed)
	assert.ErrorIs(t, r.Err, vm.ErrArityMismatch)

	r = l.Send(testutil.Alice, factory.TokenFactoryAddress, factory.TokenFactoryABI, "create",
		"Bad", "", []common.Address{}, []*big.Int{}, testutil.Salt("bad"))
	assert.ErrorIs(t, r.Err, vm.ErrInvalidInput)
}
