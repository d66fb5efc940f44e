package treasury_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/modules/token"
	"github.com/roach88/daokit/internal/modules/treasury"
	"github.com/roach88/daokit/internal/testutil"
	"github.com/roach88/daokit/internal/vm"
)

type fixture struct {
	l        *testutil.Ledger
	dao      testutil.DAO
	treasury common.Address
}

// newFixture deploys an organization and a treasury whose withdrawals are
// bound to WITHDRAW, held by Bob.
func newFixture(t *testing.T) fixture {
	t.Helper()
	l := testutil.NewLedger(t)
	d := l.CreateCore(testutil.Alice, "treasury-test", testutil.StandardFounding(testutil.Alice))

	r := l.MustSend(testutil.Alice, factory.TreasuryFactoryAddress, factory.TreasuryFactoryABI, "create",
		d.Registry, testutil.Salt("vault"))
	out, err := factory.TreasuryFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	tr := out[0].(common.Address)

	steps := [][]byte{
		vm.MustPack(access.ABI, "grantRole", testutil.RoleWithdraw, testutil.Bob),
		vm.MustPack(access.ABI, "addActionsRoles",
			[]common.Address{tr, tr},
			[][4]byte{treasury.WithdrawEthOp, treasury.WithdrawTokensOp},
			[][]string{{testutil.RoleWithdraw}, {testutil.RoleWithdraw}}),
	}
	for _, s := range steps {
		require.NoError(t, l.Execute(testutil.Alice, d.Core, d.Registry, s).Err)
	}
	return fixture{l: l, dao: d, treasury: tr}
}

func TestTreasury_DepositAndWithdraw(t *testing.T) {
	fx := newFixture(t)
	assert.Equal(t, fx.dao.Registry, fx.l.View(fx.treasury, treasury.ABI, "registry")[0])

	require.NoError(t, fx.l.SendValue(testutil.Alice, fx.treasury, uint256.NewInt(1000), nil).Err)
	assert.Equal(t, "1000", fx.l.Balance(fx.treasury).Dec())

	r := fx.l.Send(testutil.Bob, fx.treasury, treasury.ABI, "withdrawEth",
		[]common.Address{testutil.Carol, testutil.Carol}, []*big.Int{big.NewInt(100), big.NewInt(50)})
	require.NoError(t, r.Err)
	assert.Equal(t, 2, testutil.CountRecords(r, "EthWithdrawn"))
	assert.Equal(t, "850", fx.l.Balance(fx.treasury).Dec())
	want := new(uint256.Int).AddUint64(testutil.InitialBalance, 150)
	assert.Equal(t, want.Dec(), fx.l.Balance(testutil.Carol).Dec())
}

func TestTreasury_WithdrawGated(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.l.SendValue(testutil.Alice, fx.treasury, uint256.NewInt(1000), nil).Err)

	r := fx.l.Send(testutil.Carol, fx.treasury, treasury.ABI, "withdrawEth",
		[]common.Address{testutil.Carol}, []*big.Int{big.NewInt(1)})
	require.ErrorIs(t, r.Err, vm.ErrUnauthorized)

	r = fx.l.Send(testutil.Bob, fx.treasury, treasury.ABI, "withdrawEth",
		[]common.Address{testutil.Carol}, []*big.Int{})
	require.ErrorIs(t, r.Err, vm.ErrArityMismatch)

	r = fx.l.Send(testutil.Bob, fx.treasury, treasury.ABI, "withdrawEth",
		[]common.Address{testutil.Carol}, []*big.Int{big.NewInt(1001)})
	require.ErrorIs(t, r.Err, vm.ErrInsufficientBalance)
	assert.Equal(t, "1000", fx.l.Balance(fx.treasury).Dec())
}

func TestTreasury_WithdrawTokens(t *testing.T) {
	fx := newFixture(t)

	r := fx.l.MustSend(testutil.Alice, factory.TokenFactoryAddress, factory.TokenFactoryABI, "create",
		"Vault Token", "VLT", []common.Address{fx.treasury}, []*big.Int{big.NewInt(500)}, testutil.Salt("vlt"))
	out, err := factory.TokenFactoryABI.Unpack("create", r.Return)
	require.NoError(t, err)
	tok := out[0].(common.Address)

	r = fx.l.Send(testutil.Bob, fx.treasury, treasury.ABI, "withdrawTokens",
		tok, []common.Address{testutil.Carol}, []*big.Int{big.NewInt(200)})
	require.NoError(t, r.Err)
	assert.Equal(t, big.NewInt(200), fx.l.View(tok, token.ABI, "balanceOf", testutil.Carol)[0])
	assert.Equal(t, big.NewInt(300), fx.l.View(tok, token.ABI, "balanceOf", fx.treasury)[0])

	r = fx.l.Send(testutil.Bob, fx.treasury, treasury.ABI, "withdrawTokens",
		tok, []common.Address{testutil.Carol}, []*big.Int{big.NewInt(301)})
	assert.ErrorIs(t, r.Err, vm.ErrInsufficientBalance)
}
