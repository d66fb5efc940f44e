package testutil

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/chain"
	"github.com/roach88/daokit/internal/core"
	"github.com/roach88/daokit/internal/factory"
	"github.com/roach88/daokit/internal/orchestrator"
)

// Founding roles of StandardFounding.
const (
	RoleExecute  = "EXECUTE"
	RoleUpgrade  = "UPGRADE"
	RoleWithdraw = "WITHDRAW"
	RoleGovern   = "GOVERN"
)

// StandardFounding has four roles administered by DAO_ROLE, with executor
// holding EXECUTE. EXECUTE may call the core's execute and UPGRADE its
// upgradeTo.
func StandardFounding(executor common.Address) factory.Founding {
	return factory.Founding{
		Name:    "test dao",
		Roles:   []string{RoleExecute, RoleUpgrade, RoleWithdraw, RoleGovern},
		Admins:  []string{access.DAORole, access.DAORole, access.DAORole, access.DAORole},
		Members: [][]common.Address{{executor}, {}, {}, {}},
		DAOOps:  [][4]byte{core.ExecuteOp, core.UpgradeOp},
		DAOActionRoles: [][]string{
			{RoleExecute},
			{RoleUpgrade},
		},
	}
}

// Salt converts a label to a salt.
func Salt(label string) [32]byte {
	s, err := addressing.SaltFromString(label)
	if err != nil {
		panic(err)
	}
	return s
}

// DAO is a created organization.
type DAO struct {
	Core     common.Address
	Registry common.Address
	Receipt  chain.Receipt
}

// CreateDAO runs createDAOAndExecute from sender and returns the receipt
// with the predicted addresses, whether or not it reverted.
func (l *Ledger) CreateDAO(sender common.Address, salt string, fd factory.Founding, steps ...orchestrator.Step) DAO {
	l.t.Helper()
	return l.CreateDAOWithValue(sender, nil, salt, fd, steps...)
}

// CreateDAOWithValue is CreateDAO with value sent to the orchestrator.
func (l *Ledger) CreateDAOWithValue(sender common.Address, value *uint256.Int, salt string, fd factory.Founding, steps ...orchestrator.Step) DAO {
	l.t.Helper()
	data, err := orchestrator.Calldata(orchestrator.Request{
		CoreFactory: factory.CoreFactoryAddress,
		Salt:        Salt(salt),
		Founding:    fd,
		Steps:       steps,
	})
	require.NoError(l.t, err)
	coreAddr, registry := factory.PredictDAO(l.Host().Predictor(), sender, Salt(salt))
	r := l.SendValue(sender, orchestrator.Address, value, data)
	return DAO{Core: coreAddr, Registry: registry, Receipt: r}
}

// MustCreateDAO is CreateDAO that fails the test on a revert.
func (l *Ledger) MustCreateDAO(sender common.Address, salt string, fd factory.Founding, steps ...orchestrator.Step) DAO {
	l.t.Helper()
	d := l.CreateDAO(sender, salt, fd, steps...)
	require.NoError(l.t, d.Receipt.Err, "createDAOAndExecute reverted")
	return d
}

// CreateCore deploys an organization by calling the core factory directly,
// with from as deployer and no orchestrator involved.
func (l *Ledger) CreateCore(from common.Address, salt string, fd factory.Founding) DAO {
	l.t.Helper()
	data, err := factory.CreateCalldata(Salt(salt), fd)
	require.NoError(l.t, err)
	coreAddr, registry := factory.PredictDAO(l.Host().Predictor(), from, Salt(salt))
	r := l.SendValue(from, factory.CoreFactoryAddress, nil, data)
	require.NoError(l.t, r.Err, "core factory create reverted")
	return DAO{Core: coreAddr, Registry: registry, Receipt: r}
}

// Execute sends core.execute with a single forwarded call from from.
func (l *Ledger) Execute(from, coreAddr, target common.Address, payload []byte) chain.Receipt {
	l.t.Helper()
	data, err := core.ExecuteCalldata([]common.Address{target}, nil, [][]byte{payload})
	require.NoError(l.t, err)
	return l.SendValue(from, coreAddr, nil, data)
}
