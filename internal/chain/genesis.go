package chain

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/addressing"
	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/store"
)

// Meta keys written by genesis.
const (
	MetaChainID   = "chain_id"
	MetaGenesis   = "genesis"
	MetaGenesisID = "genesis_id"
)

// Predeploy is a component present from genesis.
type Predeploy struct {
	Address common.Address
	Code    string
}

// Genesis is the initial ledger state: balances and predeployed components.
type Genesis struct {
	ChainID    uint64
	Alloc      map[common.Address]*uint256.Int
	Predeploys []Predeploy
}

// Object returns the genesis in the form its id is derived from.
func (g Genesis) Object() ir.Object {
	alloc := ir.Object{}
	for addr, amount := range g.Alloc {
		if amount == nil {
			amount = new(uint256.Int)
		}
		alloc[store.AddrKey(addr)] = ir.String(amount.Dec())
	}
	predeploys := ir.Object{}
	for _, p := range g.Predeploys {
		predeploys[store.AddrKey(p.Address)] = ir.String(p.Code)
	}
	return ir.Object{
		"chain_id":   ir.String(strconv.FormatUint(g.ChainID, 10)),
		"alloc":      alloc,
		"predeploys": predeploys,
	}
}

// ParseGenesis restores a Genesis from its stored JSON form.
func ParseGenesis(data []byte) (Genesis, error) {
	var obj ir.Object
	if err := obj.UnmarshalJSON(data); err != nil {
		return Genesis{}, fmt.Errorf("parse genesis: %w", err)
	}
	chainID, err := strconv.ParseUint(obj.Str("chain_id"), 10, 64)
	if err != nil {
		return Genesis{}, fmt.Errorf("parse genesis chain_id: %w", err)
	}
	g := Genesis{ChainID: chainID, Alloc: map[common.Address]*uint256.Int{}}
	if alloc, ok := obj["alloc"].(ir.Object); ok {
		for addr, v := range alloc {
			s, _ := v.(ir.String)
			amount, err := uint256.FromDecimal(string(s))
			if err != nil {
				return Genesis{}, fmt.Errorf("parse genesis alloc %s: %w", addr, err)
			}
			g.Alloc[common.HexToAddress(addr)] = amount
		}
	}
	if predeploys, ok := obj["predeploys"].(ir.Object); ok {
		for _, addr := range predeploys.SortedKeys() {
			code, _ := predeploys[addr].(ir.String)
			g.Predeploys = append(g.Predeploys, Predeploy{Address: common.HexToAddress(addr), Code: string(code)})
		}
	}
	return g, nil
}

// InitGenesis writes g into an empty ledger. On a ledger that already has a
// genesis it only verifies that it is the same one; applied reports which
// case happened.
func (c *Chain) InitGenesis(ctx context.Context, g Genesis) (applied bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g.ChainID != c.host.Predictor().ChainID {
		return false, fmt.Errorf("genesis chain id %d, host chain id %d", g.ChainID, c.host.Predictor().ChainID)
	}
	obj := g.Object()
	id, err := ir.GenesisID(obj)
	if err != nil {
		return false, err
	}

	err = c.store.Update(ctx, func(tx *store.Tx) error {
		existing, ok, err := tx.Meta(ctx, MetaGenesisID)
		if err != nil {
			return err
		}
		if ok {
			if existing != id {
				return fmt.Errorf("ledger was initialized with genesis %s, not %s", existing, id)
			}
			return nil
		}
		if err := c.writeGenesis(ctx, tx, g); err != nil {
			return err
		}
		encoded, err := ir.MarshalCanonical(obj)
		if err != nil {
			return err
		}
		if err := tx.SetMeta(ctx, MetaChainID, strconv.FormatUint(g.ChainID, 10)); err != nil {
			return err
		}
		if err := tx.SetMeta(ctx, MetaGenesis, string(encoded)); err != nil {
			return err
		}
		applied = true
		return tx.SetMeta(ctx, MetaGenesisID, id)
	})
	if err != nil {
		return false, fmt.Errorf("genesis: %w", err)
	}
	if applied {
		c.logger.Info("genesis applied", "genesis", id, "predeploys", len(g.Predeploys), "alloc", len(g.Alloc))
	}
	return applied, nil
}

func (c *Chain) writeGenesis(ctx context.Context, tx *store.Tx, g Genesis) error {
	predeploys := append([]Predeploy(nil), g.Predeploys...)
	sort.Slice(predeploys, func(i, j int) bool {
		return predeploys[i].Address.Cmp(predeploys[j].Address) < 0
	})
	for _, p := range predeploys {
		if _, ok := c.host.Contract(p.Code); !ok {
			return fmt.Errorf("predeploy %s: code %q not registered", p.Address.Hex(), p.Code)
		}
		err := tx.InsertComponent(ctx, ir.Component{
			Address:     store.AddrKey(p.Address),
			Code:        p.Code,
			CodeHash:    addressing.CodeHash(p.Code).Hex(),
			ArgsHash:    addressing.ArgsHash(nil).Hex(),
			Initialized: true,
		})
		if err != nil {
			return err
		}
	}
	for addr, amount := range g.Alloc {
		if amount == nil {
			continue
		}
		if err := tx.SetBalance(ctx, addr, amount); err != nil {
			return err
		}
	}
	return nil
}

// LoadGenesis reads the genesis stored in r.
func LoadGenesis(ctx context.Context, r store.Reader) (Genesis, error) {
	raw, ok, err := r.Meta(ctx, MetaGenesis)
	if err != nil {
		return Genesis{}, err
	}
	if !ok {
		return Genesis{}, fmt.Errorf("ledger has no genesis")
	}
	return ParseGenesis([]byte(raw))
}
