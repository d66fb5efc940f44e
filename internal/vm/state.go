package vm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/roach88/daokit/internal/ir"
	"github.com/roach88/daokit/internal/store"
)

// Slot helpers read and write the calling component's own storage.

// SetString stores s under key.
func (f *Frame) SetString(key, s string) error {
	if err := f.ex.tx.SetSlot(f.ex.ctx, f.Self, key, s); err != nil {
		return Internal(err)
	}
	return nil
}

// GetString reads the string under key, "" when unset.
func (f *Frame) GetString(key string) (string, error) {
	return f.getString(f.Self, key)
}

func (f *Frame) getString(addr common.Address, key string) (string, error) {
	v, _, err := f.ex.tx.Slot(f.ex.ctx, addr, key)
	if err != nil {
		return "", Internal(err)
	}
	return v, nil
}

// SetAddress stores an address under key.
func (f *Frame) SetAddress(key string, a common.Address) error {
	return f.SetString(key, store.AddrKey(a))
}

// GetAddress reads the address under key, zero when unset.
func (f *Frame) GetAddress(key string) (common.Address, error) {
	s, err := f.GetString(key)
	if err != nil || s == "" {
		return common.Address{}, err
	}
	return common.HexToAddress(s), nil
}

// SetUint stores a 256-bit amount under key.
func (f *Frame) SetUint(key string, v *uint256.Int) error {
	return f.SetString(key, v.Dec())
}

// GetUint reads the amount under key, zero when unset.
func (f *Frame) GetUint(key string) (*uint256.Int, error) {
	s, err := f.GetString(key)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, Internal(err)
	}
	return v, nil
}

// Balance returns the native balance of addr.
func (f *Frame) Balance(addr common.Address) (*uint256.Int, error) {
	b, err := f.ex.tx.Balance(f.ex.ctx, addr)
	if err != nil {
		return nil, Internal(err)
	}
	return b, nil
}

// Key joins slot key parts with "/".
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// ToUint converts an ABI-decoded uint256 to a uint256.Int.
func ToUint(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, Errorf(KindInvalidInput, "value %s overflows uint256", b)
	}
	return v, nil
}

// Field converts an ABI value to a record field value. Addresses and byte
// strings become lowercase hex, integers become decimal strings.
func Field(v any) ir.Value {
	switch val := v.(type) {
	case nil:
		return ir.String("")
	case ir.Value:
		return val
	case string:
		return ir.String(val)
	case bool:
		return ir.Bool(val)
	case int:
		return ir.Int(val)
	case int64:
		return ir.Int(val)
	case uint64:
		return ir.String(new(big.Int).SetUint64(val).String())
	case common.Address:
		return ir.String(store.AddrKey(val))
	case common.Hash:
		return ir.String(hexutil.Encode(val[:]))
	case *big.Int:
		return ir.String(val.String())
	case *uint256.Int:
		return ir.String(val.Dec())
	case [4]byte:
		return ir.String(hexutil.Encode(val[:]))
	case [32]byte:
		return ir.String(hexutil.Encode(val[:]))
	case []byte:
		return ir.String(hexutil.Encode(val))
	case []string:
		arr := make(ir.Array, len(val))
		for i, s := range val {
			arr[i] = ir.String(s)
		}
		return arr
	case []common.Address:
		arr := make(ir.Array, len(val))
		for i, a := range val {
			arr[i] = Field(a)
		}
		return arr
	case []*big.Int:
		arr := make(ir.Array, len(val))
		for i, b := range val {
			arr[i] = Field(b)
		}
		return arr
	default:
		return ir.String(fmt.Sprint(val))
	}
}

// Fields builds a record body from alternating key/value pairs.
func Fields(kv ...any) ir.Object {
	obj := make(ir.Object, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, _ := kv[i].(string)
		obj[k] = Field(kv[i+1])
	}
	return obj
}
