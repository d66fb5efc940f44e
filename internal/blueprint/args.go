package blueprint

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/daokit/internal/access"
	"github.com/roach88/daokit/internal/addressing"
)

// convert turns a decoded CUE value into the Go value the ABI packer
// expects for t. Strings in address positions may be references.
func (c *compiler) convert(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want address string, got %T", v)
		}
		tgt, err := c.resolve(s)
		if err != nil {
			return nil, err
		}
		return tgt.addr, nil
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		return b, nil
	case abi.UintTy, abi.IntTy:
		n, err := toBig(v)
		if err != nil {
			return nil, err
		}
		return sized(t, n)
	case abi.BytesTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want hex string, got %T", v)
		}
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		return fixedBytes(t, v)
	case abi.SliceTy, abi.ArrayTy:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("want list, got %T", v)
		}
		if t.T == abi.ArrayTy && len(list) != t.Size {
			return nil, fmt.Errorf("want %d elements, got %d", t.Size, len(list))
		}
		out := reflect.New(t.GetType()).Elem()
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(list), len(list))
		}
		for i, elem := range list {
			conv, err := c.convert(*t.Elem, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(conv))
		}
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("unsupported argument type %s", t.String())
}

// sized returns n as the Go type the packer uses for t: *big.Int above 64
// bits, the matching fixed-width integer otherwise.
func sized(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy && n.Sign() < 0 {
		return nil, fmt.Errorf("%s cannot be negative", t.String())
	}
	bits := t.Size
	if t.T == abi.IntTy {
		bits--
	}
	if n.BitLen() > bits {
		return nil, fmt.Errorf("%s overflows %s", n, t.String())
	}
	if t.Size > 64 {
		return n, nil
	}
	out := reflect.New(t.GetType()).Elem()
	if t.T == abi.UintTy {
		out.SetUint(n.Uint64())
	} else {
		out.SetInt(n.Int64())
	}
	return out.Interface(), nil
}

// fixedBytes accepts hex of exactly the right width. bytes4 also takes an
// operation signature and bytes32 a short salt label.
func fixedBytes(t abi.Type, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("want string, got %T", v)
	}
	var b []byte
	switch {
	case t.Size == 4 && !strings.HasPrefix(s, "0x"):
		fp, err := access.ParseFingerprint(s)
		if err != nil {
			return nil, err
		}
		b = fp[:]
	case t.Size == 32 && !strings.HasPrefix(s, "0x"):
		salt, err := addressing.ParseSalt(s)
		if err != nil {
			return nil, err
		}
		b = salt[:]
	default:
		var err error
		if b, err = hexutil.Decode(s); err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
	}
	out := reflect.New(t.GetType()).Elem()
	reflect.Copy(out, reflect.ValueOf(b))
	return out.Interface(), nil
}

// toBig reads an integer from a decoded CUE number or a decimal or hex
// string. Absent values are zero.
func toBig(v any) (*big.Int, error) {
	switch n := v.(type) {
	case nil:
		return new(big.Int), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return nil, fmt.Errorf("%v is not an exact integer", n)
		}
		return big.NewInt(int64(n)), nil
	case *big.Int:
		return new(big.Int).Set(n), nil
	case json.Number:
		out, ok := new(big.Int).SetString(string(n), 10)
		if !ok {
			return nil, fmt.Errorf("%s is not an exact integer", n)
		}
		return out, nil
	case string:
		out, ok := new(big.Int).SetString(n, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("want integer, got %T", v)
}
