// Package addressing derives deployment addresses before the component
// exists, so components can reference each other's future addresses.
//
// The derivation is two-stage. An inner salt binds the deployer and the
// network to the caller's salt; the outer stage is CREATE2 over the
// deploying factory, that inner salt and the code/args hash:
//
//	innerSalt = keccak256(deployer ‖ uint256(chainID) ‖ salt)
//	initHash  = keccak256(codeHash ‖ argsHash)
//	address   = keccak256(0xff ‖ factory ‖ innerSalt ‖ initHash)[12:]
package addressing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Predictor computes deployment addresses for one network.
type Predictor struct {
	ChainID uint64
}

// New returns a Predictor for chainID.
func New(chainID uint64) Predictor {
	return Predictor{ChainID: chainID}
}

// InnerSalt binds salt to the deployer and the network.
func (p Predictor) InnerSalt(deployer common.Address, salt [32]byte) common.Hash {
	chain := uint256.NewInt(p.ChainID).Bytes32()
	return crypto.Keccak256Hash(deployer.Bytes(), chain[:], salt[:])
}

// Predict returns the address factory will deploy to for deployer's salt
// and the given code and argument hashes. It is a pure function.
func (p Predictor) Predict(factory, deployer common.Address, salt [32]byte, codeHash, argsHash common.Hash) common.Address {
	inner := p.InnerSalt(deployer, salt)
	return crypto.CreateAddress2(factory, inner, InitHash(codeHash, argsHash).Bytes())
}

// InitHash combines code identity and constructor arguments.
func InitHash(codeHash, argsHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(codeHash.Bytes(), argsHash.Bytes())
}

// CodeHash is the hash of a code identity such as "core" or "token".
func CodeHash(code string) common.Hash {
	return crypto.Keccak256Hash([]byte(code))
}

// ArgsHash hashes ABI-encoded constructor arguments. Empty args hash to
// keccak256 of the empty string.
func ArgsHash(encoded []byte) common.Hash {
	return crypto.Keccak256Hash(encoded)
}

// SaltFromString packs a short label into a salt, right-padded with zeros.
// Labels must leave room for a terminating zero byte.
func SaltFromString(label string) ([32]byte, error) {
	var salt [32]byte
	if len(label) > 31 {
		return salt, fmt.Errorf("salt label %q longer than 31 bytes", label)
	}
	copy(salt[:], label)
	return salt, nil
}

// ParseSalt accepts either a 0x-prefixed 32-byte hex value or a short label.
func ParseSalt(s string) ([32]byte, error) {
	if len(s) == 66 && (s[:2] == "0x" || s[:2] == "0X") {
		b := common.FromHex(s)
		if len(b) == 32 {
			var salt [32]byte
			copy(salt[:], b)
			return salt, nil
		}
	}
	return SaltFromString(s)
}
