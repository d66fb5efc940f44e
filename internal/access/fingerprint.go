package access

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Fingerprint identifies an operation: the first four bytes of the keccak256
// of its canonical signature, e.g. "execute(address[],uint256[],bytes[])".
// It is computed once at configuration time and opaque afterwards.
type Fingerprint [4]byte

// FingerprintOf derives the fingerprint of signature.
func FingerprintOf(signature string) Fingerprint {
	var fp Fingerprint
	copy(fp[:], crypto.Keccak256([]byte(signature))[:4])
	return fp
}

// ParseFingerprint accepts a 0x-prefixed 4-byte hex value or a signature.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hexutil.Decode(s)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("parse fingerprint %q: %w", s, err)
		}
		if len(b) != 4 {
			return Fingerprint{}, fmt.Errorf("parse fingerprint %q: want 4 bytes, got %d", s, len(b))
		}
		var fp Fingerprint
		copy(fp[:], b)
		return fp, nil
	}
	if !strings.Contains(s, "(") || !strings.HasSuffix(s, ")") {
		return Fingerprint{}, fmt.Errorf("parse fingerprint %q: not a signature", s)
	}
	return FingerprintOf(s), nil
}

// String returns the 0x-prefixed hex form.
func (fp Fingerprint) String() string {
	return hexutil.Encode(fp[:])
}

// Fingerprints converts ABI-decoded bytes4 values.
func Fingerprints(raw [][4]byte) []Fingerprint {
	out := make([]Fingerprint, len(raw))
	for i, r := range raw {
		out[i] = Fingerprint(r)
	}
	return out
}

// Raw converts fingerprints for ABI encoding.
func Raw(fps []Fingerprint) [][4]byte {
	out := make([][4]byte, len(fps))
	for i, fp := range fps {
		out[i] = fp
	}
	return out
}
