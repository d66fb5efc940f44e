package vm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MustABI parses a JSON ABI definition. Component ABIs are compiled in, so a
// parse failure is a programming error.
func MustABI(definition string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("vm: invalid ABI: " + err.Error())
	}
	return &parsed
}

// Selector returns the 4-byte selector of method in a.
func Selector(a *abi.ABI, method string) [4]byte {
	var sel [4]byte
	m, ok := a.Methods[method]
	if !ok {
		panic("vm: unknown method " + method)
	}
	copy(sel[:], m.ID)
	return sel
}

// MustPack encodes a call to method of a, panicking on malformed arguments.
// Intended for tests and compiled-in calls with known-good inputs.
func MustPack(a *abi.ABI, method string, args ...any) []byte {
	data, err := a.Pack(method, args...)
	if err != nil {
		panic("vm: pack " + method + ": " + err.Error())
	}
	return data
}

// ErrUnknownCall is returned by a Contract for a method it does not handle.
func ErrUnknownCall(code string, m *abi.Method) error {
	return Errorf(KindUnknownMethod, "%s does not implement %s", code, m.Sig)
}
