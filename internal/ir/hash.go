package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for a future algorithm change.
const (
	DomainTransaction = "daokit/transaction/v1"
	DomainRecord      = "daokit/record/v1"
	DomainGenesis     = "daokit/genesis/v1"
)

// hashWithDomain returns hex(SHA256(domain || 0x00 || data)). The null byte
// keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TransactionID identifies a submitted message. Addresses and calldata are
// passed already hex encoded; value is a decimal string.
func TransactionID(flowToken, from, to, value, data string, seq int64) (string, error) {
	obj := Object{
		"flow_token": String(flowToken),
		"from":       String(from),
		"to":         String(to),
		"value":      String(value),
		"data":       String(data),
		"seq":        Int(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TransactionID: %w", err)
	}
	return hashWithDomain(DomainTransaction, canonical), nil
}

// RecordID identifies a change record by the transaction that produced it,
// its position in that transaction and its content.
func RecordID(txID string, index int, emitter, name string, fields Object) (string, error) {
	obj := Object{
		"tx_id":   String(txID),
		"index":   Int(index),
		"emitter": String(emitter),
		"name":    String(name),
		"fields":  fields,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RecordID: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// GenesisID identifies a genesis configuration by its canonical form.
func GenesisID(genesis Object) (string, error) {
	canonical, err := MarshalCanonical(genesis)
	if err != nil {
		return "", fmt.Errorf("GenesisID: %w", err)
	}
	return hashWithDomain(DomainGenesis, canonical), nil
}

// MustTransactionID is TransactionID for inputs known to be valid.
func MustTransactionID(flowToken, from, to, value, data string, seq int64) string {
	id, err := TransactionID(flowToken, from, to, value, data, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustRecordID is RecordID for inputs known to be valid.
func MustRecordID(txID string, index int, emitter, name string, fields Object) string {
	id, err := RecordID(txID, index, emitter, name, fields)
	if err != nil {
		panic(err)
	}
	return id
}
