package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"hashledger/logger"
)

// Validator memeriksa payload dari luar dan keutuhan pasangan blok.
// Tidak ada aturan validitas transaksi (tanda amount, format alamat): itu di luar cakupan ledger.
type Validator struct {
	maxPayloadSize int
}

func NewValidator() *Validator {
	return &Validator{
		maxPayloadSize: 128 * 1024,
	}
}

// transactionPayload adalah body permintaan submit-transaction: {"transaction": {...}}.
type transactionPayload struct {
	Transaction *Transaction `json:"transaction"`
}

// DecodeTransactionPayload memakai Validator default.
func DecodeTransactionPayload(data []byte) (Transaction, error) {
	return NewValidator().DecodeTransactionPayload(data)
}

// DecodeTransactionPayload mengubah payload eksternal menjadi Transaction.
// Semua kegagalan dibungkus ErrMalformedTransaction dan tidak pernah sampai ke Ledger.
func (v *Validator) DecodeTransactionPayload(data []byte) (Transaction, error) {
	if len(data) > v.maxPayloadSize {
		return Transaction{}, fmt.Errorf("%w: payload size %d exceeds %d bytes", ErrMalformedTransaction, len(data), v.maxPayloadSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Transaction{}, fmt.Errorf("%w: empty body", ErrMalformedTransaction)
	}

	var payload transactionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Debugf("Transaction payload rejected: %v", err)
		if errors.Is(err, ErrMalformedTransaction) {
			return Transaction{}, err
		}
		return Transaction{}, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if payload.Transaction == nil {
		return Transaction{}, fmt.Errorf("%w: missing field \"transaction\"", ErrMalformedTransaction)
	}
	return *payload.Transaction, nil
}

// ValidateLink memeriksa bahwa curr.prev_hash sama dengan digest prev.
func (v *Validator) ValidateLink(prev, curr Block) error {
	expected := HashBlock(prev)
	if curr.prevHash != expected {
		return &IntegrityError{
			Index:    curr.index,
			Expected: uint64(expected),
			Actual:   uint64(curr.prevHash),
		}
	}
	return nil
}

// ValidateGenesis memeriksa field sentinel blok genesis.
func (v *Validator) ValidateGenesis(b Block) error {
	switch {
	case b.index != 0:
		return &IntegrityError{Index: b.index, Reason: "genesis must have index 0"}
	case b.proof != GenesisProof:
		return &IntegrityError{Index: 0, Reason: fmt.Sprintf("genesis proof %d, want %d", b.proof, GenesisProof)}
	case b.prevHash != GenesisPrevHash:
		return &IntegrityError{Index: 0, Reason: fmt.Sprintf("genesis prev_hash %d, want sentinel %d", b.prevHash, GenesisPrevHash)}
	case len(b.transactions) != 0:
		return &IntegrityError{Index: 0, Reason: "genesis must not carry transactions"}
	}
	return nil
}
