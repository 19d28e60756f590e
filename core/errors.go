package core

import (
	"errors"
	"fmt"
)

var (
	// ErrClockFault: jam host melaporkan waktu sebelum epoch Unix. Fatal.
	ErrClockFault = errors.New("system clock reports a time before the Unix epoch")
	// ErrEmptyChain tidak boleh terjadi karena genesis dibuat saat konstruksi.
	ErrEmptyChain           = errors.New("chain has no blocks")
	ErrMalformedTransaction = errors.New("malformed transaction payload")
	ErrChainIntegrity       = errors.New("chain integrity violation")
	ErrPoolFull             = errors.New("pending transaction pool is full")
	ErrBlockNotFound        = errors.New("block not found")
	ErrMiningTimeout        = errors.New("mining timeout exceeded")
)

// IntegrityError menunjuk blok pertama (dari ekor) yang prev_hash-nya tidak cocok.
type IntegrityError struct {
	Index    uint64
	Expected uint64
	Actual   uint64
	Reason   string
}

func (e *IntegrityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v at block %d: %s", ErrChainIntegrity, e.Index, e.Reason)
	}
	return fmt.Sprintf("%v at block %d: prev_hash %d, digest of predecessor %d", ErrChainIntegrity, e.Index, e.Actual, e.Expected)
}

func (e *IntegrityError) Unwrap() error {
	return ErrChainIntegrity
}
