package interfaces

import "context"

// Engine adalah oracle proof-of-work yang dipakai ledger dan miner.
type Engine interface {
	// FindProof mencari tanpa batas dan tanpa pembatalan.
	FindProof(lastProof uint64) uint64
	// FindProofContext berhenti dengan ctx.Err() ketika ctx dibatalkan.
	FindProofContext(ctx context.Context, lastProof uint64) (uint64, error)
	IsValid(lastProof, candidate uint64) bool
}
