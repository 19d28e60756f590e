package metrics

import (
	"sync"

	"go.uber.org/atomic"
)

// Metrics menyimpan counter proses untuk ledger, miner dan oracle.
type Metrics struct {
	BlocksAppended     *atomic.Uint64
	TransactionsQueued *atomic.Uint64
	PendingPoolSize    *atomic.Uint32
	ProofAttempts      *atomic.Uint64
	ProofsFound        *atomic.Uint64
	StaleProofs        *atomic.Uint64
	IntegrityFailures  *atomic.Uint64
}

var (
	instance *Metrics
	once     sync.Once
)

func GetMetrics() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		BlocksAppended:     atomic.NewUint64(0),
		TransactionsQueued: atomic.NewUint64(0),
		PendingPoolSize:    atomic.NewUint32(0),
		ProofAttempts:      atomic.NewUint64(0),
		ProofsFound:        atomic.NewUint64(0),
		StaleProofs:        atomic.NewUint64(0),
		IntegrityFailures:  atomic.NewUint64(0),
	}
}

func (m *Metrics) IncrementBlockCount()               { m.BlocksAppended.Inc() }
func (m *Metrics) IncrementTransactionCount()         { m.TransactionsQueued.Inc() }
func (m *Metrics) SetTransactionPoolSize(size uint32) { m.PendingPoolSize.Store(size) }
func (m *Metrics) AddProofAttempts(n uint64)          { m.ProofAttempts.Add(n) }
func (m *Metrics) IncrementProofsFound()              { m.ProofsFound.Inc() }
func (m *Metrics) IncrementStaleProofs()              { m.StaleProofs.Inc() }
func (m *Metrics) IncrementIntegrityFailures()        { m.IntegrityFailures.Inc() }

func (m *Metrics) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"blocksAppended":     m.BlocksAppended.Load(),
		"transactionsQueued": m.TransactionsQueued.Load(),
		"pendingPoolSize":    m.PendingPoolSize.Load(),
		"proofAttempts":      m.ProofAttempts.Load(),
		"proofsFound":        m.ProofsFound.Load(),
		"staleProofs":        m.StaleProofs.Load(),
		"integrityFailures":  m.IntegrityFailures.Load(),
	}
}
