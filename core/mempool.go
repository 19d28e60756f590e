package core

import (
	"sync"
)

// Mempool adalah pending pool: transaksi yang sudah di-queue tetapi belum disegel ke blok.
// Urutan FIFO dipertahankan; transaksi identik boleh di-queue lebih dari sekali.
type Mempool struct {
	transactions    []Transaction
	maxTransactions int // 0 berarti tidak dibatasi
	mu              sync.RWMutex
}

func NewMempool(maxTransactions int) *Mempool {
	if maxTransactions < 0 {
		maxTransactions = 0
	}
	return &Mempool{
		transactions:    []Transaction{},
		maxTransactions: maxTransactions,
	}
}

func (mp *Mempool) AddTransaction(tx Transaction) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.maxTransactions > 0 && len(mp.transactions) >= mp.maxTransactions {
		return ErrPoolFull
	}
	mp.transactions = append(mp.transactions, tx)
	return nil
}

// GetPendingTransactions mengembalikan salinan isi pool dalam urutan antrean.
func (mp *Mempool) GetPendingTransactions() []Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return cloneTransactions(mp.transactions)
}

// Drain mengambil seluruh isi pool dan mengosongkannya dalam satu langkah.
// Transaksi yang masuk setelah Drain tidak ikut terambil dan tidak hilang.
func (mp *Mempool) Drain() []Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	drained := mp.transactions
	mp.transactions = []Transaction{}
	return drained
}

func (mp *Mempool) Size() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.transactions)
}
