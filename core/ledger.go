package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"hashledger/interfaces"
	"hashledger/logger"
	"hashledger/metrics"
)

const (
	// GenesisProof adalah proof tetap milik blok genesis.
	GenesisProof uint64 = 100
	// GenesisPrevHash adalah sentinel, bukan hasil hash dari blok mana pun.
	GenesisPrevHash Digest = 1
)

// Archiver menerima setiap blok setelah ditambahkan ke chain (misalnya database.BlockStore).
type Archiver interface {
	ArchiveBlock(block Block) error
}

// Ledger memiliki chain (append-only) dan pending pool.
//
// Setiap operasi publik memegang satu mutex selama operasi itu saja, tidak pernah lintas operasi.
// Akibatnya QueueTransaction diikuti AppendBlock oleh pemanggil yang sama bisa diselipi
// AppendBlock dari pemanggil lain; pakai QueueAndAppend atau Mine bila itu tidak boleh terjadi.
type Ledger struct {
	chain     []Block
	pending   *Mempool
	validator *Validator
	archive   Archiver
	mu        sync.RWMutex
}

type Option func(*Ledger)

// WithMaxPending membatasi ukuran pending pool. 0 berarti tanpa batas.
func WithMaxPending(n int) Option {
	return func(l *Ledger) {
		l.pending = NewMempool(n)
	}
}

func WithArchiver(a Archiver) Option {
	return func(l *Ledger) {
		l.archive = a
	}
}

func newLedger(opts ...Option) *Ledger {
	l := &Ledger{
		chain:     make([]Block, 0, 16),
		pending:   NewMempool(0),
		validator: NewValidator(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLedger membuat ledger dengan blok genesis sebagai satu-satunya anggota chain.
// Panic dengan ErrClockFault jika jam host berada sebelum epoch.
func NewLedger(opts ...Option) *Ledger {
	l := newLedger(opts...)
	genesis := GenesisBlock()
	l.chain = append(l.chain, genesis)
	l.archiveLocked(genesis)
	logger.Infof("Ledger initialized with genesis block (proof %d, prev_hash %d)", GenesisProof, GenesisPrevHash)
	return l
}

// GenesisBlock membangun blok genesis: index 0, proof dan prev_hash tetap, tanpa transaksi.
func GenesisBlock() Block {
	return NewBlock(0, GenesisProof, GenesisPrevHash, nil)
}

// RestoreLedger membangun ulang ledger dari blok yang diarsipkan.
// Genesis harus memakai field sentinel, index harus sama dengan posisi, dan linkage harus utuh.
func RestoreLedger(blocks []Block, opts ...Option) (*Ledger, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyChain
	}
	l := newLedger(opts...)
	if err := l.validator.ValidateGenesis(blocks[0]); err != nil {
		return nil, err
	}
	for i, b := range blocks {
		if b.index != uint64(i) {
			return nil, &IntegrityError{Index: uint64(i), Reason: fmt.Sprintf("block at position %d carries index %d", i, b.index)}
		}
	}
	if err := verifyChain(blocks); err != nil {
		return nil, err
	}
	for _, b := range blocks {
		l.chain = append(l.chain, b.clone())
	}
	logger.Infof("Ledger restored with %d blocks", len(l.chain))
	return l, nil
}

// QueueTransaction menambahkan tx ke pending pool dan mengembalikan index blok berikutnya.
// Nilai kembalian hanya petunjuk: AppendBlock dari pemanggil lain bisa menyegel tx lebih dulu.
func (l *Ledger) QueueTransaction(tx Transaction) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queueLocked(tx)
}

func (l *Ledger) queueLocked(tx Transaction) (uint64, error) {
	if err := l.pending.AddTransaction(tx); err != nil {
		logger.Warningf("Rejected transaction %s: %v", tx, err)
		return 0, err
	}
	next := l.lastBlockLocked().index + 1

	m := metrics.GetMetrics()
	m.IncrementTransactionCount()
	m.SetTransactionPoolSize(uint32(l.pending.Size()))
	logger.LogTransactionEvent(tx.sender, tx.recipient, CanonicalAmount(tx.amount), next)
	return next, nil
}

// AppendBlock menyegel seluruh pending pool ke blok baru dan menambahkannya ke chain.
// prev_hash adalah prevHashOverride jika tidak nil, selain itu digest blok terakhir.
// Pengambilan pool dan penambahan blok terjadi dalam satu critical section.
func (l *Ledger) AppendBlock(proof uint64, prevHashOverride *Digest) Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(proof, prevHashOverride, nil)
}

// QueueAndAppend adalah operasi atomik queue-then-mine: tx dijamin masuk ke blok yang dikembalikan.
// Tidak seperti QueueTransaction, batas ukuran pool tidak berlaku karena tx langsung disegel.
func (l *Ledger) QueueAndAppend(tx Transaction, proof uint64, prevHashOverride *Digest) Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(proof, prevHashOverride, []Transaction{tx})
}

func (l *Ledger) appendLocked(proof uint64, prevHashOverride *Digest, extra []Transaction) Block {
	last := l.lastBlockLocked()
	prevHash := HashBlock(last)
	if prevHashOverride != nil {
		prevHash = *prevHashOverride
	}

	txs := l.pending.Drain()
	txs = append(txs, extra...)
	block := Block{
		index:        uint64(len(l.chain)),
		proof:        proof,
		prevHash:     prevHash,
		timestamp:    now(),
		transactions: txs,
	}
	l.chain = append(l.chain, block)
	l.archiveLocked(block)

	m := metrics.GetMetrics()
	m.IncrementBlockCount()
	// extra tidak lewat queueLocked, jadi dihitung di sini
	for range extra {
		m.IncrementTransactionCount()
	}
	m.SetTransactionPoolSize(uint32(l.pending.Size()))
	logger.LogBlockEvent(block.index, HashBlock(block).Hex(), len(block.transactions), block.proof)
	return block.clone()
}

// archiveLocked menulis blok ke arsip. Kegagalan hanya dicatat: chain di memori tetap otoritatif.
func (l *Ledger) archiveLocked(block Block) {
	if l.archive == nil {
		return
	}
	if err := l.archive.ArchiveBlock(block); err != nil {
		logger.Errorf("Failed to archive block %d: %v", block.index, err)
	}
}

// MineResult adalah hasil Mine yang dikembalikan ke lapisan HTTP.
type MineResult struct {
	Proof       uint64
	Index       uint64
	Transaction Transaction
	Block       Block
}

// ToMap menghasilkan mapping datar berkunci string: proof, index, transaction (JSON).
func (r MineResult) ToMap() (map[string]string, error) {
	txJSON, err := json.Marshal(r.Transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize reward transaction: %w", err)
	}
	return map[string]string{
		"proof":       strconv.FormatUint(r.Proof, 10),
		"index":       strconv.FormatUint(r.Index, 10),
		"transaction": string(txJSON),
	}, nil
}

// Mine menjalankan oracle tanpa memegang lock, lalu dalam satu critical section
// menyegel pending pool beserta reward ke blok baru.
// Jika chain bergerak selama pencarian dan proof tidak lagi valid terhadap proof terakhir
// yang baru, pencarian diulang.
func (l *Ledger) Mine(ctx context.Context, engine interfaces.Engine, reward Transaction) (MineResult, error) {
	lastProof := l.LastBlock().proof
	for {
		proof, err := engine.FindProofContext(ctx, lastProof)
		if err != nil {
			return MineResult{}, fmt.Errorf("proof search from last proof %d: %w", lastProof, err)
		}

		l.mu.Lock()
		current := l.lastBlockLocked().proof
		if current != lastProof && !engine.IsValid(current, proof) {
			l.mu.Unlock()
			metrics.GetMetrics().IncrementStaleProofs()
			logger.Debugf("Proof %d went stale (last proof moved %d -> %d), searching again", proof, lastProof, current)
			lastProof = current
			continue
		}
		block := l.appendLocked(proof, nil, []Transaction{reward})
		l.mu.Unlock()

		return MineResult{
			Proof:       proof,
			Index:       block.index,
			Transaction: reward,
			Block:       block,
		}, nil
	}
}

// Verify berjalan dari blok terakhir mundur sampai blok kedua dan memeriksa
// prev_hash setiap blok terhadap digest pendahulunya. Chain dengan 0 atau 1 blok selalu valid.
func (l *Ledger) Verify() bool {
	return l.CheckIntegrity() == nil
}

// CheckIntegrity sama dengan Verify tetapi mengembalikan *IntegrityError untuk ketidakcocokan pertama.
func (l *Ledger) CheckIntegrity() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := verifyChain(l.chain); err != nil {
		metrics.GetMetrics().IncrementIntegrityFailures()
		logger.Errorf("Chain verification failed: %v", err)
		return err
	}
	return nil
}

func verifyChain(chain []Block) error {
	v := NewValidator()
	for i := len(chain) - 1; i >= 1; i-- {
		if err := v.ValidateLink(chain[i-1], chain[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetBlocks mengembalikan salinan chain.
func (l *Ledger) GetBlocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.clone()
	}
	return out
}

// GetTransactions mengembalikan salinan pending pool.
func (l *Ledger) GetTransactions() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pending.GetPendingTransactions()
}

func (l *Ledger) LastBlock() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastBlockLocked().clone()
}

// lastBlockLocked panic pada chain kosong: invariant genesis menjamin itu tidak terjadi.
func (l *Ledger) lastBlockLocked() Block {
	if len(l.chain) == 0 {
		panic(ErrEmptyChain)
	}
	return l.chain[len(l.chain)-1]
}

func (l *Ledger) BlockByIndex(index uint64) (Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.chain)) {
		return Block{}, fmt.Errorf("%w: index %d, chain length %d", ErrBlockNotFound, index, len(l.chain))
	}
	return l.chain[index].clone(), nil
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

func (l *Ledger) PendingCount() int {
	return l.pending.Size()
}

func (b Block) clone() Block {
	b.transactions = cloneTransactions(b.transactions)
	return b
}
