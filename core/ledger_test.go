package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"math"
	"sync/atomic"
	"testing"

	"hashledger/metrics"
)

func TestGenesisBlock(t *testing.T) {
	l := NewLedger()
	if l.Len() != 1 {
		t.Fatalf("new ledger has %d blocks, want 1", l.Len())
	}
	g := l.LastBlock()
	if g.GetIndex() != 0 || g.GetProof() != 100 || g.GetPrevHash() != 1 {
		t.Fatalf("genesis = index %d proof %d prev_hash %d", g.GetIndex(), g.GetProof(), g.GetPrevHash())
	}
	if len(g.GetTransactions()) != 0 {
		t.Fatal("genesis carries transactions")
	}
	if len(l.GetTransactions()) != 0 {
		t.Fatal("new ledger has pending transactions")
	}
	if !l.Verify() {
		t.Fatal("a fresh ledger must verify")
	}
}

func TestSubmitThenMineScenario(t *testing.T) {
	l := NewLedger()
	tx := NewTransaction("A", "B", 5.0)

	next, err := l.QueueTransaction(tx)
	if err != nil {
		t.Fatalf("QueueTransaction: %v", err)
	}
	if next != 1 {
		t.Fatalf("QueueTransaction returned %d, want 1", next)
	}

	genesisDigest := HashBlock(l.LastBlock())
	b := l.AppendBlock(42, nil)

	if b.GetIndex() != 1 || b.GetProof() != 42 {
		t.Fatalf("block index %d proof %d", b.GetIndex(), b.GetProof())
	}
	if b.GetPrevHash() != genesisDigest {
		t.Fatalf("prev_hash %d, want digest of genesis %d", b.GetPrevHash(), genesisDigest)
	}
	txs := b.GetTransactions()
	if len(txs) != 1 || txs[0] != tx {
		t.Fatalf("block transactions = %v", txs)
	}
	if len(l.GetTransactions()) != 0 {
		t.Fatal("pending pool not drained")
	}
	if !l.Verify() {
		t.Fatal("chain does not verify")
	}
}

func TestLinkageOverManyAppends(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 50; i++ {
		for j := 0; j < i%4; j++ {
			if _, err := l.QueueTransaction(NewTransaction(fmt.Sprint("s", i), fmt.Sprint("r", j), float64(i*j))); err != nil {
				t.Fatal(err)
			}
		}
		l.AppendBlock(uint64(i*7), nil)
	}

	blocks := l.GetBlocks()
	if len(blocks) != 51 {
		t.Fatalf("chain length %d, want 51", len(blocks))
	}
	for i, b := range blocks {
		if b.GetIndex() != uint64(i) {
			t.Fatalf("block at position %d has index %d", i, b.GetIndex())
		}
		if i > 0 && b.GetPrevHash() != HashBlock(blocks[i-1]) {
			t.Fatalf("block %d does not link to its predecessor", i)
		}
	}
	if !l.Verify() {
		t.Fatal("chain does not verify")
	}
}

func TestAppendBlockDrainsPoolInOrder(t *testing.T) {
	l := NewLedger()
	var want []Transaction
	for i := 0; i < 5; i++ {
		tx := NewTransaction("A", "B", float64(i))
		want = append(want, tx)
		if _, err := l.QueueTransaction(tx); err != nil {
			t.Fatal(err)
		}
	}
	b := l.AppendBlock(1, nil)
	got := b.GetTransactions()
	if len(got) != len(want) {
		t.Fatalf("sealed %d transactions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transaction %d = %v, want %v", i, got[i], want[i])
		}
	}
	if l.PendingCount() != 0 {
		t.Fatalf("pool still holds %d transactions", l.PendingCount())
	}

	empty := l.AppendBlock(2, nil)
	if len(empty.GetTransactions()) != 0 {
		t.Fatal("block mined from an empty pool should be empty")
	}
}

func TestAppendBlockPrevHashOverride(t *testing.T) {
	l := NewLedger()
	override := Digest(12345)
	b := l.AppendBlock(7, &override)
	if b.GetPrevHash() != override {
		t.Fatalf("prev_hash %d, want override %d", b.GetPrevHash(), override)
	}
	if l.Verify() {
		t.Fatal("a forged prev_hash must fail verification")
	}

	var ie *IntegrityError
	if err := l.CheckIntegrity(); !errors.As(err, &ie) || ie.Index != 1 {
		t.Fatalf("CheckIntegrity = %v, want IntegrityError at block 1", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	l := NewLedger()
	l.AppendBlock(1, nil)
	l.AppendBlock(2, nil)
	if !l.Verify() {
		t.Fatal("untouched chain does not verify")
	}

	l.chain[1].prevHash++
	if l.Verify() {
		t.Fatal("tampered chain still verifies")
	}
	err := l.CheckIntegrity()
	if !errors.Is(err, ErrChainIntegrity) {
		t.Fatalf("CheckIntegrity = %v, want ErrChainIntegrity", err)
	}
	// blok 2 masih menunjuk digest lama blok 1 yang kini berubah, jadi ketidakcocokan pertama dari ekor ada di 2
	var ie *IntegrityError
	if !errors.As(err, &ie) || ie.Index != 2 {
		t.Fatalf("first mismatch reported at %v, want block 2", err)
	}
}

func TestVerifyDetectsTransactionEdit(t *testing.T) {
	l := NewLedger()
	if _, err := l.QueueTransaction(NewTransaction("A", "B", 5)); err != nil {
		t.Fatal(err)
	}
	l.AppendBlock(1, nil)
	l.AppendBlock(2, nil)

	l.chain[1].transactions[0] = NewTransaction("A", "B", 500)
	if l.Verify() {
		t.Fatal("editing a sealed transaction must break verification")
	}
}

func TestGettersReturnCopies(t *testing.T) {
	l := NewLedger()
	if _, err := l.QueueTransaction(NewTransaction("A", "B", 5)); err != nil {
		t.Fatal(err)
	}
	pending := l.GetTransactions()
	pending[0] = NewTransaction("X", "Y", 1)
	if l.GetTransactions()[0] != NewTransaction("A", "B", 5) {
		t.Fatal("pending pool modified through GetTransactions")
	}

	l.AppendBlock(1, nil)
	blocks := l.GetBlocks()
	blocks[1].transactions[0] = NewTransaction("X", "Y", 1)
	blocks[0] = Block{}
	if !l.Verify() {
		t.Fatal("chain modified through GetBlocks")
	}
}

func TestQueueTransactionRespectsPoolLimit(t *testing.T) {
	l := NewLedger(WithMaxPending(2))
	for i := 0; i < 2; i++ {
		if _, err := l.QueueTransaction(NewTransaction("A", "B", float64(i))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.QueueTransaction(NewTransaction("A", "B", 3)); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("third transaction error = %v, want ErrPoolFull", err)
	}

	// QueueAndAppend menyegel langsung sehingga batas pool tidak berlaku
	b := l.QueueAndAppend(NewTransaction("C", "D", 9), 1, nil)
	if len(b.GetTransactions()) != 3 {
		t.Fatalf("block holds %d transactions, want 3", len(b.GetTransactions()))
	}
}

func TestQueueAndAppend(t *testing.T) {
	l := NewLedger()
	if _, err := l.QueueTransaction(NewTransaction("A", "B", 1)); err != nil {
		t.Fatal(err)
	}
	tx := NewTransaction("C", "D", 2)
	b := l.QueueAndAppend(tx, 99, nil)

	txs := b.GetTransactions()
	if len(txs) != 2 || txs[1] != tx {
		t.Fatalf("block transactions = %v, want the queued tx followed by %v", txs, tx)
	}
	if b.GetIndex() != 1 || b.GetProof() != 99 {
		t.Fatalf("block index %d proof %d", b.GetIndex(), b.GetProof())
	}
}

func TestSealedTransactionsAreCounted(t *testing.T) {
	m := metrics.GetMetrics()
	l := NewLedger()

	before := m.TransactionsQueued.Load()
	if _, err := l.QueueTransaction(NewTransaction("A", "B", 1)); err != nil {
		t.Fatal(err)
	}
	l.QueueAndAppend(NewTransaction("C", "D", 2), 7, nil)
	if _, err := l.Mine(context.Background(), &stubEngine{}, NewTransaction("0", "you", 1)); err != nil {
		t.Fatal(err)
	}
	if got := m.TransactionsQueued.Load() - before; got != 3 {
		t.Fatalf("transactionsQueued grew by %d, want 3", got)
	}
	if got := len(l.GetTransactions()); got != 3 {
		t.Fatalf("chain holds %d transactions, want 3", got)
	}
}

func TestNonFiniteAmountsStayArchivable(t *testing.T) {
	a := &recordingArchiver{}
	l := NewLedger(WithArchiver(a))
	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := l.QueueTransaction(NewTransaction("A", "B", amount)); err != nil {
			t.Fatal(err)
		}
	}
	b := l.AppendBlock(1, nil)

	data, err := b.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := BlockFromJSON(data)
	if err != nil {
		t.Fatalf("BlockFromJSON(%s): %v", data, err)
	}
	if HashBlock(decoded) != HashBlock(b) {
		t.Fatal("decoded block digest differs")
	}

	restored, err := RestoreLedger([]Block{GenesisBlock(), decoded})
	if err != nil {
		t.Fatalf("RestoreLedger: %v", err)
	}
	if !restored.Verify() || len(a.blocks) != 2 {
		t.Fatalf("verify %v, archived %d", restored.Verify(), len(a.blocks))
	}
}

func TestConcurrentQueueAndAppend(t *testing.T) {
	l := NewLedger()
	const (
		producers   = 8
		perProducer = 100
		appenders   = 4
		perAppender = 25
	)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				tx := NewTransaction(fmt.Sprint("p", p), fmt.Sprint("n", i), float64(i))
				if _, err := l.QueueTransaction(tx); err != nil {
					t.Error(err)
				}
			}
		}(p)
	}
	var proofs atomic.Uint64
	for a := 0; a < appenders; a++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perAppender; i++ {
				l.AppendBlock(proofs.Add(1), nil)
			}
		}()
	}
	wg.Wait()

	seen := make(map[Transaction]int)
	blocks := l.GetBlocks()
	for _, b := range blocks {
		for _, tx := range b.GetTransactions() {
			seen[tx]++
		}
	}
	for _, tx := range l.GetTransactions() {
		seen[tx]++
	}

	if len(seen) != producers*perProducer {
		t.Fatalf("found %d distinct transactions, want %d", len(seen), producers*perProducer)
	}
	for tx, n := range seen {
		if n != 1 {
			t.Fatalf("transaction %v appears %d times", tx, n)
		}
	}
	if len(blocks) != 1+appenders*perAppender {
		t.Fatalf("chain length %d, want %d", len(blocks), 1+appenders*perAppender)
	}
	if !l.Verify() {
		t.Fatal("chain built concurrently does not verify")
	}
}

// stubEngine mengembalikan proof berurutan dan membiarkan test menyisipkan aksi selama pencarian.
type stubEngine struct {
	calls    int
	onSearch func(call int)
	valid    func(lastProof, candidate uint64) bool
	err      error
}

func (s *stubEngine) FindProof(lastProof uint64) uint64 {
	p, _ := s.FindProofContext(context.Background(), lastProof)
	return p
}

func (s *stubEngine) FindProofContext(ctx context.Context, lastProof uint64) (uint64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if s.onSearch != nil {
		s.onSearch(s.calls)
	}
	return 1000 + uint64(s.calls), nil
}

func (s *stubEngine) IsValid(lastProof, candidate uint64) bool {
	if s.valid == nil {
		return true
	}
	return s.valid(lastProof, candidate)
}

func TestMineAppendsRewardLast(t *testing.T) {
	l := NewLedger()
	queued := NewTransaction("A", "B", 5)
	if _, err := l.QueueTransaction(queued); err != nil {
		t.Fatal(err)
	}
	reward := NewTransaction("0", "you", 1)

	res, err := l.Mine(context.Background(), &stubEngine{}, reward)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if res.Index != 1 || res.Proof != 1001 || res.Transaction != reward {
		t.Fatalf("result = %+v", res)
	}
	txs := res.Block.GetTransactions()
	if len(txs) != 2 || txs[0] != queued || txs[1] != reward {
		t.Fatalf("mined block transactions = %v", txs)
	}

	m, err := res.ToMap()
	if err != nil {
		t.Fatal(err)
	}
	if m["proof"] != "1001" || m["index"] != "1" || m["transaction"] != `{"sender":"0","recipient":"you","amount":1}` {
		t.Fatalf("ToMap = %v", m)
	}
}

func TestMineRetriesStaleProof(t *testing.T) {
	l := NewLedger()
	engine := &stubEngine{
		onSearch: func(call int) {
			if call == 1 {
				l.AppendBlock(555, nil)
			}
		},
		valid: func(lastProof, candidate uint64) bool { return false },
	}

	res, err := l.Mine(context.Background(), engine, NewTransaction("0", "you", 1))
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if engine.calls != 2 {
		t.Fatalf("oracle called %d times, want 2", engine.calls)
	}
	if res.Index != 2 || res.Proof != 1002 {
		t.Fatalf("result index %d proof %d, want 2 and 1002", res.Index, res.Proof)
	}
	if !l.Verify() {
		t.Fatal("chain does not verify after a stale retry")
	}
}

func TestMineKeepsProofStillValidAfterChainMoved(t *testing.T) {
	l := NewLedger()
	engine := &stubEngine{
		onSearch: func(call int) {
			if call == 1 {
				l.AppendBlock(555, nil)
			}
		},
	}
	res, err := l.Mine(context.Background(), engine, NewTransaction("0", "you", 1))
	if err != nil {
		t.Fatal(err)
	}
	if engine.calls != 1 || res.Index != 2 {
		t.Fatalf("calls %d index %d, want 1 and 2", engine.calls, res.Index)
	}
}

func TestMinePropagatesSearchError(t *testing.T) {
	l := NewLedger()
	_, err := l.Mine(context.Background(), &stubEngine{err: context.Canceled}, NewTransaction("0", "you", 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Mine error = %v, want context.Canceled", err)
	}
	if l.Len() != 1 {
		t.Fatal("a failed search must not append a block")
	}
}

func TestRestoreLedger(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 5; i++ {
		l.QueueAndAppend(NewTransaction("A", "B", float64(i)), uint64(i), nil)
	}

	restored, err := RestoreLedger(l.GetBlocks())
	if err != nil {
		t.Fatalf("RestoreLedger: %v", err)
	}
	if restored.Len() != 6 || !restored.Verify() {
		t.Fatalf("restored ledger len %d verify %v", restored.Len(), restored.Verify())
	}
	if HashBlock(restored.LastBlock()) != HashBlock(l.LastBlock()) {
		t.Fatal("restored tail differs")
	}

	next := restored.AppendBlock(77, nil)
	if next.GetIndex() != 6 || next.GetPrevHash() != HashBlock(l.LastBlock()) {
		t.Fatal("append after restore does not continue the chain")
	}
}

func TestRestoreLedgerRejectsBadChains(t *testing.T) {
	l := NewLedger()
	l.AppendBlock(1, nil)
	l.AppendBlock(2, nil)
	good := l.GetBlocks()

	tests := []struct {
		name   string
		blocks []Block
	}{
		{"empty", nil},
		{"bad genesis", append([]Block{NewBlock(0, 7, 1, nil)}, good[1:]...)},
		{"missing block", []Block{good[0], good[2]}},
		{"broken link", []Block{good[0], good[1], NewBlock(2, 2, 999, nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RestoreLedger(tt.blocks); err == nil {
				t.Fatal("RestoreLedger accepted an invalid chain")
			}
		})
	}
}

type recordingArchiver struct {
	blocks []Block
	fail   bool
}

func (r *recordingArchiver) ArchiveBlock(b Block) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.blocks = append(r.blocks, b)
	return nil
}

func TestArchiverReceivesEveryBlock(t *testing.T) {
	a := &recordingArchiver{}
	l := NewLedger(WithArchiver(a))
	l.AppendBlock(1, nil)
	l.AppendBlock(2, nil)
	if len(a.blocks) != 3 {
		t.Fatalf("archived %d blocks, want 3", len(a.blocks))
	}
	for i, b := range a.blocks {
		if b.GetIndex() != uint64(i) {
			t.Fatalf("archived block %d has index %d", i, b.GetIndex())
		}
	}

	// kegagalan arsip tidak menggagalkan append
	a.fail = true
	l.AppendBlock(3, nil)
	if l.Len() != 4 {
		t.Fatal("archive failure blocked the append")
	}
}

func TestBlockByIndex(t *testing.T) {
	l := NewLedger()
	l.AppendBlock(5, nil)
	b, err := l.BlockByIndex(1)
	if err != nil || b.GetProof() != 5 {
		t.Fatalf("BlockByIndex(1) = %v, %v", b.GetProof(), err)
	}
	if _, err := l.BlockByIndex(2); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("BlockByIndex(2) error = %v, want ErrBlockNotFound", err)
	}
}

func TestLastBlockOnEmptyChainPanics(t *testing.T) {
	l := newLedger()
	defer func() {
		if r := recover(); r != ErrEmptyChain {
			t.Fatalf("recovered %v, want ErrEmptyChain", r)
		}
	}()
	l.LastBlock()
}
