package core

import (
	"encoding/json"
	"fmt"
	"time"

	"hashledger/crypto"
)

// Digest dari blok sebelumnya; alias agar pemanggil tidak perlu mengimpor crypto.
type Digest = crypto.Digest

// clock adalah sumber waktu blok. Diganti di test untuk mensimulasikan jam rusak.
var clock = time.Now

// Block adalah nilai immutable dalam chain. Semua field tidak diekspor;
// getter mengembalikan salinan sehingga pemanggil tidak bisa mengubah isi ledger.
type Block struct {
	index        uint64
	proof        uint64
	prevHash     Digest
	timestamp    time.Time
	transactions []Transaction
}

// Timestamp dalam bentuk wire: detik + nanodetik sejak epoch Unix.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// blockJSON menjaga urutan field wire: index, proof, prev_hash, timestamp, transactions.
type blockJSON struct {
	Index        uint64        `json:"index"`
	Proof        uint64        `json:"proof"`
	PrevHash     uint64        `json:"prev_hash"`
	Timestamp    Timestamp     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

// NewBlock membuat blok baru dan mencatat waktu pembuatannya.
// Slice transaksi disalin. Timestamp hanya informasi: tidak ikut di-hash dan tidak dipakai untuk urutan.
func NewBlock(index, proof uint64, prevHash Digest, transactions []Transaction) Block {
	return Block{
		index:        index,
		proof:        proof,
		prevHash:     prevHash,
		timestamp:    now(),
		transactions: cloneTransactions(transactions),
	}
}

// now membaca jam host. Waktu sebelum epoch berarti host rusak: panic, bukan error.
func now() time.Time {
	t := clock()
	if t.Before(time.Unix(0, 0)) {
		panic(fmt.Errorf("%w: %s", ErrClockFault, t.Format(time.RFC3339Nano)))
	}
	return t
}

func cloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}

func (b Block) GetIndex() uint64        { return b.index }
func (b Block) GetProof() uint64        { return b.proof }
func (b Block) GetPrevHash() Digest     { return b.prevHash }
func (b Block) GetTimestamp() time.Time { return b.timestamp }

func (b Block) GetTransactions() []Transaction {
	return cloneTransactions(b.transactions)
}

// CalculateHash menghitung digest blok ini dengan HashBlock.
func (b Block) CalculateHash() Digest {
	return HashBlock(b)
}

// HashBlock adalah Hasher ledger: fungsi murni atas index, proof, prev_hash, lalu daftar transaksi
// (jumlah, kemudian tiap transaksi berurutan). Timestamp tidak ikut di-hash.
func HashBlock(b Block) Digest {
	h := crypto.NewHasher()
	h.WriteUint64(b.index)
	h.WriteUint64(b.proof)
	h.WriteUint64(uint64(b.prevHash))
	h.WriteUint64(uint64(len(b.transactions)))
	for _, tx := range b.transactions {
		tx.HashInto(h)
	}
	return h.Sum()
}

func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockJSON{
		Index:    b.index,
		Proof:    b.proof,
		PrevHash: uint64(b.prevHash),
		Timestamp: Timestamp{
			Seconds: b.timestamp.Unix(),
			Nanos:   int32(b.timestamp.Nanosecond()),
		},
		Transactions: b.transactions,
	})
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Transactions == nil {
		raw.Transactions = []Transaction{}
	}
	*b = Block{
		index:        raw.Index,
		proof:        raw.Proof,
		prevHash:     Digest(raw.PrevHash),
		timestamp:    time.Unix(raw.Timestamp.Seconds, int64(raw.Timestamp.Nanos)),
		transactions: raw.Transactions,
	}
	return nil
}

// ToJSON serializes the block to JSON.
func (b Block) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}

// BlockFromJSON deserializes a block from JSON.
func BlockFromJSON(data []byte) (Block, error) {
	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return Block{}, err
	}
	return block, nil
}
