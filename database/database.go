package database

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_errors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/multierr"

	"hashledger/core"
	"hashledger/logger"
)

// ErrHeadMismatch: key head tidak menunjuk ke blok terakhir yang terbaca.
var ErrHeadMismatch = errors.New("archive head does not match stored blocks")

var (
	blockPrefix = []byte("blk_")
	headKey     = []byte("head")
)

type Database interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Close() error
}

var _ Database = (*LevelDB)(nil)

type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB membuka (atau membuat) database di path. Database yang korup dicoba dipulihkan.
func NewLevelDB(path string) (*LevelDB, error) {
	opts := &opt.Options{
		Filter: filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		if ldb_errors.IsCorrupted(err) {
			logger.Warningf("Database at %s is corrupted, attempting recovery", path)
			db, err = leveldb.RecoverFile(path, nil)
		}
		if err != nil {
			return nil, err
		}
	}
	return &LevelDB{db: db}, nil
}

// Get mengembalikan nil, nil bila key tidak ada.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}

// BlockStore mengarsipkan blok ledger ke LevelDB.
// Key: "blk_" + index big-endian 8 byte (urutan iterasi = urutan index), value: JSON blok.
// Key "head" menyimpan index blok terakhir.
type BlockStore struct {
	*LevelDB
}

func NewBlockStore(path string) (*BlockStore, error) {
	ldb, err := NewLevelDB(path)
	if err != nil {
		return nil, fmt.Errorf("open block store %s: %w", path, err)
	}
	return &BlockStore{LevelDB: ldb}, nil
}

func EncodeUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func blockKey(index uint64) []byte {
	return append(append([]byte{}, blockPrefix...), EncodeUint64(index)...)
}

// ArchiveBlock menulis blok dan memperbarui head dalam satu batch.
func (s *BlockStore) ArchiveBlock(block core.Block) error {
	data, err := block.ToJSON()
	if err != nil {
		return fmt.Errorf("encode block %d: %w", block.GetIndex(), err)
	}
	batch := new(leveldb.Batch)
	batch.Put(blockKey(block.GetIndex()), data)
	batch.Put(headKey, EncodeUint64(block.GetIndex()))
	return s.db.Write(batch, nil)
}

// Head mengembalikan index blok terakhir yang diarsipkan. ok false jika arsip kosong.
func (s *BlockStore) Head() (index uint64, ok bool, err error) {
	data, err := s.Get(headKey)
	if err != nil || data == nil {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("head entry has %d bytes, want 8", len(data))
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// CheckHead memastikan head menunjuk ke blok ke-n (terakhir) dari hasil LoadBlocks.
func (s *BlockStore) CheckHead(n int) error {
	head, ok, err := s.Head()
	if err != nil {
		return fmt.Errorf("read archive head: %w", err)
	}
	switch {
	case n == 0 && !ok:
		return nil
	case !ok:
		return fmt.Errorf("%w: no head entry, %d blocks stored", ErrHeadMismatch, n)
	case head != uint64(n-1):
		return fmt.Errorf("%w: head %d, %d blocks stored", ErrHeadMismatch, head, n)
	}
	return nil
}

// LoadBlocks membaca seluruh arsip dalam urutan index.
// Semua entri yang gagal didekode dilaporkan sekaligus.
func (s *BlockStore) LoadBlocks() ([]core.Block, error) {
	iter := s.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()

	var (
		blocks []core.Block
		errs   error
	)
	for iter.Next() {
		b, err := core.BlockFromJSON(iter.Value())
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("decode %x: %w", iter.Key(), err))
			continue
		}
		blocks = append(blocks, b)
	}
	errs = multierr.Append(errs, iter.Error())
	if errs != nil {
		return nil, errs
	}
	return blocks, nil
}

// Reset menghapus seluruh arsip blok beserta head. Dipakai startnode --forcegenesis.
func (s *BlockStore) Reset() error {
	iter := s.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		// buffer key dipakai ulang oleh iterator
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return err
	}
	batch.Delete(headKey)
	return s.db.Write(batch, nil)
}
