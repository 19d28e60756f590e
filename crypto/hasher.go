package crypto

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Digest adalah checksum 64-bit untuk linkage antar blok.
// Bukan hash kriptografis: hanya dipakai untuk mendeteksi perubahan, bukan untuk menahan pemalsuan.
type Digest uint64

func (d Digest) String() string {
	return strconv.FormatUint(uint64(d), 10)
}

// Hex mengembalikan representasi heksadesimal lebar tetap (16 karakter), dipakai di log.
func (d Digest) Hex() string {
	return fmt.Sprintf("%016x", uint64(d))
}

// Hasher mengumpulkan field secara berurutan ke dalam xxHash64.
// String ditulis dengan prefix panjang agar batas field tidak bisa bergeser.
type Hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func NewHasher() *Hasher {
	return &Hasher{d: xxhash.New()}
}

func (h *Hasher) WriteUint64(v uint64) {
	binary.BigEndian.PutUint64(h.buf[:], v)
	h.d.Write(h.buf[:])
}

func (h *Hasher) WriteString(s string) {
	h.WriteUint64(uint64(len(s)))
	h.d.WriteString(s)
}

func (h *Hasher) Sum() Digest {
	return Digest(h.d.Sum64())
}

// Sum64String meng-hash string mentah tanpa prefix panjang.
// Dipakai oleh predikat proof-of-work atas gabungan dua proof.
func Sum64String(s string) Digest {
	return Digest(xxhash.Sum64String(s))
}
