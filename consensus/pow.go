package consensus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"hashledger/crypto"
	"hashledger/metrics"
)

// Anchor menentukan di mana deretan digit harus muncul dalam digest desimal.
type Anchor string

const (
	AnchorSuffix Anchor = "suffix"
	AnchorPrefix Anchor = "prefix"
)

// DefaultCheckInterval adalah jumlah kandidat di antara pemeriksaan ctx.Done().
const DefaultCheckInterval = 100000

// Difficulty adalah parameter tunable untuk predikat proof-of-work:
// digest desimal harus diawali atau diakhiri Run kali digit Digit.
type Difficulty struct {
	Digit  byte
	Run    int
	Anchor Anchor
}

// DefaultDifficulty: empat digit '0' di akhir digest desimal.
var DefaultDifficulty = Difficulty{Digit: '0', Run: 4, Anchor: AnchorSuffix}

var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrSearchExhausted   = errors.New("proof search exhausted the uint64 space")
)

// maxDigits adalah panjang desimal math.MaxUint64 (18446744073709551615).
const maxDigits = 20

func (d Difficulty) Validate() error {
	if d.Digit < '0' || d.Digit > '9' {
		return fmt.Errorf("%w: digit %q is not a decimal digit", ErrInvalidDifficulty, d.Digit)
	}
	if d.Anchor != AnchorSuffix && d.Anchor != AnchorPrefix {
		return fmt.Errorf("%w: unknown anchor %q", ErrInvalidDifficulty, d.Anchor)
	}
	if d.Run < 0 || d.Run > d.maxRun() {
		return fmt.Errorf("%w: run %d of %q outside [0, %d] for %s", ErrInvalidDifficulty, d.Run, d.Digit, d.maxRun(), d.Anchor)
	}
	return nil
}

// maxRun adalah run terpanjang yang masih bisa muncul pada digest uint64.
func (d Difficulty) maxRun() int {
	switch {
	case d.Anchor == AnchorPrefix && d.Digit == '0':
		// hanya digest bernilai nol yang diawali '0'
		return 0
	case d.Digit == '1':
		// 11111111111111111111 < MaxUint64
		return maxDigits
	default:
		// dua puluh digit '2'..'9' melewati MaxUint64; akhiran dua puluh '0' butuh 21 digit
		return maxDigits - 1
	}
}

// Pattern mengembalikan deretan digit yang dicari, misalnya "0000".
func (d Difficulty) Pattern() string {
	return strings.Repeat(string(d.Digit), d.Run)
}

func (d Difficulty) String() string {
	return fmt.Sprintf("%s %q", d.Anchor, d.Pattern())
}

// Predicate memeriksa representasi desimal dari sebuah digest.
type Predicate func(digest string) bool

func (d Difficulty) Predicate() Predicate {
	pattern := d.Pattern()
	if d.Anchor == AnchorPrefix {
		return func(digest string) bool { return strings.HasPrefix(digest, pattern) }
	}
	return func(digest string) bool { return strings.HasSuffix(digest, pattern) }
}

// ProofOfWork adalah oracle proof-of-work: pencarian linear dari 0 sampai predikat terpenuhi.
// Oracle tidak menyimpan state ledger dan aman dipakai dari banyak goroutine.
type ProofOfWork struct {
	difficulty    Difficulty
	predicate     Predicate
	checkInterval uint64
}

type Option func(*ProofOfWork)

// WithCheckInterval mengatur seberapa sering FindProofContext memeriksa pembatalan.
func WithCheckInterval(n uint64) Option {
	return func(pow *ProofOfWork) {
		if n > 0 {
			pow.checkInterval = n
		}
	}
}

// WithPredicate mengganti predikat difficulty, dipakai di test.
func WithPredicate(p Predicate) Option {
	return func(pow *ProofOfWork) {
		pow.predicate = p
	}
}

// NewProofOfWork creates a new PoW oracle for the given difficulty.
func NewProofOfWork(difficulty Difficulty, opts ...Option) (*ProofOfWork, error) {
	if err := difficulty.Validate(); err != nil {
		return nil, err
	}
	pow := &ProofOfWork{
		difficulty:    difficulty,
		predicate:     difficulty.Predicate(),
		checkInterval: DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(pow)
	}
	return pow, nil
}

func (pow *ProofOfWork) Difficulty() Difficulty {
	return pow.difficulty
}

// IsValid menggabungkan kedua proof dalam urutan (prev, candidate) sebagai string desimal,
// meng-hash hasilnya, lalu menerapkan predikat pada representasi desimal digest.
func (pow *ProofOfWork) IsValid(lastProof, candidate uint64) bool {
	var buf [40]byte
	guess := strconv.AppendUint(buf[:0], lastProof, 10)
	guess = strconv.AppendUint(guess, candidate, 10)
	digest := crypto.Sum64String(string(guess))
	return pow.predicate(digest.String())
}

// FindProof performs an unbounded linear search starting at 0.
// Predikat yang tidak mungkin dipenuhi membuat pencarian berjalan selamanya.
func (pow *ProofOfWork) FindProof(lastProof uint64) uint64 {
	for {
		proof, err := pow.FindProofContext(context.Background(), lastProof)
		if err == nil {
			return proof
		}
	}
}

// FindProofContext sama seperti FindProof tetapi memeriksa ctx setiap checkInterval kandidat.
func (pow *ProofOfWork) FindProofContext(ctx context.Context, lastProof uint64) (uint64, error) {
	var attempts uint64
	defer func() {
		metrics.GetMetrics().AddProofAttempts(attempts)
	}()

	for candidate := uint64(0); ; candidate++ {
		attempts++
		if pow.IsValid(lastProof, candidate) {
			metrics.GetMetrics().IncrementProofsFound()
			return candidate, nil
		}
		if attempts%pow.checkInterval == 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
		}
		if candidate == math.MaxUint64 {
			return 0, ErrSearchExhausted
		}
	}
}

// ParseDifficulty membangun Difficulty dari nilai konfigurasi berbentuk string.
func ParseDifficulty(digit string, run int, anchor string) (Difficulty, error) {
	if len(digit) != 1 {
		return Difficulty{}, fmt.Errorf("%w: digit must be a single character, got %q", ErrInvalidDifficulty, digit)
	}
	d := Difficulty{
		Digit:  digit[0],
		Run:    run,
		Anchor: Anchor(strings.ToLower(strings.TrimSpace(anchor))),
	}
	if err := d.Validate(); err != nil {
		return Difficulty{}, err
	}
	return d, nil
}
