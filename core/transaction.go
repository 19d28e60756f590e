package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"hashledger/crypto"
)

// Transaction adalah nilai immutable {sender, recipient, amount}.
// Field tidak diekspor; dua Transaction sama jika semua field-nya sama.
type Transaction struct {
	sender    string
	recipient string
	amount    float64
}

// transactionJSON adalah bentuk wire dari Transaction.
// Pointer dipakai agar field yang hilang bisa dibedakan dari nilai nol.
// Amount berupa angka JSON, kecuali NaN dan ±Inf yang ditulis sebagai string kanonik
// ("NaN", "+Inf", "-Inf") karena tidak punya bentuk angka JSON.
type transactionJSON struct {
	Sender    *string         `json:"sender"`
	Recipient *string         `json:"recipient"`
	Amount    json.RawMessage `json:"amount"`
}

// NewTransaction membuat transaksi baru. Jumlah negatif atau nol tetap diterima.
func NewTransaction(sender, recipient string, amount float64) Transaction {
	return Transaction{sender: sender, recipient: recipient, amount: amount}
}

func (tx Transaction) GetSender() string    { return tx.sender }
func (tx Transaction) GetRecipient() string { return tx.recipient }
func (tx Transaction) GetAmount() float64   { return tx.amount }

// Equal membandingkan secara struktural, termasuk representasi amount yang sudah dikanonikalisasi.
func (tx Transaction) Equal(other Transaction) bool {
	return tx.sender == other.sender &&
		tx.recipient == other.recipient &&
		CanonicalAmount(tx.amount) == CanonicalAmount(other.amount)
}

// CanonicalAmount mengubah float ke string desimal terpendek yang round-trip.
// Bit pattern float tidak pernah di-hash langsung.
func CanonicalAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// HashInto menulis kontribusi transaksi (sender, recipient, amount kanonik) ke hasher.
func (tx Transaction) HashInto(h *crypto.Hasher) {
	h.WriteString(tx.sender)
	h.WriteString(tx.recipient)
	h.WriteString(CanonicalAmount(tx.amount))
}

func (tx Transaction) Hash() crypto.Digest {
	h := crypto.NewHasher()
	tx.HashInto(h)
	return h.Sum()
}

func (tx Transaction) String() string {
	return fmt.Sprintf("%s -> %s (%s)", tx.sender, tx.recipient, CanonicalAmount(tx.amount))
}

func isFinite(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

func encodeAmount(amount float64) ([]byte, error) {
	if isFinite(amount) {
		return json.Marshal(amount)
	}
	return json.Marshal(CanonicalAmount(amount))
}

// decodeAmount menerima angka JSON, atau string hanya untuk nilai non-finite.
func decodeAmount(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		amount, err := strconv.ParseFloat(s, 64)
		if err != nil || isFinite(amount) {
			return 0, fmt.Errorf("amount %q is not a number", s)
		}
		return amount, nil
	}
	var amount float64
	if err := json.Unmarshal(raw, &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (tx Transaction) MarshalJSON() ([]byte, error) {
	amount, err := encodeAmount(tx.amount)
	if err != nil {
		return nil, err
	}
	return json.Marshal(transactionJSON{
		Sender:    &tx.sender,
		Recipient: &tx.recipient,
		Amount:    amount,
	})
}

func (tx *Transaction) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("%w: transaction is null", ErrMalformedTransaction)
	}
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	switch {
	case raw.Sender == nil:
		return fmt.Errorf("%w: missing field \"sender\"", ErrMalformedTransaction)
	case raw.Recipient == nil:
		return fmt.Errorf("%w: missing field \"recipient\"", ErrMalformedTransaction)
	case raw.Amount == nil || bytes.Equal(raw.Amount, []byte("null")):
		return fmt.Errorf("%w: missing field \"amount\"", ErrMalformedTransaction)
	}
	amount, err := decodeAmount(raw.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	*tx = NewTransaction(*raw.Sender, *raw.Recipient, amount)
	return nil
}

func (tx Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(tx)
}
