package service

import (
	"encoding/hex"
	"testing"

	"qr-payment-ledger/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256Hasher_KnownVector(t *testing.T) {
	h := NewSHA256Hasher()

	sum := h.Sum([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(sum[:]))
}

func TestSHA256Hasher_Deterministic(t *testing.T) {
	h := NewSHA256Hasher()
	assert.Equal(t, h.Sum([]byte("payload")), h.Sum([]byte("payload")))
	assert.NotEqual(t, h.Sum([]byte("payload")), h.Sum([]byte("payloae")))
}

func TestHashBlock(t *testing.T) {
	h := NewSHA256Hasher()
	b, err := domain.NewBlock(1, domain.Digest{0x01}, testPayment("R1"))
	require.NoError(t, err)

	enc, err := domain.CanonicalEncode(b)
	require.NoError(t, err)

	got, err := HashBlock(h, b)
	require.NoError(t, err)
	assert.Equal(t, h.Sum(enc), got)

	b.Payment.Amount = -1
	_, err = HashBlock(h, b)
	assert.Error(t, err)
}
