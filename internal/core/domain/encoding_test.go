package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBlock() Block {
	return Block{
		Index:        1,
		Timestamp:    NormalizeTime(time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC)),
		Difficulty:   2,
		PreviousHash: Digest{0xab, 0xcd},
		Nonce:        42,
		Payment: Payment{
			SenderID:    "A",
			ReceiverID:  "B",
			Amount:      50000,
			Currency:    "INR",
			ReferenceID: "R1",
		},
		Hash: Digest{0x00, 0x01, 0x02},
	}
}

func TestCanonicalEncode_Deterministic(t *testing.T) {
	b := sampleBlock()

	first, err := CanonicalEncode(b)
	require.NoError(t, err)
	second, err := CanonicalEncode(b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, EncodingVersion, first[0])
}

func TestCanonicalEncode_IgnoresHash(t *testing.T) {
	a := sampleBlock()
	b := sampleBlock()
	b.Hash = Digest{0xff}

	encA, err := CanonicalEncode(a)
	require.NoError(t, err)
	encB, err := CanonicalEncode(b)
	require.NoError(t, err)
	assert.Equal(t, encA, encB)
}

func TestCanonicalEncode_FieldBoundaries(t *testing.T) {
	// "12"+"3" and "1"+"23" must not encode the same.
	a := sampleBlock()
	a.Payment.SenderID = "12"
	a.Payment.ReceiverID = "3"
	b := sampleBlock()
	b.Payment.SenderID = "1"
	b.Payment.ReceiverID = "23"

	encA, err := CanonicalEncode(a)
	require.NoError(t, err)
	encB, err := CanonicalEncode(b)
	require.NoError(t, err)
	assert.NotEqual(t, encA, encB)
}

func TestCanonicalEncode_EveryFieldMatters(t *testing.T) {
	base, err := CanonicalEncode(sampleBlock())
	require.NoError(t, err)

	mutations := map[string]func(*Block){
		"index":      func(b *Block) { b.Index++ },
		"timestamp":  func(b *Block) { b.Timestamp = b.Timestamp.Add(time.Nanosecond) },
		"difficulty": func(b *Block) { b.Difficulty++ },
		"previous":   func(b *Block) { b.PreviousHash[31] ^= 1 },
		"nonce":      func(b *Block) { b.Nonce++ },
		"sender":     func(b *Block) { b.Payment.SenderID = "C" },
		"receiver":   func(b *Block) { b.Payment.ReceiverID = "C" },
		"amount":     func(b *Block) { b.Payment.Amount++ },
		"currency":   func(b *Block) { b.Payment.Currency = "USD" },
		"reference":  func(b *Block) { b.Payment.ReferenceID = "R2" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			b := sampleBlock()
			mutate(&b)
			enc, err := CanonicalEncode(b)
			require.NoError(t, err)
			assert.NotEqual(t, base, enc)
		})
	}
}

func TestCanonicalEncode_NegativeAmount(t *testing.T) {
	b := sampleBlock()
	b.Payment.Amount = -1

	_, err := CanonicalEncode(b)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestCanonicalEncode_BadCurrencyWidth(t *testing.T) {
	b := sampleBlock()
	b.Payment.Currency = "RUPEE"

	_, err := CanonicalEncode(b)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestEncodeSealed_RoundTrip(t *testing.T) {
	b := sampleBlock()

	data, err := EncodeSealed(b)
	require.NoError(t, err)

	decoded, err := DecodeSealed(data)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
}

func TestDecodeSealed_Rejects(t *testing.T) {
	data, err := EncodeSealed(sampleBlock())
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeSealed(data[:len(data)-1])
		assert.Error(t, err)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := DecodeSealed(append(append([]byte{}, data...), 0x00))
		assert.Error(t, err)
	})

	t.Run("unknown version", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[0] = 99
		_, err := DecodeSealed(bad)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DecodeSealed(nil)
		assert.Error(t, err)
	})
}

func TestCanonicalEncode_NonceOffset(t *testing.T) {
	b := sampleBlock()
	b.Nonce = 0x0102030405060708

	enc, err := CanonicalEncode(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, enc[NonceOffset:NonceOffset+8])
}
