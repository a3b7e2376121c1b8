package service

import (
	"crypto/sha256"

	"qr-payment-ledger/internal/core/domain"
	"qr-payment-ledger/internal/core/ports"
)

// SHA256Hasher implements ports.Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA-256 block hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// Sum returns the SHA-256 digest of data.
func (h *SHA256Hasher) Sum(data []byte) domain.Digest {
	return sha256.Sum256(data)
}

// HashBlock re-derives the digest of a block from its canonical encoding.
func HashBlock(h ports.Hasher, b domain.Block) (domain.Digest, error) {
	enc, err := domain.CanonicalEncode(b)
	if err != nil {
		return domain.Digest{}, err
	}
	return h.Sum(enc), nil
}
