package domain

import (
	"fmt"
	"time"
)

// MaxDifficulty is the largest leading-zero-bit requirement a digest can satisfy.
const MaxDifficulty = DigestSize * 8

// BlockState is the lifecycle position of a block.
type BlockState string

const (
	BlockStateConstructed BlockState = "CONSTRUCTED"
	BlockStateSealed      BlockState = "SEALED"
	BlockStateAppended    BlockState = "APPENDED"
)

// Block is one hash-linked ledger entry holding a single payment intent.
// Hash covers every other field; see CanonicalEncode.
type Block struct {
	Index        uint64    `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	Difficulty   uint8     `json:"difficulty"`
	PreviousHash Digest    `json:"previous_hash"`
	Nonce        uint64    `json:"nonce"`
	Payment      Payment   `json:"payment"`
	Hash         Digest    `json:"hash"`
}

// NewBlock constructs an unsealed block that extends a tail with the given hash.
// Timestamp, nonce and hash are left for the miner.
func NewBlock(index uint64, previousHash Digest, payment Payment) (Block, error) {
	if err := payment.Validate(); err != nil {
		return Block{}, err
	}
	return Block{
		Index:        index,
		PreviousHash: previousHash,
		Payment:      payment,
	}, nil
}

// NewGenesisBlock constructs the unsealed block 0.
func NewGenesisBlock() Block {
	return Block{
		Index:        0,
		PreviousHash: ZeroDigest,
		Payment:      genesisPayment(),
	}
}

// IsGenesis reports whether b is block 0.
func (b Block) IsGenesis() bool {
	return b.Index == 0
}

// Sealed reports whether the miner has stamped a hash on the block.
func (b Block) Sealed() bool {
	return !b.Hash.IsZero()
}

// Extends reports whether b is positioned directly after tail.
func (b Block) Extends(tail Block) bool {
	return b.PreviousHash == tail.Hash && b.Index == tail.Index+1
}

// ValidateDifficulty checks a difficulty level is within the searchable range.
func ValidateDifficulty(difficulty int) error {
	if difficulty < 1 || difficulty > MaxDifficulty-1 {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidDifficulty, difficulty, MaxDifficulty-1)
	}
	return nil
}

// NormalizeTime strips monotonic readings and location so a timestamp
// survives an encode/decode round trip unchanged.
func NormalizeTime(t time.Time) time.Time {
	return time.Unix(0, t.UnixNano()).UTC()
}
