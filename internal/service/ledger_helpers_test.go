package service

import (
	"context"
	"testing"

	"qr-payment-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testDifficulty keeps sealing fast while still exercising the search loop.
const testDifficulty uint8 = 4

func testPayment(ref string) domain.Payment {
	return domain.Payment{
		SenderID:    "A",
		ReceiverID:  "B",
		Amount:      50000,
		Currency:    "INR",
		ReferenceID: ref,
	}
}

func newTestMiner() *PoWMiner {
	return NewPoWMiner(NewSHA256Hasher(), 2, zerolog.Nop())
}

// newTestChain returns a memory-only chain holding a freshly sealed genesis block.
func newTestChain(t *testing.T) (*Chain, *PoWMiner) {
	t.Helper()
	miner := newTestMiner()
	chain, err := NewChain(NewSHA256Hasher(), nil, testDifficulty, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, chain.Bootstrap(context.Background(), miner))
	return chain, miner
}

// sealNext builds and seals a block carrying payment on top of the current tail.
func sealNext(t *testing.T, c *Chain, m *PoWMiner, p domain.Payment) domain.Block {
	t.Helper()
	tail := c.Tail()
	b, err := domain.NewBlock(tail.Index+1, tail.Hash, p)
	require.NoError(t, err)
	sealed, err := m.Seal(context.Background(), b, c.Difficulty())
	require.NoError(t, err)
	return sealed
}
