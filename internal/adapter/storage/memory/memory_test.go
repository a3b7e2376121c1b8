package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qr-payment-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockStore_AppendInOrder(t *testing.T) {
	s := NewBlockStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, domain.Block{Index: 0}))
	require.NoError(t, s.Append(ctx, domain.Block{Index: 1}))

	err := s.Append(ctx, domain.Block{Index: 3})
	assert.True(t, errors.Is(err, domain.ErrIndexMismatch))

	blocks, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	// Callers get a copy.
	blocks[0].Nonce = 99
	again, _ := s.LoadAll(ctx)
	assert.Equal(t, uint64(0), again[0].Nonce)
}

func TestRedemptionStore_MarkOnce(t *testing.T) {
	s := NewRedemptionStore()
	ctx := context.Background()

	r := &domain.Redemption{ID: uuid.New(), ReferenceID: "R1", BlockIndex: 1}
	ok, err := s.MarkRedeemed(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkRedeemed(ctx, &domain.Redemption{ID: uuid.New(), ReferenceID: "R1"})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, "R1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)

	missing, err := s.Get(ctx, "R2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedemptionStore_ConcurrentMark(t *testing.T) {
	s := NewRedemptionStore()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.MarkRedeemed(context.Background(), &domain.Redemption{ID: uuid.New(), ReferenceID: "R1"})
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRateLimitStore_Allow(t *testing.T) {
	s := NewRateLimitStore()
	now := time.Unix(1708092000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := s.Allow(ctx, "terminal-1:redeem", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := s.Allow(ctx, "terminal-1:redeem", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Equal(t, (now.Unix()/60+1)*60, res.ResetAt)

	res, err = s.Allow(ctx, "terminal-2:redeem", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are independent")

	now = now.Add(time.Minute)
	res, err = s.Allow(ctx, "terminal-1:redeem", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "next window starts fresh")
	assert.Equal(t, int64(2), res.Remaining)
}
