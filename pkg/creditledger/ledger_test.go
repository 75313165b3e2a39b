package creditledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderaudio/guidekit/pkg/creditledger"
)

// baseLedger returns trial {2 available, 0 used} and purchased {195, 8},
// total 205.
func baseLedger(t *testing.T) creditledger.Ledger {
	t.Helper()
	l, err := creditledger.New(2, 0, 195, 8)
	require.NoError(t, err)
	return l
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid counters", func(t *testing.T) {
		t.Parallel()
		l, err := creditledger.New(2, 1, 10, 5)
		require.NoError(t, err)
		assert.Equal(t, 18, l.Total())
		assert.Equal(t, 12, l.Available())
		assert.Equal(t, 6, l.TotalUsed())
	})

	t.Run("rejects negative counters", func(t *testing.T) {
		t.Parallel()
		for _, args := range [][4]int{
			{-1, 0, 0, 0},
			{0, -1, 0, 0},
			{0, 0, -1, 0},
			{0, 0, 0, -1},
		} {
			_, err := creditledger.New(args[0], args[1], args[2], args[3])
			assert.ErrorIs(t, err, creditledger.ErrInvalidAmount)
		}
	})
}

func TestConsumeSaturating(t *testing.T) {
	t.Parallel()

	t.Run("single credit comes from trial first", func(t *testing.T) {
		t.Parallel()
		res := baseLedger(t).ConsumeSaturating(1)

		assert.Equal(t, creditledger.Bucket{Available: 1, Used: 1}, res.Ledger.Trial)
		assert.Equal(t, creditledger.Bucket{Available: 195, Used: 8}, res.Ledger.Purchased)
		assert.Equal(t, 1, res.FromTrial)
		assert.Equal(t, 0, res.FromPurchased)
		assert.Equal(t, 196, res.Ledger.Available())
	})

	t.Run("spills into purchased after trial drained", func(t *testing.T) {
		t.Parallel()
		res := baseLedger(t).ConsumeSaturating(5)

		assert.Equal(t, 2, res.FromTrial)
		assert.Equal(t, 3, res.FromPurchased)
		assert.Equal(t, creditledger.Bucket{Available: 0, Used: 2}, res.Ledger.Trial)
		assert.Equal(t, creditledger.Bucket{Available: 192, Used: 11}, res.Ledger.Purchased)
		assert.Equal(t, 13, res.Ledger.TotalUsed())
	})

	t.Run("saturates instead of failing when over-consuming", func(t *testing.T) {
		t.Parallel()
		res := baseLedger(t).ConsumeSaturating(210)

		assert.Equal(t, creditledger.Bucket{Available: 0, Used: 2}, res.Ledger.Trial)
		assert.Equal(t, creditledger.Bucket{Available: 0, Used: 203}, res.Ledger.Purchased)
		assert.Equal(t, 0, res.Ledger.Available())
		assert.Equal(t, 205, res.Ledger.Total())
	})

	t.Run("zero amount is a no-op", func(t *testing.T) {
		t.Parallel()
		l := baseLedger(t)
		res := l.ConsumeSaturating(0)
		assert.Equal(t, l, res.Ledger)
		assert.Zero(t, res.FromTrial)
		assert.Zero(t, res.FromPurchased)
	})

	t.Run("negative amount clamps to zero", func(t *testing.T) {
		t.Parallel()
		l := baseLedger(t)
		res := l.ConsumeSaturating(-7)
		assert.Equal(t, l, res.Ledger)
	})

	t.Run("available decreases by at most n", func(t *testing.T) {
		t.Parallel()
		l := baseLedger(t)
		for _, n := range []int{0, 1, 2, 3, 50, 197, 198, 1000} {
			res := l.ConsumeSaturating(n)
			assert.Equal(t, max(0, l.Available()-n), res.Ledger.Available(), "n=%d", n)
		}
	})
}

func TestRefundSaturating(t *testing.T) {
	t.Parallel()

	t.Run("restores purchased before trial", func(t *testing.T) {
		t.Parallel()
		// After consuming 5 from the base ledger: trial {0,2}, purchased {192,11}.
		consumed := baseLedger(t).ConsumeSaturating(5).Ledger

		refunded := consumed.RefundSaturating(3)
		assert.Equal(t, creditledger.Bucket{Available: 195, Used: 8}, refunded.Purchased)
		assert.Equal(t, creditledger.Bucket{Available: 0, Used: 2}, refunded.Trial)
	})

	t.Run("spills into trial after purchased restored", func(t *testing.T) {
		t.Parallel()
		consumed := baseLedger(t).ConsumeSaturating(5).Ledger

		refunded := consumed.RefundSaturating(12)
		assert.Equal(t, creditledger.Bucket{Available: 195, Used: 8}, refunded.Purchased)
		assert.Equal(t, creditledger.Bucket{Available: 1, Used: 1}, refunded.Trial)
	})

	t.Run("excess beyond total usage is discarded", func(t *testing.T) {
		t.Parallel()
		consumed := baseLedger(t).ConsumeSaturating(5).Ledger

		refunded := consumed.RefundSaturating(1000)
		assert.Equal(t, 205, refunded.Total())
		assert.Equal(t, 205, refunded.Available())
		assert.Zero(t, refunded.TotalUsed())
	})

	t.Run("negative amount is a no-op", func(t *testing.T) {
		t.Parallel()
		consumed := baseLedger(t).ConsumeSaturating(5).Ledger
		assert.Equal(t, consumed, consumed.RefundSaturating(-1))
	})
}

func TestConsumeRefundAsymmetry(t *testing.T) {
	t.Parallel()

	// Consume then refund of the same amount restores Available and Total but
	// not the per-bucket split: consumption drains trial first while the
	// refund lands on purchased first.
	l := baseLedger(t)
	roundTrip := l.ConsumeSaturating(1).Ledger.RefundSaturating(1)

	assert.Equal(t, l.Available(), roundTrip.Available())
	assert.Equal(t, l.Total(), roundTrip.Total())
	assert.NotEqual(t, l, roundTrip)
	assert.Equal(t, creditledger.Bucket{Available: 1, Used: 1}, roundTrip.Trial)
	assert.Equal(t, creditledger.Bucket{Available: 196, Used: 7}, roundTrip.Purchased)
}

func TestTotalInvariantUnderConsumeRefundSequences(t *testing.T) {
	t.Parallel()

	l := baseLedger(t)
	total := l.Total()

	steps := []struct {
		consume int
		refund  int
	}{
		{3, 0}, {0, 2}, {500, 0}, {0, 500}, {1, 1}, {0, 0}, {197, 42},
	}
	for _, s := range steps {
		l = l.ConsumeSaturating(s.consume).Ledger
		assert.Equal(t, total, l.Total())
		l = l.RefundSaturating(s.refund)
		assert.Equal(t, total, l.Total())
		assert.GreaterOrEqual(t, l.Trial.Available, 0)
		assert.GreaterOrEqual(t, l.Trial.Used, 0)
		assert.GreaterOrEqual(t, l.Purchased.Available, 0)
		assert.GreaterOrEqual(t, l.Purchased.Used, 0)
	}
}

func TestGrant(t *testing.T) {
	t.Parallel()

	t.Run("adds purchased capacity", func(t *testing.T) {
		t.Parallel()
		l := baseLedger(t)
		granted, err := l.Grant(creditledger.BucketPurchased, 20)
		require.NoError(t, err)
		assert.Equal(t, l.Total()+20, granted.Total())
		assert.Equal(t, 215, granted.Purchased.Available)
	})

	t.Run("adds trial capacity", func(t *testing.T) {
		t.Parallel()
		granted, err := baseLedger(t).Grant(creditledger.BucketTrial, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, granted.Trial.Available)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		t.Parallel()
		_, err := baseLedger(t).Grant(creditledger.BucketPurchased, -1)
		assert.ErrorIs(t, err, creditledger.ErrInvalidAmount)
	})

	t.Run("rejects unknown bucket", func(t *testing.T) {
		t.Parallel()
		_, err := baseLedger(t).Grant(creditledger.BucketKind("bonus"), 1)
		assert.ErrorIs(t, err, creditledger.ErrUnknownBucket)
	})
}

func TestPercentAvailable(t *testing.T) {
	t.Parallel()

	t.Run("empty ledger reports zero", func(t *testing.T) {
		t.Parallel()
		l, err := creditledger.New(0, 0, 0, 0)
		require.NoError(t, err)
		assert.Zero(t, l.PercentAvailable())
	})

	t.Run("rounds to nearest percent", func(t *testing.T) {
		t.Parallel()
		l, err := creditledger.New(1, 2, 0, 0) // 1 of 3 -> 33%
		require.NoError(t, err)
		assert.Equal(t, 33, l.PercentAvailable())

		l, err = creditledger.New(2, 1, 0, 0) // 2 of 3 -> 67%
		require.NoError(t, err)
		assert.Equal(t, 67, l.PercentAvailable())
	})

	t.Run("full ledger reports hundred", func(t *testing.T) {
		t.Parallel()
		l, err := creditledger.New(2, 0, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 100, l.PercentAvailable())
	})
}
