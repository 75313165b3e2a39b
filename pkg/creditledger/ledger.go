package creditledger

// Bucket tracks credits of a single origin. Both counters stay non-negative.
type Bucket struct {
	Available int
	Used      int
}

// BucketKind identifies which bucket an operation targets.
type BucketKind string

const (
	BucketTrial     BucketKind = "trial"
	BucketPurchased BucketKind = "purchased"
)

// Ledger is the two-bucket credit record for an account. Values are immutable;
// all operations return a new Ledger.
type Ledger struct {
	Trial     Bucket
	Purchased Bucket
}

// New creates a ledger from raw bucket counters.
// Returns ErrInvalidAmount if any counter is negative.
func New(trialAvailable, trialUsed, purchasedAvailable, purchasedUsed int) (Ledger, error) {
	if trialAvailable < 0 || trialUsed < 0 || purchasedAvailable < 0 || purchasedUsed < 0 {
		return Ledger{}, ErrInvalidAmount
	}
	return Ledger{
		Trial:     Bucket{Available: trialAvailable, Used: trialUsed},
		Purchased: Bucket{Available: purchasedAvailable, Used: purchasedUsed},
	}, nil
}

// Total returns the lifetime credit capacity of the ledger. It is invariant
// under consume/refund and only grows through Grant.
func (l Ledger) Total() int {
	return l.Trial.Available + l.Trial.Used + l.Purchased.Available + l.Purchased.Used
}

// Available returns the number of credits that can still be consumed.
func (l Ledger) Available() int {
	return l.Trial.Available + l.Purchased.Available
}

// TotalUsed returns the number of credits consumed so far.
func (l Ledger) TotalUsed() int {
	return l.Trial.Used + l.Purchased.Used
}

// PercentAvailable returns the available share as a rounded percentage.
// Returns 0 for an empty ledger.
func (l Ledger) PercentAvailable() int {
	total := l.Total()
	if total == 0 {
		return 0
	}
	return (l.Available()*100 + total/2) / total
}

// ConsumeResult describes the outcome of a consume operation, including how
// the consumed amount was split across buckets.
type ConsumeResult struct {
	Ledger        Ledger
	FromTrial     int
	FromPurchased int
}

// ConsumeSaturating moves up to amount credits from available to used,
// draining the trial bucket before touching purchased credits. If amount
// exceeds Available the operation consumes everything and stops; it never
// fails. Negative amounts are treated as zero.
//
// Callers that need strict all-or-nothing semantics must check Available
// first; the consumption policy layer does exactly that.
func (l Ledger) ConsumeSaturating(amount int) ConsumeResult {
	if amount < 0 {
		amount = 0
	}

	fromTrial := min(amount, l.Trial.Available)
	fromPurchased := min(amount-fromTrial, l.Purchased.Available)

	l.Trial.Available -= fromTrial
	l.Trial.Used += fromTrial
	l.Purchased.Available -= fromPurchased
	l.Purchased.Used += fromPurchased

	return ConsumeResult{
		Ledger:        l,
		FromTrial:     fromTrial,
		FromPurchased: fromPurchased,
	}
}

// RefundSaturating moves up to amount credits from used back to available,
// restoring purchased credits before trial credits (the reverse of the
// consumption priority). Any excess beyond TotalUsed is discarded silently so
// a refund can never inflate Available beyond Total. Negative amounts are
// treated as zero.
func (l Ledger) RefundSaturating(amount int) Ledger {
	if amount < 0 {
		amount = 0
	}

	toPurchased := min(amount, l.Purchased.Used)
	toTrial := min(amount-toPurchased, l.Trial.Used)

	l.Purchased.Used -= toPurchased
	l.Purchased.Available += toPurchased
	l.Trial.Used -= toTrial
	l.Trial.Available += toTrial

	return l
}

// Grant adds capacity to the given bucket. The only operation that grows
// Total. Returns ErrInvalidAmount for negative amounts.
func (l Ledger) Grant(bucket BucketKind, amount int) (Ledger, error) {
	if amount < 0 {
		return Ledger{}, ErrInvalidAmount
	}
	switch bucket {
	case BucketTrial:
		l.Trial.Available += amount
	case BucketPurchased:
		l.Purchased.Available += amount
	default:
		return Ledger{}, ErrUnknownBucket
	}
	return l, nil
}
