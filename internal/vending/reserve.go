package vending

import (
	"fmt"
	"maps"
	"slices"
)

const (
	// MaxDenominationCount bounds the coins or notes held per denomination.
	MaxDenominationCount = 20
	// InitialDenominationCount is the default fill of a new reserve.
	InitialDenominationCount = 10
)

// denominations are face values in pence, largest first.
var denominations = []int{200, 100, 50, 20, 10, 5, 2, 1}

// Denominations returns the accepted face values, largest first.
func Denominations() []int {
	return slices.Clone(denominations)
}

func IsValidDenomination(d int) bool {
	return slices.Contains(denominations, d)
}

// Coins maps a denomination to a count. Depending on context the count is an
// absolute number of coins or a signed change to apply to a reserve.
type Coins map[int]int

// Value is the sum of denomination times count.
func (c Coins) Value() int {
	total := 0
	for d, n := range c {
		total += d * n
	}
	return total
}

// Negate flips the sign of every count.
func (c Coins) Negate() Coins {
	out := make(Coins, len(c))
	for d, n := range c {
		out[d] = -n
	}
	return out
}

// Reserve is the machine's dispensable coin stock plus a ledger of the coins
// customers inserted.
type Reserve struct {
	counts   map[int]int
	inserted map[int]int
}

// NewReserve fills every denomination with the same count.
func NewReserve(initialCount int) (*Reserve, error) {
	counts := make(Coins, len(denominations))
	for _, d := range denominations {
		counts[d] = initialCount
	}
	return NewReserveWithCounts(counts)
}

// NewReserveWithCounts builds a reserve from explicit counts. Denominations
// missing from counts start empty.
func NewReserveWithCounts(counts Coins) (*Reserve, error) {
	r := &Reserve{
		counts:   make(map[int]int, len(denominations)),
		inserted: make(map[int]int),
	}
	for _, d := range denominations {
		r.counts[d] = 0
	}
	if err := r.ApplyDelta(counts); err != nil {
		return nil, err
	}
	return r, nil
}

func ensureValidDenomination(d int) error {
	if !IsValidDenomination(d) {
		return fmt.Errorf("%w: %d is not a valid denomination", ErrInvalidDenomination, d)
	}
	return nil
}

// Insert records a customer coin in the inserted-money ledger. The dispensable
// counts and the balance are not touched.
func (r *Reserve) Insert(d int) error {
	if err := ensureValidDenomination(d); err != nil {
		return err
	}
	r.inserted[d]++
	return nil
}

// CalculateChange selects coins for amount greedily, largest denomination
// first, limited to what the reserve holds. The result is a delta: counts are
// negative because the coins leave the reserve. Nothing is mutated.
//
// Greedy selection can strand a residual when small denominations run out even
// though the total value would cover the amount; that case fails with
// ErrExactChangeUnavailable because the machine cannot dispense coins it does
// not hold.
func (r *Reserve) CalculateChange(amount int) (Coins, error) {
	if amount < 0 {
		return nil, invalid("amount", "must be a non-negative integer")
	}
	if total := r.TotalValue(); total < amount {
		return nil, fmt.Errorf("%w: need %dp, reserve holds %dp", ErrInsufficientReserve, amount, total)
	}

	change := Coins{}
	remaining := amount
	for _, d := range denominations {
		if remaining == 0 {
			break
		}
		n := min(remaining/d, r.counts[d])
		if n > 0 {
			remaining -= n * d
			change[d] = -n
		}
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: %dp could not be covered", ErrExactChangeUnavailable, remaining)
	}
	return change, nil
}

// ApplyDelta adds each signed count to its denomination. Every entry is
// validated before any is applied, so a failing batch leaves the reserve as it was.
func (r *Reserve) ApplyDelta(delta Coins) error {
	if err := r.checkDelta(delta); err != nil {
		return err
	}
	for d, n := range delta {
		r.counts[d] += n
	}
	return nil
}

func (r *Reserve) checkDelta(delta Coins) error {
	for _, d := range slices.Sorted(maps.Keys(delta)) {
		if err := ensureValidDenomination(d); err != nil {
			return err
		}
		next := r.counts[d] + delta[d]
		if next < 0 {
			return &ValidationError{
				Field:  "count",
				Reason: fmt.Sprintf("cannot update %d: resulting count would be negative", d),
			}
		}
		if next > MaxDenominationCount {
			return fmt.Errorf("%w: cannot update %d: %d exceeds maximum allowed count %d",
				ErrCapacity, d, next, MaxDenominationCount)
		}
	}
	return nil
}

// Reload changes a single denomination by a signed count.
func (r *Reserve) Reload(d, count int) error {
	return r.ApplyDelta(Coins{d: count})
}

func (r *Reserve) TotalValue() int {
	return Coins(r.counts).Value()
}

func (r *Reserve) Counts() Coins {
	return maps.Clone(Coins(r.counts))
}

func (r *Reserve) Inserted() Coins {
	return maps.Clone(Coins(r.inserted))
}
