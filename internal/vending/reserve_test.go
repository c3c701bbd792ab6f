package vending

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestReserve(t *testing.T, counts Coins) *Reserve {
	t.Helper()
	r, err := NewReserveWithCounts(counts)
	require.NoError(t, err)
	return r
}

func TestDenominations(t *testing.T) {
	got := Denominations()
	require.Equal(t, []int{200, 100, 50, 20, 10, 5, 2, 1}, got)

	got[0] = 999
	require.Equal(t, 200, Denominations()[0])

	require.True(t, IsValidDenomination(50))
	require.False(t, IsValidDenomination(3))
	require.False(t, IsValidDenomination(0))
}

func TestNewReserve(t *testing.T) {
	r, err := NewReserve(InitialDenominationCount)
	require.NoError(t, err)
	for _, d := range Denominations() {
		require.Equal(t, InitialDenominationCount, r.Counts()[d])
	}
	require.Equal(t, 3880, r.TotalValue())

	_, err = NewReserve(MaxDenominationCount + 1)
	require.ErrorIs(t, err, ErrCapacity)

	_, err = NewReserve(-1)
	require.ErrorIs(t, err, ErrValidation)

	_, err = NewReserveWithCounts(Coins{3: 1})
	require.ErrorIs(t, err, ErrInvalidDenomination)
}

func TestReserve_Insert(t *testing.T) {
	r := newTestReserve(t, Coins{100: 1})

	require.NoError(t, r.Insert(100))
	require.NoError(t, r.Insert(100))
	require.NoError(t, r.Insert(2))
	require.ErrorIs(t, r.Insert(9999), ErrInvalidDenomination)

	require.Equal(t, Coins{100: 2, 2: 1}, r.Inserted())
	require.Equal(t, 1, r.Counts()[100], "inserted coins stay out of the dispensable reserve")
}

func TestReserve_CalculateChange(t *testing.T) {
	full := Coins{200: 10, 100: 10, 50: 10, 20: 10, 10: 10, 5: 10, 2: 10, 1: 10}

	tests := map[string]struct {
		counts  Coins
		amount  int
		want    Coins
		wantErr error
	}{
		"seventy":          {counts: full, amount: 70, want: Coins{50: -1, 20: -1}},
		"two hundred":      {counts: full, amount: 200, want: Coins{200: -1}},
		"eighty":           {counts: full, amount: 80, want: Coins{50: -1, 20: -1, 10: -1}},
		"zero":             {counts: full, amount: 0, want: Coins{}},
		"limited by stock": {counts: Coins{50: 1, 20: 5}, amount: 130, want: Coins{50: -1, 20: -4}},
		"over total value": {counts: Coins{1: 2}, amount: 3, wantErr: ErrInsufficientReserve},
		"negative amount":  {counts: full, amount: -1, wantErr: ErrValidation},
		"no small coins": {
			counts:  Coins{200: 10, 100: 10, 50: 10, 20: 10, 10: 10, 5: 10},
			amount:  3,
			wantErr: ErrExactChangeUnavailable,
		},
		"greedy strands residual": {
			counts:  Coins{50: 1, 20: 3},
			amount:  60,
			wantErr: ErrExactChangeUnavailable,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := newTestReserve(t, tt.counts)
			before := r.Counts()

			got, err := r.CalculateChange(tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, got)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
				require.Equal(t, -tt.amount, got.Value())
			}
			require.Equal(t, before, r.Counts(), "calculation must not mutate the reserve")
		})
	}
}

func TestReserve_ApplyDeltaIsAllOrNothing(t *testing.T) {
	tests := map[string]struct {
		delta   Coins
		wantErr error
	}{
		"unknown denomination": {delta: Coins{50: -1, 7: 1}, wantErr: ErrInvalidDenomination},
		"goes negative":        {delta: Coins{100: 1, 50: -3}, wantErr: ErrValidation},
		"over capacity":        {delta: Coins{50: -1, 20: MaxDenominationCount}, wantErr: ErrCapacity},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := newTestReserve(t, Coins{100: 2, 50: 2, 20: 2})
			before := r.Counts()

			require.ErrorIs(t, r.ApplyDelta(tt.delta), tt.wantErr)
			require.Equal(t, before, r.Counts())
		})
	}

	t.Run("valid batch applies every entry", func(t *testing.T) {
		r := newTestReserve(t, Coins{100: 2, 50: 2, 20: 2})
		require.NoError(t, r.ApplyDelta(Coins{100: -2, 50: 1, 1: 4}))

		counts := r.Counts()
		require.Equal(t, 0, counts[100])
		require.Equal(t, 3, counts[50])
		require.Equal(t, 4, counts[1])
	})
}

func TestReserve_ReloadBoundary(t *testing.T) {
	r := newTestReserve(t, Coins{20: MaxDenominationCount, 10: 5})

	require.ErrorIs(t, r.Reload(20, 1), ErrCapacity)
	require.NoError(t, r.Reload(10, 3))
	require.NoError(t, r.Reload(10, -3))
	require.Equal(t, 5, r.Counts()[10])
	require.ErrorIs(t, r.Reload(3, 1), ErrInvalidDenomination)
}

func TestReserve_CountsAreCopies(t *testing.T) {
	r := newTestReserve(t, Coins{100: 2})

	counts := r.Counts()
	counts[100] = 20
	require.Equal(t, 2, r.Counts()[100])

	require.NoError(t, r.Insert(50))
	inserted := r.Inserted()
	inserted[50] = 9
	require.Equal(t, 1, r.Inserted()[50])
}
