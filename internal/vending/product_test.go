package vending

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProduct_Validation(t *testing.T) {
	tests := map[string]struct {
		id        int
		name      string
		price     int
		quantity  int
		wantField string
	}{
		"zero id":           {id: 0, name: "Soda", price: 120, quantity: 1, wantField: "id"},
		"negative id":       {id: -3, name: "Soda", price: 120, quantity: 1, wantField: "id"},
		"blank name":        {id: 1, name: "   ", price: 120, quantity: 1, wantField: "name"},
		"empty name":        {id: 1, name: "", price: 120, quantity: 1, wantField: "name"},
		"zero price":        {id: 1, name: "Soda", price: 0, quantity: 1, wantField: "price"},
		"negative quantity": {id: 1, name: "Soda", price: 120, quantity: -1, wantField: "quantity"},
		"quantity over max": {id: 1, name: "Soda", price: 120, quantity: MaxQuantity + 1, wantField: "quantity"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := NewProduct(tt.id, tt.name, tt.price, tt.quantity)
			require.Nil(t, p)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestNewProduct_OK(t *testing.T) {
	p, err := NewProduct(1, "Soda", 120, 5)
	require.NoError(t, err)
	require.Equal(t, ProductSummary{ID: 1, Name: "Soda", Price: 120, Quantity: 5}, p.Summary())
	require.Equal(t, "Soda (ID: 1) - Price: 120p, Stock: 5", p.Summary().String())
}

func TestProduct_IncreaseQuantity(t *testing.T) {
	tests := map[string]struct {
		start   int
		amount  int
		want    int
		wantErr error
	}{
		"adds stock":        {start: 5, amount: 10, want: 15},
		"zero is a no-op":   {start: 5, amount: 0, want: 5},
		"fills to max":      {start: 5, amount: MaxQuantity - 5, want: MaxQuantity},
		"over max rejected": {start: 5, amount: MaxQuantity, want: 5, wantErr: ErrCapacity},
		"negative rejected": {start: 5, amount: -1, want: 5, wantErr: ErrValidation},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := NewProduct(1, "Chips", 80, tt.start)
			require.NoError(t, err)

			err = p.IncreaseQuantity(tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, p.Quantity())
		})
	}
}

func TestProduct_ReduceQuantity(t *testing.T) {
	tests := map[string]struct {
		start   int
		amount  int
		want    int
		wantErr error
	}{
		"removes one":       {start: 3, amount: 1, want: 2},
		"removes all":       {start: 3, amount: 3, want: 0},
		"more than held":    {start: 3, amount: 4, want: 3, wantErr: ErrInsufficientStock},
		"negative rejected": {start: 3, amount: -2, want: 3, wantErr: ErrValidation},
		"nothing left":      {start: 0, amount: 1, want: 0, wantErr: ErrInsufficientStock},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := NewProduct(2, "Candy", 100, tt.start)
			require.NoError(t, err)

			err = p.ReduceQuantity(tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, p.Quantity())
		})
	}
}
