package machine

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

// SampleProducts is the catalog a fresh machine is loaded with.
func SampleProducts() []vending.ProductSummary {
	return []vending.ProductSummary{
		{ID: 1, Name: "Soda", Price: 120, Quantity: 10},
		{ID: 2, Name: "Chips", Price: 80, Quantity: 5},
		{ID: 3, Name: "Candy", Price: 100, Quantity: 8},
	}
}

// Seed adds every product, stopping at the first failure.
func (s *Service) Seed(ctx context.Context, products []vending.ProductSummary) error {
	for _, p := range products {
		if _, err := s.AddProduct(ctx, p.ID, p.Name, p.Price, p.Quantity); err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}
	return nil
}
