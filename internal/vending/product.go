package vending

import (
	"fmt"
	"strings"
)

// MaxQuantity bounds the stock a single product slot can hold.
const MaxQuantity = 20

// Product is a sellable item. Identity, name and price are fixed at
// construction; quantity only moves through IncreaseQuantity and ReduceQuantity.
type Product struct {
	id       int
	name     string
	price    int
	quantity int
}

// ProductSummary is an owned snapshot of a Product.
type ProductSummary struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

func (s ProductSummary) String() string {
	return fmt.Sprintf("%s (ID: %d) - Price: %dp, Stock: %d", s.Name, s.ID, s.Price, s.Quantity)
}

func NewProduct(id int, name string, price, quantity int) (*Product, error) {
	if id <= 0 {
		return nil, invalid("id", "must be a positive integer")
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalid("name", "must be a non-empty string")
	}
	if price <= 0 {
		return nil, invalid("price", "must be a positive integer")
	}
	if quantity < 0 {
		return nil, invalid("quantity", "must be a non-negative integer")
	}
	if quantity > MaxQuantity {
		return nil, invalid("quantity", fmt.Sprintf("must not exceed %d", MaxQuantity))
	}
	return &Product{id: id, name: name, price: price, quantity: quantity}, nil
}

func (p *Product) ID() int       { return p.id }
func (p *Product) Name() string  { return p.name }
func (p *Product) Price() int    { return p.price }
func (p *Product) Quantity() int { return p.quantity }

func (p *Product) Summary() ProductSummary {
	return ProductSummary{ID: p.id, Name: p.name, Price: p.price, Quantity: p.quantity}
}

func (p *Product) IncreaseQuantity(amount int) error {
	if err := p.checkIncrease(amount); err != nil {
		return err
	}
	p.quantity += amount
	return nil
}

func (p *Product) checkIncrease(amount int) error {
	if amount < 0 {
		return invalid("quantity", "must be a non-negative integer")
	}
	if p.quantity+amount > MaxQuantity {
		return fmt.Errorf("%w: %s (ID: %d) would hold %d, maximum is %d",
			ErrCapacity, p.name, p.id, p.quantity+amount, MaxQuantity)
	}
	return nil
}

func (p *Product) ReduceQuantity(amount int) error {
	if amount < 0 {
		return invalid("quantity", "must be a non-negative integer")
	}
	if amount > p.quantity {
		return fmt.Errorf("%w: not enough stock (%d) to reduce by %d", ErrInsufficientStock, p.quantity, amount)
	}
	p.quantity -= amount
	return nil
}
