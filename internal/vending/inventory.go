package vending

import "fmt"

// MaxProducts bounds the number of distinct products in the catalog.
const MaxProducts = 10

// Inventory owns the product catalog. Products are never removed.
type Inventory struct {
	products map[int]*Product
	order    []int
}

func NewInventory() *Inventory {
	return &Inventory{products: make(map[int]*Product)}
}

func (inv *Inventory) AddProduct(p *Product) error {
	if p == nil {
		return invalid("product", "must not be nil")
	}
	if _, ok := inv.products[p.id]; ok {
		return fmt.Errorf("%w: %s (ID: %d)", ErrDuplicateID, p.name, p.id)
	}
	if len(inv.products) >= MaxProducts {
		return fmt.Errorf("%w: catalog already holds %d products", ErrCapacity, MaxProducts)
	}
	inv.products[p.id] = p
	inv.order = append(inv.order, p.id)
	return nil
}

// Product returns a snapshot of the product with the given id.
func (inv *Inventory) Product(id int) (ProductSummary, error) {
	p, err := inv.get(id)
	if err != nil {
		return ProductSummary{}, err
	}
	return p.Summary(), nil
}

func (inv *Inventory) get(id int) (*Product, error) {
	p, ok := inv.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product with ID %d does not exist in inventory", ErrNotFound, id)
	}
	return p, nil
}

func (inv *Inventory) IsAvailable(id int) (bool, error) {
	p, err := inv.get(id)
	if err != nil {
		return false, err
	}
	return p.quantity > 0, nil
}

func (inv *Inventory) EnsureAvailable(id int) error {
	p, err := inv.get(id)
	if err != nil {
		return err
	}
	if p.quantity == 0 {
		return fmt.Errorf("%w: %s (ID: %d)", ErrOutOfStock, p.name, id)
	}
	return nil
}

// ReduceStock sells one unit of the product.
func (inv *Inventory) ReduceStock(id int) error {
	if err := inv.EnsureAvailable(id); err != nil {
		return err
	}
	return inv.products[id].ReduceQuantity(1)
}

func (inv *Inventory) ReloadProduct(id, amount int) error {
	p, err := inv.get(id)
	if err != nil {
		return err
	}
	return p.IncreaseQuantity(amount)
}

// checkReloads validates a batch of reloads without applying any of them.
func (inv *Inventory) checkReloads(amounts map[int]int) error {
	for id, amount := range amounts {
		p, err := inv.get(id)
		if err != nil {
			return err
		}
		if err := p.checkIncrease(amount); err != nil {
			return err
		}
	}
	return nil
}

// List returns the catalog in insertion order.
func (inv *Inventory) List() []ProductSummary {
	out := make([]ProductSummary, 0, len(inv.order))
	for _, id := range inv.order {
		out = append(out, inv.products[id].Summary())
	}
	return out
}

func (inv *Inventory) Len() int {
	return len(inv.products)
}
