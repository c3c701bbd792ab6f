package vending

// Register is the transaction boundary of the machine. It owns the inventory,
// the coin reserve and the running balance, and is the only thing that
// changes the balance.
//
// A Register is not safe for concurrent use; see the machine package for a
// locked wrapper.
type Register struct {
	inventory *Inventory
	reserve   *Reserve
	balance   int
}

// Sale is the receipt of a committed purchase.
type Sale struct {
	Product ProductSummary `json:"product"`
	Balance int            `json:"balance"`
}

// NewRegister takes ownership of inv and reserve.
func NewRegister(inv *Inventory, reserve *Reserve) *Register {
	return &Register{inventory: inv, reserve: reserve}
}

func (r *Register) Balance() int {
	return r.balance
}

func (r *Register) InsertMoney(d int) error {
	if err := r.reserve.Insert(d); err != nil {
		return err
	}
	r.balance += d
	return nil
}

// Purchase sells one unit of the product against the current balance.
// Both the stock decrement and the debit happen, or neither does.
func (r *Register) Purchase(productID int) (Sale, error) {
	if err := r.inventory.EnsureAvailable(productID); err != nil {
		return Sale{}, err
	}
	p, err := r.inventory.Product(productID)
	if err != nil {
		return Sale{}, err
	}
	if r.balance < p.Price {
		return Sale{}, &InsufficientBalanceError{ProductID: productID, Price: p.Price, Balance: r.balance}
	}

	// The stock decrement is the only step that can fail, so it runs before
	// the debit.
	if err := r.inventory.ReduceStock(productID); err != nil {
		return Sale{}, err
	}
	r.balance -= p.Price

	p.Quantity--
	return Sale{Product: p, Balance: r.balance}, nil
}

// DispenseChange returns the whole balance as coins from the reserve. On
// failure the balance is kept so the customer can retry after a reload. The
// returned counts are positive: coins handed to the customer.
func (r *Register) DispenseChange() (Coins, error) {
	if r.balance == 0 {
		return Coins{}, nil
	}
	delta, err := r.reserve.CalculateChange(r.balance)
	if err != nil {
		return nil, err
	}
	if err := r.reserve.ApplyDelta(delta); err != nil {
		return nil, err
	}
	r.balance = 0
	return delta.Negate(), nil
}

func (r *Register) AddProduct(id int, name string, price, quantity int) (ProductSummary, error) {
	p, err := NewProduct(id, name, price, quantity)
	if err != nil {
		return ProductSummary{}, err
	}
	if err := r.inventory.AddProduct(p); err != nil {
		return ProductSummary{}, err
	}
	return p.Summary(), nil
}

func (r *Register) ReloadProduct(productID, quantity int) error {
	return r.inventory.ReloadProduct(productID, quantity)
}

// ReloadCurrency changes a denomination by a signed count.
func (r *Register) ReloadCurrency(d, count int) error {
	return r.reserve.Reload(d, count)
}

// Restock applies several product reloads and a coin delta as one unit:
// everything is validated before anything changes.
func (r *Register) Restock(products map[int]int, coins Coins) error {
	if err := r.inventory.checkReloads(products); err != nil {
		return err
	}
	if err := r.reserve.checkDelta(coins); err != nil {
		return err
	}
	for id, amount := range products {
		if err := r.inventory.ReloadProduct(id, amount); err != nil {
			return err
		}
	}
	return r.reserve.ApplyDelta(coins)
}

func (r *Register) Product(productID int) (ProductSummary, error) {
	return r.inventory.Product(productID)
}

func (r *Register) ListProducts() []ProductSummary {
	return r.inventory.List()
}

func (r *Register) ValidDenominations() []int {
	return Denominations()
}

func (r *Register) DenominationCounts() Coins {
	return r.reserve.Counts()
}

// InsertedMoney is the ledger of every coin customers have inserted.
func (r *Register) InsertedMoney() Coins {
	return r.reserve.Inserted()
}

func (r *Register) ReserveValue() int {
	return r.reserve.TotalValue()
}
