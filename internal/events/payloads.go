package events

import (
	"fmt"
	"time"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/machine"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

const (
	EventTypeProductSold      = "ProductSold"
	EventTypeChangeDispensed  = "ChangeDispensed"
	EventTypeStockDepleted    = "StockDepleted"
	EventTypeRestockRequested = "RestockRequested"

	productSoldSchema      = "contracts/events/vending/ProductSold.v1.payload.schema.json"
	changeDispensedSchema  = "contracts/events/vending/ChangeDispensed.v1.payload.schema.json"
	stockDepletedSchema    = "contracts/events/vending/StockDepleted.v1.payload.schema.json"
	restockRequestedSchema = "contracts/events/vending/RestockRequested.v1.payload.schema.json"
)

type ProductSoldPayload struct {
	SaleID       string    `json:"saleId"`
	MachineID    string    `json:"machineId"`
	ProductID    int       `json:"productId"`
	ProductName  string    `json:"productName"`
	Price        int       `json:"price"`
	BalanceAfter int       `json:"balanceAfter"`
	StockAfter   int       `json:"stockAfter"`
	SoldAt       time.Time `json:"soldAt"`
}

func productSoldPayload(rec machine.SaleRecord) ProductSoldPayload {
	return ProductSoldPayload{
		SaleID:       rec.ID,
		MachineID:    rec.MachineID,
		ProductID:    rec.ProductID,
		ProductName:  rec.ProductName,
		Price:        rec.Price,
		BalanceAfter: rec.BalanceAfter,
		StockAfter:   rec.StockAfter,
		SoldAt:       rec.SoldAt,
	}
}

type CoinLine struct {
	Denomination int `json:"denomination"`
	Count        int `json:"count"`
}

type ChangeDispensedPayload struct {
	SettlementID string     `json:"settlementId"`
	MachineID    string     `json:"machineId"`
	Amount       int        `json:"amount"`
	Coins        []CoinLine `json:"coins"`
	SettledAt    time.Time  `json:"settledAt"`
}

func changeDispensedPayload(rec machine.SettlementRecord) ChangeDispensedPayload {
	return ChangeDispensedPayload{
		SettlementID: rec.ID,
		MachineID:    rec.MachineID,
		Amount:       rec.Amount,
		Coins:        coinLines(rec.Coins),
		SettledAt:    rec.SettledAt,
	}
}

// coinLines lists coins largest denomination first, skipping empty entries.
func coinLines(coins vending.Coins) []CoinLine {
	lines := []CoinLine{}
	for _, d := range vending.Denominations() {
		if n := coins[d]; n != 0 {
			lines = append(lines, CoinLine{Denomination: d, Count: n})
		}
	}
	return lines
}

type StockDepletedPayload struct {
	MachineID   string    `json:"machineId"`
	ProductID   int       `json:"productId"`
	ProductName string    `json:"productName"`
	Price       int       `json:"price"`
	DepletedAt  time.Time `json:"depletedAt"`
}

type RestockLine struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// RestockRequestedPayload is sent by operators to top up one machine.
// Coin counts are signed deltas per denomination.
type RestockRequestedPayload struct {
	MachineID string        `json:"machineId"`
	Products  []RestockLine `json:"products,omitempty"`
	Coins     []CoinLine    `json:"coins,omitempty"`
}

// request converts the payload into a restock request. Each product and
// denomination may appear on one line only.
func (p RestockRequestedPayload) request() (machine.RestockRequest, error) {
	req := machine.RestockRequest{
		Products: make(map[int]int, len(p.Products)),
		Coins:    make(vending.Coins, len(p.Coins)),
	}
	for _, l := range p.Products {
		if _, dup := req.Products[l.ProductID]; dup {
			return machine.RestockRequest{}, &vending.ValidationError{
				Field:  "products",
				Reason: fmt.Sprintf("product %d listed more than once", l.ProductID),
			}
		}
		req.Products[l.ProductID] = l.Quantity
	}
	for _, c := range p.Coins {
		if _, dup := req.Coins[c.Denomination]; dup {
			return machine.RestockRequest{}, &vending.ValidationError{
				Field:  "coins",
				Reason: fmt.Sprintf("denomination %d listed more than once", c.Denomination),
			}
		}
		req.Coins[c.Denomination] = c.Count
	}
	return req, nil
}
