package machine

import (
	"time"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

type SaleRecord struct {
	ID           string    `json:"saleId"`
	MachineID    string    `json:"machineId"`
	ProductID    int       `json:"productId"`
	ProductName  string    `json:"productName"`
	Price        int       `json:"price"`
	BalanceAfter int       `json:"balanceAfter"`
	StockAfter   int       `json:"stockAfter"`
	SoldAt       time.Time `json:"soldAt"`
}

type SettlementRecord struct {
	ID        string        `json:"settlementId"`
	MachineID string        `json:"machineId"`
	Amount    int           `json:"amount"`
	Coins     vending.Coins `json:"coins"`
	SettledAt time.Time     `json:"settledAt"`
}

type Status struct {
	MachineID     string                   `json:"machineId"`
	Balance       int                      `json:"balance"`
	ReserveValue  int                      `json:"reserveValue"`
	Products      []vending.ProductSummary `json:"products"`
	Denominations vending.Coins            `json:"denominations"`
	Inserted      vending.Coins            `json:"inserted"`
}

// RestockRequest reloads products (id -> units to add) and coins (signed
// delta per denomination) in one step.
type RestockRequest struct {
	Products map[int]int
	Coins    vending.Coins
}
