package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/machine"
)

const defaultListLimit = 50

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository is an append-only audit trail of sales and
// settlements. Machine state is never rebuilt from it.
type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) RecordSale(ctx context.Context, rec machine.SaleRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vending_sales (id, machine_id, product_id, product_name, price, balance_after, stock_after, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.MachineID, rec.ProductID, rec.ProductName, rec.Price, rec.BalanceAfter, rec.StockAfter, rec.SoldAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordSettlement(ctx context.Context, rec machine.SettlementRecord) error {
	coins, err := json.Marshal(rec.Coins)
	if err != nil {
		return fmt.Errorf("marshal coins: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO vending_settlements (id, machine_id, amount, coins, settled_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, rec.ID, rec.MachineID, rec.Amount, string(coins), rec.SettledAt)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// ListSales returns the most recent sales of a machine, newest first.
func (r *PostgresRepository) ListSales(ctx context.Context, machineID string, limit int) ([]machine.SaleRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, machine_id, product_id, product_name, price, balance_after, stock_after, sold_at
		FROM vending_sales
		WHERE machine_id = $1
		ORDER BY sold_at DESC
		LIMIT $2
	`, machineID, limit)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	sales := []machine.SaleRecord{}
	for rows.Next() {
		var rec machine.SaleRecord
		if err := rows.Scan(&rec.ID, &rec.MachineID, &rec.ProductID, &rec.ProductName,
			&rec.Price, &rec.BalanceAfter, &rec.StockAfter, &rec.SoldAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return sales, nil
}
