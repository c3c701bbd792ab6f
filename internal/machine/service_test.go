package machine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

type fakeJournal struct {
	sales          []SaleRecord
	settlements    []SettlementRecord
	correlationIDs []string
	err            error
}

func (f *fakeJournal) RecordSale(ctx context.Context, rec SaleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sales = append(f.sales, rec)
	f.correlationIDs = append(f.correlationIDs, CorrelationID(ctx))
	return f.err
}

func (f *fakeJournal) RecordSettlement(ctx context.Context, rec SettlementRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.settlements = append(f.settlements, rec)
	f.correlationIDs = append(f.correlationIDs, CorrelationID(ctx))
	return f.err
}

type fakePublisher struct {
	sold      []SaleRecord
	depleted  []vending.ProductSummary
	dispensed []SettlementRecord
	err       error
}

func (f *fakePublisher) PublishProductSold(ctx context.Context, rec SaleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sold = append(f.sold, rec)
	return f.err
}

func (f *fakePublisher) PublishStockDepleted(ctx context.Context, machineID string, product vending.ProductSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.depleted = append(f.depleted, product)
	return f.err
}

func (f *fakePublisher) PublishChangeDispensed(ctx context.Context, rec SettlementRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.dispensed = append(f.dispensed, rec)
	return f.err
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	reserve, err := vending.NewReserve(vending.InitialDenominationCount)
	require.NoError(t, err)
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.MachineID == "" {
		opts.MachineID = "vm-test"
	}
	svc := NewService(vending.NewRegister(vending.NewInventory(), reserve), zap.NewNop(), opts)
	require.NoError(t, svc.Seed(context.Background(), SampleProducts()))
	return svc
}

func TestService_PurchaseRecordsAndPublishes(t *testing.T) {
	journal := &fakeJournal{}
	pub := &fakePublisher{}
	svc := newTestService(t, Options{Journal: journal, Publisher: pub})
	ctx := context.Background()

	balance, err := svc.InsertMoney(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, 200, balance)

	sale, err := svc.Purchase(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 80, sale.Balance)

	require.Len(t, journal.sales, 1)
	rec := journal.sales[0]
	require.NotEmpty(t, rec.ID)
	require.Equal(t, SaleRecord{
		ID:           rec.ID,
		MachineID:    "vm-test",
		ProductID:    1,
		ProductName:  "Soda",
		Price:        120,
		BalanceAfter: 80,
		StockAfter:   9,
		SoldAt:       fixedNow,
	}, rec)
	require.Equal(t, []SaleRecord{rec}, pub.sold)
	require.Empty(t, pub.depleted)

	change, err := svc.DispenseChange(ctx)
	require.NoError(t, err)
	require.Equal(t, vending.Coins{50: 1, 20: 1, 10: 1}, change)
	require.Len(t, journal.settlements, 1)
	require.Equal(t, 80, journal.settlements[0].Amount)
	require.Equal(t, change, journal.settlements[0].Coins)
	require.Len(t, pub.dispensed, 1)
}

func TestService_CancelledCallerStillJournalsAndPublishes(t *testing.T) {
	journal := &fakeJournal{}
	pub := &fakePublisher{}
	svc := newTestService(t, Options{Journal: journal, Publisher: pub})

	_, err := svc.InsertMoney(context.Background(), 200)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(WithCorrelationID(context.Background(), "corr-1"))
	cancel()

	sale, err := svc.Purchase(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 9, sale.Product.Quantity)
	require.Equal(t, 80, sale.Balance)
	require.Len(t, journal.sales, 1)
	require.Len(t, pub.sold, 1)

	change, err := svc.DispenseChange(ctx)
	require.NoError(t, err)
	require.Equal(t, vending.Coins{50: 1, 20: 1, 10: 1}, change)
	require.Len(t, journal.settlements, 1)
	require.Len(t, pub.dispensed, 1)

	require.Equal(t, []string{"corr-1", "corr-1"}, journal.correlationIDs)
}

func TestService_LastUnitPublishesStockDepleted(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, Options{Publisher: pub})
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, 4, "Gum", 50, 1)
	require.NoError(t, err)
	_, err = svc.InsertMoney(ctx, 50)
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, 4)
	require.NoError(t, err)

	require.Equal(t, []vending.ProductSummary{{ID: 4, Name: "Gum", Price: 50, Quantity: 0}}, pub.depleted)
}

func TestService_SideEffectFailuresDoNotUndoSale(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	reserve, err := vending.NewReserve(vending.InitialDenominationCount)
	require.NoError(t, err)

	journal := &fakeJournal{err: errors.New("db down")}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(vending.NewRegister(vending.NewInventory(), reserve), zap.New(core), Options{
		Journal:   journal,
		Publisher: pub,
	})
	ctx := context.Background()
	require.NoError(t, svc.Seed(ctx, SampleProducts()))

	_, err = svc.InsertMoney(ctx, 100)
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, 2)
	require.NoError(t, err)

	require.Equal(t, 20, svc.Balance())
	require.Equal(t, 4, svc.ListProducts()[1].Quantity)
	require.Equal(t, 2, logs.FilterMessageSnippet("ProductSold").Len()+logs.FilterMessageSnippet("journal sale").Len())
}

func TestService_RejectedOperationsHaveNoSideEffects(t *testing.T) {
	journal := &fakeJournal{}
	pub := &fakePublisher{}
	svc := newTestService(t, Options{Journal: journal, Publisher: pub})
	ctx := context.Background()

	_, err := svc.InsertMoney(ctx, 3)
	require.ErrorIs(t, err, vending.ErrInvalidDenomination)

	_, err = svc.Purchase(ctx, 1)
	require.ErrorIs(t, err, vending.ErrInsufficientBalance)

	change, err := svc.DispenseChange(ctx)
	require.NoError(t, err)
	require.Empty(t, change)

	require.Empty(t, journal.sales)
	require.Empty(t, journal.settlements)
	require.Empty(t, pub.sold)
	require.Empty(t, pub.dispensed)
}

func TestService_ReloadsAndStatus(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	p, err := svc.ReloadProduct(ctx, 2, 5)
	require.NoError(t, err)
	require.Equal(t, 10, p.Quantity)

	_, err = svc.ReloadProduct(ctx, 2, 11)
	require.ErrorIs(t, err, vending.ErrCapacity)

	counts, err := svc.ReloadCurrency(ctx, 200, 5)
	require.NoError(t, err)
	require.Equal(t, 15, counts[200])

	_, err = svc.ReloadCurrency(ctx, 200, 6)
	require.ErrorIs(t, err, vending.ErrCapacity)

	require.NoError(t, svc.Restock(ctx, RestockRequest{Products: map[int]int{3: 2}, Coins: vending.Coins{1: -10}}))

	status := svc.Status()
	require.Equal(t, "vm-test", status.MachineID)
	require.Equal(t, 0, status.Balance)
	require.Equal(t, 0, status.Denominations[1])
	require.Equal(t, 10, status.Products[2].Quantity)
	require.Equal(t, 3880+5*200-10, status.ReserveValue)
	require.Equal(t, vending.Denominations(), svc.ValidDenominations())
}

func TestService_ConcurrentCustomersKeepBalanceConsistent(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = svc.InsertMoney(ctx, 100)
				_, _ = svc.Purchase(ctx, 2)
			}
		}()
	}
	wg.Wait()

	// 160 coins of 100p went in; Chips cost 80p and only 5 were stocked.
	status := svc.Status()
	require.Equal(t, 0, status.Products[1].Quantity)
	require.Equal(t, 160*100-5*80, status.Balance)
	require.Equal(t, vending.Coins{100: 160}, svc.InsertedMoney())
}
