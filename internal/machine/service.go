package machine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

// Journal keeps an audit trail of committed sales and settlements.
type Journal interface {
	RecordSale(ctx context.Context, rec SaleRecord) error
	RecordSettlement(ctx context.Context, rec SettlementRecord) error
}

// Publisher announces committed machine activity to other systems.
type Publisher interface {
	PublishProductSold(ctx context.Context, rec SaleRecord) error
	PublishStockDepleted(ctx context.Context, machineID string, product vending.ProductSummary) error
	PublishChangeDispensed(ctx context.Context, rec SettlementRecord) error
}

type Options struct {
	MachineID string
	Journal   Journal
	Publisher Publisher
	Now       func() time.Time
	// SideEffectTimeout bounds the journal and publish calls that follow a
	// committed sale or settlement. Defaults to 5s.
	SideEffectTimeout time.Duration
}

const defaultSideEffectTimeout = 5 * time.Second

// Service serializes access to one Register. Each call is a single critical
// section, so a purchase or a settlement is never observed half applied.
// Journal and publisher calls run inside the same section to keep their order
// in line with the register's history; their failures are logged and never
// undo committed state.
type Service struct {
	mu  sync.Mutex
	reg *vending.Register

	machineID string
	journal   Journal
	publisher Publisher
	now       func() time.Time
	timeout   time.Duration
	logger    *zap.Logger
}

func NewService(reg *vending.Register, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	machineID := opts.MachineID
	if machineID == "" {
		machineID = "vm-1"
	}
	timeout := opts.SideEffectTimeout
	if timeout <= 0 {
		timeout = defaultSideEffectTimeout
	}
	return &Service{
		reg:       reg,
		machineID: machineID,
		journal:   opts.Journal,
		publisher: opts.Publisher,
		now:       now,
		timeout:   timeout,
		logger:    logger.With(zap.String("machine_id", machineID)),
	}
}

// sideEffectContext runs post-commit work without the caller's cancellation.
// Values such as the correlation id are kept.
func (s *Service) sideEffectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *Service) MachineID() string {
	return s.machineID
}

func (s *Service) InsertMoney(ctx context.Context, denomination int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.InsertMoney(denomination); err != nil {
		s.logger.Warn("insert money rejected", zap.Int("denomination", denomination), zap.Error(err))
		return s.reg.Balance(), err
	}
	s.logger.Info("money inserted",
		zap.Int("denomination", denomination),
		zap.Int("balance", s.reg.Balance()),
		zap.String("correlation_id", CorrelationID(ctx)),
	)
	return s.reg.Balance(), nil
}

func (s *Service) Purchase(ctx context.Context, productID int) (vending.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, err := s.reg.Purchase(productID)
	if err != nil {
		s.logger.Warn("purchase rejected",
			zap.Int("product_id", productID),
			zap.Int("balance", s.reg.Balance()),
			zap.Error(err),
		)
		return vending.Sale{}, err
	}

	rec := SaleRecord{
		ID:           uuid.NewString(),
		MachineID:    s.machineID,
		ProductID:    sale.Product.ID,
		ProductName:  sale.Product.Name,
		Price:        sale.Product.Price,
		BalanceAfter: sale.Balance,
		StockAfter:   sale.Product.Quantity,
		SoldAt:       s.now(),
	}
	s.logger.Info("product sold",
		zap.String("sale_id", rec.ID),
		zap.Int("product_id", rec.ProductID),
		zap.Int("price", rec.Price),
		zap.Int("balance", rec.BalanceAfter),
		zap.Int("stock", rec.StockAfter),
	)

	ctx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	if s.journal != nil {
		if err := s.journal.RecordSale(ctx, rec); err != nil {
			s.logger.Error("journal sale", zap.String("sale_id", rec.ID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishProductSold(ctx, rec); err != nil {
			s.logger.Error("publish ProductSold", zap.String("sale_id", rec.ID), zap.Error(err))
		}
		if sale.Product.Quantity == 0 {
			if err := s.publisher.PublishStockDepleted(ctx, s.machineID, sale.Product); err != nil {
				s.logger.Error("publish StockDepleted", zap.Int("product_id", rec.ProductID), zap.Error(err))
			}
		}
	}
	return sale, nil
}

// DispenseChange settles the balance. A zero balance returns no coins and
// leaves no journal entry.
func (s *Service) DispenseChange(ctx context.Context) (vending.Coins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount := s.reg.Balance()
	change, err := s.reg.DispenseChange()
	if err != nil {
		s.logger.Warn("dispense change failed", zap.Int("balance", amount), zap.Error(err))
		return nil, err
	}
	if amount == 0 {
		return change, nil
	}

	rec := SettlementRecord{
		ID:        uuid.NewString(),
		MachineID: s.machineID,
		Amount:    amount,
		Coins:     change,
		SettledAt: s.now(),
	}
	s.logger.Info("change dispensed",
		zap.String("settlement_id", rec.ID),
		zap.Int("amount", amount),
		zap.Any("coins", change),
	)

	ctx, cancel := s.sideEffectContext(ctx)
	defer cancel()

	if s.journal != nil {
		if err := s.journal.RecordSettlement(ctx, rec); err != nil {
			s.logger.Error("journal settlement", zap.String("settlement_id", rec.ID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishChangeDispensed(ctx, rec); err != nil {
			s.logger.Error("publish ChangeDispensed", zap.String("settlement_id", rec.ID), zap.Error(err))
		}
	}
	return change, nil
}

func (s *Service) AddProduct(ctx context.Context, id int, name string, price, quantity int) (vending.ProductSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.reg.AddProduct(id, name, price, quantity)
	if err != nil {
		s.logger.Warn("add product rejected", zap.Int("product_id", id), zap.Error(err))
		return vending.ProductSummary{}, err
	}
	s.logger.Info("product added",
		zap.Int("product_id", p.ID),
		zap.String("name", p.Name),
		zap.Int("price", p.Price),
		zap.Int("quantity", p.Quantity),
	)
	return p, nil
}

func (s *Service) ReloadProduct(ctx context.Context, productID, quantity int) (vending.ProductSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.ReloadProduct(productID, quantity); err != nil {
		s.logger.Warn("reload product rejected", zap.Int("product_id", productID), zap.Int("quantity", quantity), zap.Error(err))
		return vending.ProductSummary{}, err
	}
	p, err := s.reg.Product(productID)
	if err != nil {
		return vending.ProductSummary{}, err
	}
	s.logger.Info("product reloaded", zap.Int("product_id", productID), zap.Int("added", quantity), zap.Int("quantity", p.Quantity))
	return p, nil
}

func (s *Service) ReloadCurrency(ctx context.Context, denomination, count int) (vending.Coins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.ReloadCurrency(denomination, count); err != nil {
		s.logger.Warn("reload currency rejected", zap.Int("denomination", denomination), zap.Int("count", count), zap.Error(err))
		return nil, err
	}
	s.logger.Info("currency reloaded", zap.Int("denomination", denomination), zap.Int("count", count))
	return s.reg.DenominationCounts(), nil
}

func (s *Service) Restock(ctx context.Context, req RestockRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.Restock(req.Products, req.Coins); err != nil {
		s.logger.Warn("restock rejected", zap.Error(err))
		return err
	}
	s.logger.Info("restocked",
		zap.Int("products", len(req.Products)),
		zap.Int("coin_value", req.Coins.Value()),
		zap.String("correlation_id", CorrelationID(ctx)),
	)
	return nil
}

func (s *Service) ListProducts() []vending.ProductSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.ListProducts()
}

func (s *Service) ValidDenominations() []int {
	return vending.Denominations()
}

func (s *Service) DenominationCounts() vending.Coins {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.DenominationCounts()
}

func (s *Service) InsertedMoney() vending.Coins {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.InsertedMoney()
}

func (s *Service) Balance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Balance()
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		MachineID:     s.machineID,
		Balance:       s.reg.Balance(),
		ReserveValue:  s.reg.ReserveValue(),
		Products:      s.reg.ListProducts(),
		Denominations: s.reg.DenominationCounts(),
		Inserted:      s.reg.InsertedMoney(),
	}
}
