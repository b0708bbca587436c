package services

import (
	"context"
	"fmt"
	"log/slog"

	"ellas/internal/amqp"
	"ellas/internal/core"
	"ellas/internal/retry"
	"ellas/internal/schedule"
)

// SaleInput is everything needed to register a sale. For installment sales
// the schedule is generated here; Overrides carries manually edited
// amounts keyed by 0-based installment index.
type SaleInput struct {
	CustomerName  string
	PurchaseDate  core.Date
	PaymentDate   core.Date
	PaymentMethod core.PaymentMethod
	Discount      core.Money
	Advance       core.Money
	Products      []core.Product
	Installments  int
	Cadence       schedule.Cadence
	Overrides     map[int]core.Money
}

// SaleService orchestrates sale operations across SQLite and AMQP.
type SaleService struct {
	store     SaleStore
	publisher Publisher
	retry     retry.Policy
	policy    schedule.Policy
}

func NewSaleService(store SaleStore, publisher Publisher) *SaleService {
	return &SaleService{
		store:     store,
		publisher: publisher,
		retry:     retry.Default(),
		policy:    schedule.ForwardOnly{},
	}
}

// CreateSale builds the installment schedule, validates the sale and
// persists it, then notifies the sync worker.
func (s *SaleService) CreateSale(ctx context.Context, in SaleInput) (core.Sale, error) {
	sale := core.Sale{
		CustomerName:  in.CustomerName,
		PurchaseDate:  in.PurchaseDate,
		PaymentDate:   in.PaymentDate,
		PaymentMethod: in.PaymentMethod,
		Discount:      in.Discount,
		Advance:       in.Advance,
		Products:      in.Products,
	}

	if in.PaymentMethod == core.PaymentInstallment {
		plan, err := s.buildPlan(sale, in)
		if err != nil {
			return core.Sale{}, err
		}
		sale.Installments = plan
	}

	if err := sale.Validate(); err != nil {
		return core.Sale{}, err
	}

	err := s.retry.Do(ctx, "create sale", func(ctx context.Context) error {
		return s.store.CreateSale(ctx, &sale)
	})
	if err != nil {
		return core.Sale{}, err
	}

	s.publish(ctx, "sales", sale.ID)
	return sale, nil
}

func (s *SaleService) buildPlan(sale core.Sale, in SaleInput) ([]core.SaleInstallment, error) {
	plan, err := schedule.Build(sale.SaleTotal(), in.Discount, in.Advance, in.Installments, in.PaymentDate, in.Cadence)
	if err != nil {
		return nil, err
	}

	if len(in.Overrides) > 0 {
		net := sale.SaleTotal().Sub(in.Discount).Sub(in.Advance)
		for idx, amount := range in.Overrides {
			plan, err = schedule.Override(plan, idx, amount, net, s.policy)
			if err != nil {
				return nil, fmt.Errorf("override installment %d: %w", idx+1, err)
			}
		}
	}

	out := make([]core.SaleInstallment, len(plan))
	for i, p := range plan {
		out[i] = core.SaleInstallment{Index: p.Index, Amount: p.Amount, DueDate: p.DueDate}
	}
	return out, nil
}

// GetSale loads one sale.
func (s *SaleService) GetSale(ctx context.Context, id string) (core.Sale, error) {
	var sale core.Sale
	err := s.retry.Do(ctx, "get sale", func(ctx context.Context) error {
		var err error
		sale, err = s.store.GetSale(ctx, id)
		return err
	})
	return sale, err
}

// ListSales returns all sales.
func (s *SaleService) ListSales(ctx context.Context) ([]core.Sale, error) {
	var sales []core.Sale
	err := s.retry.Do(ctx, "list sales", func(ctx context.Context) error {
		var err error
		sales, err = s.store.ListSales(ctx)
		return err
	})
	return sales, err
}

// DeleteSale removes a sale and tells the worker to drop its backup row.
func (s *SaleService) DeleteSale(ctx context.Context, id string) error {
	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return err
	}
	err = s.retry.Do(ctx, "delete sale", func(ctx context.Context) error {
		return s.store.DeleteSale(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publishDelete(ctx, "sales", id, sale.CustomerName, sale.PurchaseDate.ISO(), sale.SaleTotal().Cents)
	return nil
}

// SetInstallmentPaid sets or clears one installment's paid date.
func (s *SaleService) SetInstallmentPaid(ctx context.Context, saleID string, index int, paidOn *core.Date) error {
	err := s.retry.Do(ctx, "set installment paid", func(ctx context.Context) error {
		return s.store.SetSaleInstallmentPaid(ctx, saleID, index, paidOn)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, "sales", saleID)
	return nil
}

func (s *SaleService) publish(ctx context.Context, table, id string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping sync message", "table", table, "id", id)
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewSyncMessage(table, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"table", table, "id", id, "error", err)
	}
}

func (s *SaleService) publishDelete(ctx context.Context, table, id, description, date string, amountCents int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping delete message", "table", table, "id", id)
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewDeleteMessage(table, id, description, date, amountCents)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"table", table, "id", id, "error", err)
	}
}
