// Package sales holds the checkout engine: it applies a cart against the
// stock ledger as one atomic unit, creating a new sale or fully replacing
// the items of an existing one.
package sales

import (
	"context"

	"ncpharmacy/backend/internal/domain"
)

// Ledger is the row-level view of the store the engine mutates. Every
// method runs inside the single transaction opened by the TxRunner, and
// MedicineForUpdate / SaleForUpdate must take exclusive row locks so
// concurrent checkouts against the same medicine serialize.
type Ledger interface {
	// MedicineForUpdate loads an active medicine and locks its row.
	// Returns MedicineNotFoundError for missing or deactivated rows.
	MedicineForUpdate(ctx context.Context, id int64) (*domain.Medicine, error)
	// AdjustStock adds delta (negative for a sale) to the medicine's
	// quantity. Callers check the floor first; the store additionally
	// refuses to go below zero.
	AdjustStock(ctx context.Context, medicineID int64, delta int) error

	// SaleForUpdate loads a sale and locks its row. Returns
	// SaleNotFoundError when the row does not exist.
	SaleForUpdate(ctx context.Context, id int64) (*domain.Sale, error)
	InsertSale(ctx context.Context, sale *domain.Sale) error
	UpdateSale(ctx context.Context, sale *domain.Sale) error

	ItemsBySale(ctx context.Context, saleID int64) ([]domain.SaleItem, error)
	DeleteItemsBySale(ctx context.Context, saleID int64) error
	InsertItem(ctx context.Context, item *domain.SaleItem) error
}

// TxRunner opens the atomic scope the engine works in. The function's
// error aborts the transaction; nothing done through the Ledger survives.
type TxRunner interface {
	InSaleTx(ctx context.Context, fn func(Ledger) error) error
}

// CheckoutInput carries one apply-or-amend request. AmendSaleID nil means
// a brand-new sale; permission checks happened before this point.
type CheckoutInput struct {
	Cart            []domain.CartLine
	DeliveryFee     int64
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	AmendSaleID     *int64
	ActorID         *int64
	ActorName       string
	ReceiptNo       string
}

type Engine struct {
	store TxRunner
}

func NewEngine(store TxRunner) *Engine {
	return &Engine{store: store}
}

// Checkout applies the cart as a new sale, or, when AmendSaleID is set,
// replaces the entire item set of that sale after restoring its stock.
// On any error the store is left exactly as it was.
func (e *Engine) Checkout(ctx context.Context, input CheckoutInput) (*domain.Sale, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	var result *domain.Sale
	err := e.store.InSaleTx(ctx, func(l Ledger) error {
		sale, err := e.prepareSale(ctx, l, input)
		if err != nil {
			return err
		}

		items := make([]domain.SaleItem, 0, len(input.Cart))
		for _, line := range input.Cart {
			medicine, err := l.MedicineForUpdate(ctx, line.MedicineID)
			if err != nil {
				return err
			}
			if medicine.Quantity < line.Quantity {
				return InsufficientStockError{
					MedicineID: medicine.ID,
					Name:       medicine.Name,
					Requested:  line.Quantity,
					Available:  medicine.Quantity,
				}
			}
			item := domain.SaleItem{
				SaleID:       sale.ID,
				MedicineID:   medicine.ID,
				MedicineName: medicine.Name,
				Quantity:     line.Quantity,
				PriceAtSale:  line.UnitPrice,
			}
			if err := l.InsertItem(ctx, &item); err != nil {
				return err
			}
			if err := l.AdjustStock(ctx, medicine.ID, -line.Quantity); err != nil {
				return err
			}
			items = append(items, item)
		}

		sale.TotalAmount = totalAmount(items, sale.DeliveryFee)
		if err := l.UpdateSale(ctx, sale); err != nil {
			return err
		}
		sale.Items = items
		result = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// prepareSale either creates the new sale row or restores and strips an
// existing one so the cart can be reapplied from scratch.
func (e *Engine) prepareSale(ctx context.Context, l Ledger, input CheckoutInput) (*domain.Sale, error) {
	if input.AmendSaleID == nil {
		sale := &domain.Sale{
			ReceiptNo:       input.ReceiptNo,
			CreatedBy:       input.ActorID,
			DeliveryFee:     input.DeliveryFee,
			CustomerName:    input.CustomerName,
			CustomerPhone:   input.CustomerPhone,
			CustomerAddress: input.CustomerAddress,
		}
		if input.ActorName != "" {
			name := input.ActorName
			sale.CreatedByName = &name
		}
		if err := l.InsertSale(ctx, sale); err != nil {
			return nil, err
		}
		return sale, nil
	}

	sale, err := l.SaleForUpdate(ctx, *input.AmendSaleID)
	if err != nil {
		return nil, err
	}

	// Return every previously sold unit to stock before the old items go.
	// A later stock failure rolls this back together with everything else.
	existing, err := l.ItemsBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	for _, item := range existing {
		if err := l.AdjustStock(ctx, item.MedicineID, item.Quantity); err != nil {
			return nil, err
		}
	}
	if err := l.DeleteItemsBySale(ctx, sale.ID); err != nil {
		return nil, err
	}

	sale.DeliveryFee = input.DeliveryFee
	sale.CustomerName = input.CustomerName
	sale.CustomerPhone = input.CustomerPhone
	sale.CustomerAddress = input.CustomerAddress
	sale.CreatedBy = input.ActorID
	if input.ActorName != "" {
		name := input.ActorName
		sale.CreatedByName = &name
	}
	return sale, nil
}

func validate(input CheckoutInput) error {
	if input.DeliveryFee < 0 {
		return ValidationError{Reason: "delivery fee cannot be negative"}
	}
	if input.AmendSaleID == nil && len(input.Cart) == 0 {
		return ValidationError{Reason: "cart is empty"}
	}
	for _, line := range input.Cart {
		if line.MedicineID <= 0 {
			return ValidationError{Reason: "cart line is missing a medicine id"}
		}
		if line.Quantity <= 0 {
			return ValidationError{Reason: "cart line quantity must be positive"}
		}
		if line.UnitPrice < 0 {
			return ValidationError{Reason: "cart line price cannot be negative"}
		}
	}
	return nil
}

func totalAmount(items []domain.SaleItem, deliveryFee int64) int64 {
	total := deliveryFee
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
