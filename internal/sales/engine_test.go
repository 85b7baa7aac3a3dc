package sales

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ncpharmacy/backend/internal/domain"
)

// memStore is an in-memory Ledger with snapshot-based transactions: a
// failed InSaleTx restores the pre-transaction state, mirroring what the
// postgres store does with a real rollback.
type memStore struct {
	medicines  map[int64]*domain.Medicine
	sales      map[int64]*domain.Sale
	items      map[int64][]domain.SaleItem
	nextSaleID int64
	nextItemID int64
}

func newMemStore() *memStore {
	return &memStore{
		medicines:  map[int64]*domain.Medicine{},
		sales:      map[int64]*domain.Sale{},
		items:      map[int64][]domain.SaleItem{},
		nextSaleID: 1,
		nextItemID: 1,
	}
}

func (m *memStore) addMedicine(id int64, name string, qty int, price int64) {
	m.medicines[id] = &domain.Medicine{
		ID: id, Name: name, Quantity: qty, SellingPrice: price, IsActive: true,
	}
}

func (m *memStore) snapshot() *memStore {
	clone := newMemStore()
	clone.nextSaleID = m.nextSaleID
	clone.nextItemID = m.nextItemID
	for id, med := range m.medicines {
		copied := *med
		clone.medicines[id] = &copied
	}
	for id, sale := range m.sales {
		copied := *sale
		clone.sales[id] = &copied
	}
	for id, items := range m.items {
		clone.items[id] = append([]domain.SaleItem(nil), items...)
	}
	return clone
}

func (m *memStore) restore(from *memStore) {
	m.medicines = from.medicines
	m.sales = from.sales
	m.items = from.items
	m.nextSaleID = from.nextSaleID
	m.nextItemID = from.nextItemID
}

func (m *memStore) InSaleTx(_ context.Context, fn func(Ledger) error) error {
	before := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *memStore) MedicineForUpdate(_ context.Context, id int64) (*domain.Medicine, error) {
	med, ok := m.medicines[id]
	if !ok || !med.IsActive {
		return nil, MedicineNotFoundError{MedicineID: id}
	}
	copied := *med
	return &copied, nil
}

func (m *memStore) AdjustStock(_ context.Context, medicineID int64, delta int) error {
	med, ok := m.medicines[medicineID]
	if !ok {
		return MedicineNotFoundError{MedicineID: medicineID}
	}
	if med.Quantity+delta < 0 {
		return fmt.Errorf("stock underflow for medicine %d", medicineID)
	}
	med.Quantity += delta
	return nil
}

func (m *memStore) SaleForUpdate(_ context.Context, id int64) (*domain.Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return nil, SaleNotFoundError{SaleID: id}
	}
	copied := *sale
	return &copied, nil
}

func (m *memStore) InsertSale(_ context.Context, sale *domain.Sale) error {
	sale.ID = m.nextSaleID
	m.nextSaleID++
	copied := *sale
	m.sales[sale.ID] = &copied
	return nil
}

func (m *memStore) UpdateSale(_ context.Context, sale *domain.Sale) error {
	if _, ok := m.sales[sale.ID]; !ok {
		return SaleNotFoundError{SaleID: sale.ID}
	}
	copied := *sale
	m.sales[sale.ID] = &copied
	return nil
}

func (m *memStore) ItemsBySale(_ context.Context, saleID int64) ([]domain.SaleItem, error) {
	return append([]domain.SaleItem(nil), m.items[saleID]...), nil
}

func (m *memStore) DeleteItemsBySale(_ context.Context, saleID int64) error {
	delete(m.items, saleID)
	return nil
}

func (m *memStore) InsertItem(_ context.Context, item *domain.SaleItem) error {
	item.ID = m.nextItemID
	m.nextItemID++
	m.items[item.SaleID] = append(m.items[item.SaleID], *item)
	return nil
}

func line(medicineID int64, qty int, price int64) domain.CartLine {
	return domain.CartLine{MedicineID: medicineID, Quantity: qty, UnitPrice: price}
}

func TestCheckoutApply(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	sale, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart:        []domain.CartLine{line(1, 3, 500)},
		DeliveryFee: 100,
		ReceiptNo:   "r-1",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if got := store.medicines[1].Quantity; got != 7 {
		t.Errorf("stock after apply = %d, want 7", got)
	}
	if sale.TotalAmount != 1600 {
		t.Errorf("total = %d, want 1600", sale.TotalAmount)
	}
	if sale.ItemsOnlyTotal() != 1500 {
		t.Errorf("items-only total = %d, want 1500", sale.ItemsOnlyTotal())
	}
	if len(sale.Items) != 1 || sale.Items[0].PriceAtSale != 500 {
		t.Errorf("unexpected items: %+v", sale.Items)
	}
}

func TestCheckoutPriceSnapshot(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Ibuprofen", 5, 900)
	engine := NewEngine(store)

	// Cart price wins over the medicine's current selling price.
	sale, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart: []domain.CartLine{line(1, 2, 750)},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if sale.Items[0].PriceAtSale != 750 {
		t.Errorf("price_at_sale = %d, want 750", sale.Items[0].PriceAtSale)
	}
	if sale.TotalAmount != 1500 {
		t.Errorf("total = %d, want 1500", sale.TotalAmount)
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	store := newMemStore()
	store.addMedicine(2, "Amoxicillin", 2, 100)
	engine := NewEngine(store)

	_, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart: []domain.CartLine{line(2, 5, 100)},
	})
	var stockErr InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 5 || stockErr.Available != 2 {
		t.Errorf("unexpected error detail: %+v", stockErr)
	}
	if got := store.medicines[2].Quantity; got != 2 {
		t.Errorf("stock changed on failed checkout: %d", got)
	}
	if len(store.sales) != 0 {
		t.Errorf("sale persisted on failed checkout")
	}
}

func TestCheckoutFailFastRollsBackEarlierLines(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	store.addMedicine(2, "Amoxicillin", 2, 100)
	engine := NewEngine(store)

	_, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart: []domain.CartLine{
			line(1, 3, 500), // fine on its own
			line(2, 5, 100), // overdraws
		},
	})
	var stockErr InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if got := store.medicines[1].Quantity; got != 10 {
		t.Errorf("earlier line not rolled back, stock = %d", got)
	}
	if got := store.medicines[2].Quantity; got != 2 {
		t.Errorf("failing line changed stock: %d", got)
	}
}

func TestCheckoutCumulativeLinesSameMedicine(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	// 6 + 6 exceeds stock even though each line alone would pass.
	_, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart: []domain.CartLine{line(1, 6, 500), line(1, 6, 500)},
	})
	var stockErr InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 4 {
		t.Errorf("second line saw stock %d, want the already-decremented 4", stockErr.Available)
	}
	if got := store.medicines[1].Quantity; got != 10 {
		t.Errorf("stock changed on failed checkout: %d", got)
	}

	// 6 + 4 exactly drains it.
	sale, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart: []domain.CartLine{line(1, 6, 500), line(1, 4, 500)},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if got := store.medicines[1].Quantity; got != 0 {
		t.Errorf("stock after drain = %d, want 0", got)
	}
	if sale.TotalAmount != 5000 {
		t.Errorf("total = %d, want 5000", sale.TotalAmount)
	}
}

func TestAmendReplacesCart(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	sale, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart:        []domain.CartLine{line(1, 3, 500)},
		DeliveryFee: 100,
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	amended, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart:        []domain.CartLine{line(1, 5, 500)},
		DeliveryFee: 200,
		AmendSaleID: &sale.ID,
	})
	if err != nil {
		t.Fatalf("amend failed: %v", err)
	}
	if got := store.medicines[1].Quantity; got != 5 {
		t.Errorf("stock after amend = %d, want 5", got)
	}
	if amended.TotalAmount != 2700 {
		t.Errorf("total after amend = %d, want 2700", amended.TotalAmount)
	}
	if amended.ID != sale.ID {
		t.Errorf("amend created a new sale: %d != %d", amended.ID, sale.ID)
	}
}

func TestAmendIdenticalCartIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	input := CheckoutInput{
		Cart:        []domain.CartLine{line(1, 4, 500)},
		DeliveryFee: 50,
	}
	sale, err := engine.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	input.AmendSaleID = &sale.ID
	amended, err := engine.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("amend failed: %v", err)
	}
	if got := store.medicines[1].Quantity; got != 6 {
		t.Errorf("stock after identical amend = %d, want 6", got)
	}
	if amended.TotalAmount != sale.TotalAmount {
		t.Errorf("total changed on identical amend: %d != %d", amended.TotalAmount, sale.TotalAmount)
	}
}

func TestAmendWithEmptyCartRestoresStock(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	sale, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart:        []domain.CartLine{line(1, 7, 500)},
		DeliveryFee: 120,
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	amended, err := engine.Checkout(context.Background(), CheckoutInput{
		DeliveryFee: 120,
		AmendSaleID: &sale.ID,
	})
	if err != nil {
		t.Fatalf("amend failed: %v", err)
	}
	if got := store.medicines[1].Quantity; got != 10 {
		t.Errorf("stock after empty amend = %d, want 10", got)
	}
	if amended.TotalAmount != 120 {
		t.Errorf("total after empty amend = %d, want the delivery fee 120", amended.TotalAmount)
	}
	if len(store.items[sale.ID]) != 0 {
		t.Errorf("items survived an empty amend")
	}
}

func TestAmendFailureRollsBackRestoration(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	sale, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart:        []domain.CartLine{line(1, 3, 500)},
		DeliveryFee: 100,
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// 7 in stock + 3 restored = 10 available, so 11 must fail, and the
	// restoration must not leak.
	_, err = engine.Checkout(context.Background(), CheckoutInput{
		Cart:        []domain.CartLine{line(1, 11, 500)},
		DeliveryFee: 100,
		AmendSaleID: &sale.ID,
	})
	var stockErr InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 10 {
		t.Errorf("amend checked against %d, want post-restoration 10", stockErr.Available)
	}
	if got := store.medicines[1].Quantity; got != 7 {
		t.Errorf("stock after failed amend = %d, want the original 7", got)
	}
	items := store.items[sale.ID]
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Errorf("original items lost after failed amend: %+v", items)
	}
	if got := store.sales[sale.ID].TotalAmount; got != 1600 {
		t.Errorf("original total lost after failed amend: %d", got)
	}
}

func TestCheckoutMedicineNotFound(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	store.medicines[2] = &domain.Medicine{ID: 2, Name: "Retired", Quantity: 5, IsActive: false}
	engine := NewEngine(store)

	for _, id := range []int64{99, 2} {
		_, err := engine.Checkout(context.Background(), CheckoutInput{
			Cart: []domain.CartLine{line(id, 1, 100)},
		})
		var notFound MedicineNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("medicine %d: expected MedicineNotFoundError, got %v", id, err)
		}
	}
	if got := store.medicines[1].Quantity; got != 10 {
		t.Errorf("stock changed: %d", got)
	}
}

func TestCheckoutSaleNotFound(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	missing := int64(42)
	_, err := engine.Checkout(context.Background(), CheckoutInput{
		Cart:        []domain.CartLine{line(1, 1, 500)},
		AmendSaleID: &missing,
	})
	var notFound SaleNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected SaleNotFoundError, got %v", err)
	}
	if got := store.medicines[1].Quantity; got != 10 {
		t.Errorf("stock changed: %d", got)
	}
}

func TestCheckoutValidation(t *testing.T) {
	store := newMemStore()
	store.addMedicine(1, "Paracetamol", 10, 500)
	engine := NewEngine(store)

	cases := []struct {
		name  string
		input CheckoutInput
	}{
		{"empty cart on apply", CheckoutInput{}},
		{"zero quantity", CheckoutInput{Cart: []domain.CartLine{line(1, 0, 500)}}},
		{"negative quantity", CheckoutInput{Cart: []domain.CartLine{line(1, -1, 500)}}},
		{"negative price", CheckoutInput{Cart: []domain.CartLine{line(1, 1, -5)}}},
		{"missing medicine id", CheckoutInput{Cart: []domain.CartLine{line(0, 1, 500)}}},
		{"negative delivery fee", CheckoutInput{
			Cart:        []domain.CartLine{line(1, 1, 500)},
			DeliveryFee: -1,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Checkout(context.Background(), tc.input)
			var validation ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
	if got := store.medicines[1].Quantity; got != 10 {
		t.Errorf("stock changed by rejected input: %d", got)
	}
	if len(store.sales) != 0 {
		t.Errorf("sale persisted for rejected input")
	}
}
