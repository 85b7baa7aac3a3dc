package sales

import "fmt"

// ValidationError rejects malformed checkout input before any state change.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

// MedicineNotFoundError marks a cart line referencing a missing or
// deactivated medicine.
type MedicineNotFoundError struct {
	MedicineID int64
}

func (e MedicineNotFoundError) Error() string {
	return fmt.Sprintf("medicine %d not found", e.MedicineID)
}

// SaleNotFoundError marks an amend request against a nonexistent sale.
type SaleNotFoundError struct {
	SaleID int64
}

func (e SaleNotFoundError) Error() string {
	return fmt.Sprintf("sale %d not found", e.SaleID)
}

// InsufficientStockError aborts a checkout whose cart asks for more units
// than the medicine currently holds.
type InsufficientStockError struct {
	MedicineID int64
	Name       string
	Requested  int
	Available  int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}
