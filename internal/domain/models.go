package domain

import (
	"strings"
	"time"
)

// Medicine categories match the fixed tag list used by the pharmacy.
// Unknown category values fall back to CategoryOther.
const CategoryOther = "Other"

var Categories = []string{
	"Painkillers",
	"Antibiotics",
	"Antipyretics",
	"Antihistamines",
	"Antacids",
	"Antidiabetics",
	"Antihypertensives",
	"Cough & Cold",
	"Antiseptics",
	"Vitamins & Supplements",
	CategoryOther,
}

// NormalizeCategory maps arbitrary input to a known category tag.
func NormalizeCategory(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, category := range Categories {
		if strings.EqualFold(category, trimmed) {
			return category
		}
	}
	return CategoryOther
}

type Medicine struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	Brand           string     `json:"brand"`
	Category        string     `json:"category"`
	UnitsPerPackage int        `json:"units_per_package"`
	PackageType     string     `json:"package_type"`
	Quantity        int        `json:"quantity"`
	PurchasePrice   int64      `json:"purchase_price"`
	SellingPrice    int64      `json:"selling_price"`
	PurchaseDate    *time.Time `json:"purchase_date,omitempty"`
	ExpiryDate      time.Time  `json:"expiry_date"`
	Description     string     `json:"description,omitempty"`
	DosageForm      string     `json:"dosage_form,omitempty"`
	SupplierName    string     `json:"supplier_name,omitempty"`
	StorageInfo     string     `json:"storage_info,omitempty"`
	Location        string     `json:"location,omitempty"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Annotations computed against the Threshold row on listing.
	IsLowStock     bool `json:"is_low_stock,omitempty"`
	IsExpiringSoon bool `json:"is_expiring_soon,omitempty"`
}

type Sale struct {
	ID              int64      `json:"id"`
	ReceiptNo       string     `json:"receipt_no"`
	CreatedAt       time.Time  `json:"created_at"`
	CreatedBy       *int64     `json:"created_by,omitempty"`
	CreatedByName   *string    `json:"created_by_name,omitempty"`
	DeliveryFee     int64      `json:"delivery_fee"`
	TotalAmount     int64      `json:"total_amount"`
	CustomerName    string     `json:"customer_name,omitempty"`
	CustomerPhone   string     `json:"customer_phone,omitempty"`
	CustomerAddress string     `json:"customer_address,omitempty"`
	Items           []SaleItem `json:"items,omitempty"`
}

// ItemsOnlyTotal is the sale total without the delivery fee.
func (s Sale) ItemsOnlyTotal() int64 {
	return s.TotalAmount - s.DeliveryFee
}

type SaleItem struct {
	ID           int64  `json:"id"`
	SaleID       int64  `json:"sale_id"`
	MedicineID   int64  `json:"medicine_id"`
	MedicineName string `json:"medicine_name,omitempty"`
	Quantity     int    `json:"quantity"`
	PriceAtSale  int64  `json:"price_at_sale"`
}

func (i SaleItem) Subtotal() int64 {
	return int64(i.Quantity) * i.PriceAtSale
}

// CartLine is one requested line of a checkout, in caller order.
type CartLine struct {
	MedicineID int64 `json:"medicine_id"`
	Quantity   int   `json:"quantity"`
	UnitPrice  int64 `json:"unit_price"`
}

// Threshold is the singleton alerting configuration.
type Threshold struct {
	LowStockThreshold   int `json:"low_stock_threshold"`
	ExpiryThresholdDays int `json:"expiry_threshold_days"`
}

// PharmacyInfo is the singleton shop identity shown on receipts.
type PharmacyInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Phone2  string `json:"phone_2,omitempty"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Permission codes mirror the actions the HTTP layer guards.
const (
	PermAddMedicine     = "add_medicine"
	PermChangeMedicine  = "change_medicine"
	PermDeleteMedicine  = "delete_medicine"
	PermChangeThreshold = "change_threshold"
	PermAddSale         = "add_sale"
	PermChangeSale      = "change_sale"
	PermViewSale        = "view_sale"
)

var AllPermissions = []string{
	PermAddMedicine,
	PermChangeMedicine,
	PermDeleteMedicine,
	PermChangeThreshold,
	PermAddSale,
	PermChangeSale,
	PermViewSale,
}

type StaffUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPermission reports whether the user may perform the named action.
// Admins hold every permission implicitly.
func (u StaffUser) HasPermission(code string) bool {
	if u.Role == RoleAdmin {
		return true
	}
	for _, granted := range u.Permissions {
		if granted == code {
			return true
		}
	}
	return false
}

// MonthlySales groups a month's sales for the report view.
type MonthlySales struct {
	Month        string `json:"month"`
	MonthlyTotal int64  `json:"monthly_total"`
	Sales        []Sale `json:"sales"`
}

// ImportRow is one parsed spreadsheet row of the inventory import file.
type ImportRow struct {
	Code            string
	Name            string
	Brand           string
	Category        string
	UnitsPerPackage int
	PackageType     string
	Quantity        int
	PurchasePrice   int64
	SellingPrice    int64
	PurchaseDate    *time.Time
	ExpiryDate      time.Time
}

// ImportResult summarizes an inventory import run.
type ImportResult struct {
	TotalRows int      `json:"total_rows"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Warnings  []string `json:"warnings,omitempty"`
}
