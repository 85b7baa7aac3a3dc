package domain

import "testing"

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Antibiotics", "Antibiotics"},
		{"painkillers", "Painkillers"},
		{"  cough & cold  ", "Cough & Cold"},
		{"Homeopathy", "Other"},
		{"", "Other"},
	}
	for _, tc := range cases {
		if got := NormalizeCategory(tc.in); got != tc.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSaleItemSubtotal(t *testing.T) {
	item := SaleItem{Quantity: 3, PriceAtSale: 450}
	if got := item.Subtotal(); got != 1350 {
		t.Fatalf("Subtotal = %d, want 1350", got)
	}
}

func TestSaleItemsOnlyTotal(t *testing.T) {
	sale := Sale{TotalAmount: 1600, DeliveryFee: 100}
	if got := sale.ItemsOnlyTotal(); got != 1500 {
		t.Fatalf("ItemsOnlyTotal = %d, want 1500", got)
	}
}

func TestHasPermission(t *testing.T) {
	admin := StaffUser{Role: RoleAdmin}
	for _, code := range AllPermissions {
		if !admin.HasPermission(code) {
			t.Errorf("admin should hold %s implicitly", code)
		}
	}

	staff := StaffUser{Role: RoleStaff, Permissions: []string{PermAddSale, PermViewSale}}
	if !staff.HasPermission(PermAddSale) {
		t.Error("granted permission denied")
	}
	if staff.HasPermission(PermDeleteMedicine) {
		t.Error("ungranted permission allowed")
	}
}
