package excel

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"ncpharmacy/backend/internal/domain"

	"github.com/xuri/excelize/v2"
)

func sampleMedicines() []domain.Medicine {
	purchase := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	return []domain.Medicine{
		{
			Code:            "AMX-500",
			Name:            "Amoxicillin 500mg",
			Brand:           "Medico",
			Category:        "Antibiotics",
			UnitsPerPackage: 10,
			PackageType:     "strip",
			Quantity:        40,
			PurchasePrice:   900,
			SellingPrice:    1200,
			PurchaseDate:    &purchase,
			ExpiryDate:      time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestWriteInventoryCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteInventoryCSV(&buf, sampleMedicines()); err != nil {
		t.Fatalf("export: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}
	if records[0][0] != "Code" || records[0][10] != "Expiry Date" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[0] != "AMX-500" || row[6] != "40" || row[9] != "2026-01-10" || row[10] != "2027-03-01" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestExportRoundTripsThroughImport(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteInventoryXLSX(&buf, sampleMedicines()); err != nil {
		t.Fatalf("export: %v", err)
	}

	file, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer file.Close()
	if sheets := file.GetSheetList(); len(sheets) != 1 || sheets[0] != "Inventory" {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	rows, warnings, err := ParseInventoryFile("inventory.xlsx", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse exported file: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Code != "AMX-500" || rows[0].Quantity != 40 || rows[0].SellingPrice != 1200 {
		t.Fatalf("round trip mismatch: %+v", rows[0])
	}
}
