package excel

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	file := excelize.NewFile()
	defer file.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := file.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestParseXLSXWithAliasedHeaders(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Code", "Medicine Name", "Brand Name", "Category", "Qty", "Buy Price", "Sell Price", "Expire Date"},
		{"AMX-500", "Amoxicillin 500mg", "Medico", "Antibiotics", "40", "900", "1200", "2027-03-01"},
		{"", "row without code is skipped", "", "", "1", "1", "1", "2027-01-01"},
	})

	rows, warnings, err := ParseInventoryFile("stock.xlsx", buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.Code != "AMX-500" || row.Name != "Amoxicillin 500mg" || row.Brand != "Medico" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Category != "Antibiotics" {
		t.Fatalf("category = %q", row.Category)
	}
	if row.Quantity != 40 || row.PurchasePrice != 900 || row.SellingPrice != 1200 {
		t.Fatalf("numbers wrong: %+v", row)
	}
	want := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	if !row.ExpiryDate.Equal(want) {
		t.Fatalf("expiry = %v, want %v", row.ExpiryDate, want)
	}
}

func TestParseCSV(t *testing.T) {
	input := "\xef\xbb\xbfcode,name,expiry_date,stock_quantity,category\n" +
		"PAR-650,Paracetamol 650,2026-12-31,100,painkillers\n" +
		"BAD-1,Broken Date,not-a-date,5,Other\n"

	rows, warnings, err := ParseInventoryFile("stock.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Code != "PAR-650" || rows[0].Quantity != 100 {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if rows[0].Category != "Painkillers" {
		t.Fatalf("category not normalized: %q", rows[0].Category)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "invalid expiry date") {
		t.Fatalf("expected bad-date warning, got %v", warnings)
	}
}

func TestParseMissingRequiredColumn(t *testing.T) {
	input := "name,stock_quantity\nAspirin,10\n"
	_, _, err := ParseInventoryFile("stock.csv", strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "missing required column") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestParseUnsupportedExtension(t *testing.T) {
	_, _, err := ParseInventoryFile("stock.pdf", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "unsupported file format") {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestParseDefaultsUnitsAndCategory(t *testing.T) {
	input := "code,name,expiry_date\nX-1,Plain Row,2027-01-01\n"
	rows, _, err := ParseInventoryFile("stock.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rows[0].UnitsPerPackage != 1 {
		t.Fatalf("units per package = %d, want 1", rows[0].UnitsPerPackage)
	}
	if rows[0].Category != "Other" {
		t.Fatalf("category = %q, want Other", rows[0].Category)
	}
}
