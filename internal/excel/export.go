package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"ncpharmacy/backend/internal/domain"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"Code", "Name", "Brand", "Category", "Units per Package", "Package Type",
	"Stock Quantity", "Purchase Price", "Selling Price", "Purchase Date", "Expiry Date",
}

// WriteInventoryXLSX renders the full inventory as a single-sheet workbook.
func WriteInventoryXLSX(w io.Writer, medicines []domain.Medicine) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Inventory"
	index, err := file.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeader))
	for i, col := range exportHeader {
		header[i] = col
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for i, medicine := range medicines {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		row := []interface{}{
			medicine.Code,
			medicine.Name,
			medicine.Brand,
			medicine.Category,
			medicine.UnitsPerPackage,
			medicine.PackageType,
			medicine.Quantity,
			medicine.PurchasePrice,
			medicine.SellingPrice,
			formatDate(medicine.PurchaseDate),
			medicine.ExpiryDate.Format("2006-01-02"),
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteInventoryCSV writes the same eleven columns as the xlsx export.
func WriteInventoryCSV(w io.Writer, medicines []domain.Medicine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, medicine := range medicines {
		record := []string{
			medicine.Code,
			medicine.Name,
			medicine.Brand,
			medicine.Category,
			strconv.Itoa(medicine.UnitsPerPackage),
			medicine.PackageType,
			strconv.Itoa(medicine.Quantity),
			strconv.FormatInt(medicine.PurchasePrice, 10),
			strconv.FormatInt(medicine.SellingPrice, 10),
			formatDate(medicine.PurchaseDate),
			medicine.ExpiryDate.Format("2006-01-02"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
