// Package excel reads and writes the pharmacy's inventory spreadsheets.
// Both .xlsx and .csv files are accepted on import; headers are matched
// case-insensitively against a set of known aliases.
package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"ncpharmacy/backend/internal/domain"

	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"code":              "code",
	"name":              "name",
	"medicine name":     "name",
	"brand":             "brand",
	"brand name":        "brand",
	"category":          "category",
	"units per package": "units_per_package",
	"units pkg":         "units_per_package",
	"units/pkg":         "units_per_package",
	"package type":      "package_type",
	"stock quantity":    "quantity",
	"stock":             "quantity",
	"quantity":          "quantity",
	"qty":               "quantity",
	"purchase price":    "purchase_price",
	"buy price":         "purchase_price",
	"selling price":     "selling_price",
	"sell price":        "selling_price",
	"purchase date":     "purchase_date",
	"buy date":          "purchase_date",
	"expiry date":       "expiry_date",
	"expire date":       "expiry_date",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01-02-06",
	time.RFC3339,
}

// ParseInventoryFile dispatches on the file extension. Rows without a
// code are skipped silently (matching the manual-entry pathway); rows
// with an unparseable expiry date are skipped with a warning.
func ParseInventoryFile(filename string, reader io.Reader) ([]domain.ImportRow, []string, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".xlsx"), strings.HasSuffix(name, ".xls"):
		return parseXLSX(reader)
	case strings.HasSuffix(name, ".csv"):
		return parseCSV(reader)
	default:
		return nil, nil, fmt.Errorf("unsupported file format %q: upload a .csv or .xlsx file", filename)
	}
}

func parseXLSX(reader io.Reader) ([]domain.ImportRow, []string, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet rows: %w", err)
	}
	return rowsToImport(rows)
}

func parseCSV(reader io.Reader) ([]domain.ImportRow, []string, error) {
	buffered, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv file: %w", err)
	}
	// Tolerate a UTF-8 BOM from spreadsheet exports.
	buffered = bytes.TrimPrefix(buffered, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(buffered))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv file: %w", err)
	}
	return rowsToImport(records)
}

func rowsToImport(rows [][]string) ([]domain.ImportRow, []string, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}

	colMap := mapColumns(rows[0])
	for _, required := range []string{"code", "name", "expiry_date"} {
		if _, ok := colMap[required]; !ok {
			return nil, nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	result := make([]domain.ImportRow, 0, len(rows)-1)
	warnings := make([]string, 0)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		code := strings.TrimSpace(readCell(cells, colMap["code"]))
		if code == "" {
			continue
		}

		expiry, err := parseDate(readCell(cells, colMap["expiry_date"]))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d skipped: invalid expiry date", index+1))
			continue
		}

		row := domain.ImportRow{
			Code:            code,
			Name:            strings.TrimSpace(readCell(cells, colMap["name"])),
			ExpiryDate:      expiry,
			UnitsPerPackage: 1,
			Category:        domain.CategoryOther,
		}
		if idx, ok := colMap["brand"]; ok {
			row.Brand = strings.TrimSpace(readCell(cells, idx))
		}
		if idx, ok := colMap["category"]; ok {
			row.Category = domain.NormalizeCategory(readCell(cells, idx))
		}
		if idx, ok := colMap["package_type"]; ok {
			row.PackageType = strings.TrimSpace(readCell(cells, idx))
		}
		if idx, ok := colMap["units_per_package"]; ok {
			if raw := strings.TrimSpace(readCell(cells, idx)); raw != "" {
				value, err := parseInt(raw)
				if err != nil || value <= 0 {
					warnings = append(warnings, fmt.Sprintf("row %d: invalid units per package, using 1", index+1))
				} else {
					row.UnitsPerPackage = value
				}
			}
		}
		if idx, ok := colMap["quantity"]; ok {
			if raw := strings.TrimSpace(readCell(cells, idx)); raw != "" {
				value, err := parseInt(raw)
				if err != nil || value < 0 {
					return nil, nil, fmt.Errorf("row %d: invalid stock quantity %q", index+1, raw)
				}
				row.Quantity = value
			}
		}
		if idx, ok := colMap["purchase_price"]; ok {
			if raw := strings.TrimSpace(readCell(cells, idx)); raw != "" {
				value, err := parseMoney(raw)
				if err != nil {
					return nil, nil, fmt.Errorf("row %d: invalid purchase price %q", index+1, raw)
				}
				row.PurchasePrice = value
			}
		}
		if idx, ok := colMap["selling_price"]; ok {
			if raw := strings.TrimSpace(readCell(cells, idx)); raw != "" {
				value, err := parseMoney(raw)
				if err != nil {
					return nil, nil, fmt.Errorf("row %d: invalid selling price %q", index+1, raw)
				}
				row.SellingPrice = value
			}
		}
		if idx, ok := colMap["purchase_date"]; ok {
			if raw := strings.TrimSpace(readCell(cells, idx)); raw != "" {
				if parsed, err := parseDate(raw); err == nil {
					row.PurchaseDate = &parsed
				} else {
					warnings = append(warnings, fmt.Sprintf("row %d: invalid purchase date ignored", index+1))
				}
			}
		}

		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, warnings, fmt.Errorf("file has no valid data rows")
	}
	return result, warnings, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\uFEFF")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.ReplaceAll(value, "(", "")
	value = strings.ReplaceAll(value, ")", "")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseInt(raw string) (int, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	asFloat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

func parseMoney(raw string) (int64, error) {
	value, err := parseInt(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("cannot be negative")
	}
	return int64(value), nil
}

func parseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
