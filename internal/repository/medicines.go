package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ncpharmacy/backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

type MedicineListFilter struct {
	Search          string
	Category        string
	IncludeInactive bool
	Limit           int
	Offset          int
}

type MedicinePatch struct {
	Code            *string
	Name            *string
	Brand           *string
	Category        *string
	UnitsPerPackage *int
	PackageType     *string
	Quantity        *int
	PurchasePrice   *int64
	SellingPrice    *int64
	PurchaseDate    *time.Time
	ExpiryDate      *time.Time
	Description     *string
	DosageForm      *string
	SupplierName    *string
	StorageInfo     *string
	Location        *string
}

const medicineColumns = `
	id,
	code,
	name,
	brand,
	category,
	units_per_package,
	package_type,
	quantity,
	purchase_price,
	selling_price,
	purchase_date,
	expiry_date,
	description,
	dosage_form,
	supplier_name,
	storage_info,
	location,
	is_active,
	created_at,
	updated_at
`

func (r *Repository) ListMedicines(ctx context.Context, filter MedicineListFilter) ([]domain.Medicine, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)
	search := strings.TrimSpace(filter.Search)
	category := strings.TrimSpace(filter.Category)

	query := `
		SELECT ` + medicineColumns + `
		FROM medicines
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
	`
	args := []any{search, category}
	if !filter.IncludeInactive {
		query += " AND is_active"
	}
	query += fmt.Sprintf(" ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	defer rows.Close()

	medicines := make([]domain.Medicine, 0, limit)
	for rows.Next() {
		med, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		medicines = append(medicines, med)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate medicines: %w", err)
	}
	return medicines, nil
}

func (r *Repository) GetMedicine(ctx context.Context, id int64) (*domain.Medicine, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id)
	med, err := scanMedicine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get medicine %d: %w", id, err)
	}
	return &med, nil
}

func (r *Repository) CreateMedicine(ctx context.Context, med domain.Medicine) (*domain.Medicine, error) {
	if err := validateMedicine(&med); err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO medicines (
			code, name, brand, category, units_per_package, package_type,
			quantity, purchase_price, selling_price, purchase_date, expiry_date,
			description, dosage_form, supplier_name, storage_info, location
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+medicineColumns,
		med.Code, med.Name, med.Brand, med.Category, med.UnitsPerPackage, med.PackageType,
		med.Quantity, med.PurchasePrice, med.SellingPrice, med.PurchaseDate, med.ExpiryDate,
		med.Description, med.DosageForm, med.SupplierName, med.StorageInfo, med.Location,
	)
	created, err := scanMedicine(row)
	if err != nil {
		return nil, fmt.Errorf("create medicine: %w", err)
	}
	return &created, nil
}

func (r *Repository) UpdateMedicine(ctx context.Context, id int64, patch MedicinePatch) (*domain.Medicine, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update medicine tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1 FOR UPDATE`, id)
	med, err := scanMedicine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load medicine for update: %w", err)
	}

	applyMedicinePatch(&med, patch)
	if err := validateMedicine(&med); err != nil {
		return nil, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE medicines
		SET
			code = $2,
			name = $3,
			brand = $4,
			category = $5,
			units_per_package = $6,
			package_type = $7,
			quantity = $8,
			purchase_price = $9,
			selling_price = $10,
			purchase_date = $11,
			expiry_date = $12,
			description = $13,
			dosage_form = $14,
			supplier_name = $15,
			storage_info = $16,
			location = $17,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+medicineColumns,
		id,
		med.Code, med.Name, med.Brand, med.Category, med.UnitsPerPackage, med.PackageType,
		med.Quantity, med.PurchasePrice, med.SellingPrice, med.PurchaseDate, med.ExpiryDate,
		med.Description, med.DosageForm, med.SupplierName, med.StorageInfo, med.Location,
	)
	updated, err := scanMedicine(row)
	if err != nil {
		return nil, fmt.Errorf("update medicine: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update medicine tx: %w", err)
	}
	return &updated, nil
}

// DeactivateMedicine soft-deletes: the row stays so old sale items keep
// their reference, but the medicine disappears from listings and sale.
func (r *Repository) DeactivateMedicine(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE medicines
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate medicine %d: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertImportRows applies a parsed spreadsheet in one transaction,
// matching rows to existing medicines by code. This is the plain field
// update pathway; it does not create sales.
func (r *Repository) UpsertImportRows(ctx context.Context, rows []domain.ImportRow) (int, int, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created := 0
	updated := 0
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		if code == "" {
			continue
		}

		var existingID int64
		err := tx.QueryRow(ctx, "SELECT id FROM medicines WHERE code = $1 ORDER BY id ASC LIMIT 1", code).Scan(&existingID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, fmt.Errorf("query existing medicine %q: %w", code, err)
		}

		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := tx.Exec(ctx, `
				INSERT INTO medicines (
					code, name, brand, category, units_per_package, package_type,
					quantity, purchase_price, selling_price, purchase_date, expiry_date
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`,
				code, row.Name, row.Brand, row.Category, row.UnitsPerPackage, row.PackageType,
				row.Quantity, row.PurchasePrice, row.SellingPrice, row.PurchaseDate, row.ExpiryDate,
			); err != nil {
				return 0, 0, fmt.Errorf("insert imported medicine %q: %w", code, err)
			}
			created++
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE medicines
			SET
				name = $2,
				brand = $3,
				category = $4,
				units_per_package = $5,
				package_type = $6,
				quantity = $7,
				purchase_price = $8,
				selling_price = $9,
				purchase_date = $10,
				expiry_date = $11,
				updated_at = NOW()
			WHERE id = $1
		`,
			existingID, row.Name, row.Brand, row.Category, row.UnitsPerPackage, row.PackageType,
			row.Quantity, row.PurchasePrice, row.SellingPrice, row.PurchaseDate, row.ExpiryDate,
		); err != nil {
			return 0, 0, fmt.Errorf("update imported medicine %q: %w", code, err)
		}
		updated++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit import tx: %w", err)
	}
	return created, updated, nil
}

// AllMedicinesForExport returns every row, inactive ones included, in
// name order for the export file.
func (r *Repository) AllMedicinesForExport(ctx context.Context) ([]domain.Medicine, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+medicineColumns+` FROM medicines ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("export medicines: %w", err)
	}
	defer rows.Close()

	medicines := make([]domain.Medicine, 0)
	for rows.Next() {
		med, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		medicines = append(medicines, med)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export medicines: %w", err)
	}
	return medicines, nil
}

func validateMedicine(med *domain.Medicine) error {
	med.Name = strings.TrimSpace(med.Name)
	if med.Name == "" {
		return fmt.Errorf("name is required")
	}
	if med.ExpiryDate.IsZero() {
		return fmt.Errorf("expiry_date is required")
	}
	if med.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if med.PurchasePrice < 0 || med.SellingPrice < 0 {
		return fmt.Errorf("prices cannot be negative")
	}
	if med.UnitsPerPackage <= 0 {
		med.UnitsPerPackage = 1
	}
	med.Category = domain.NormalizeCategory(med.Category)
	return nil
}

func applyMedicinePatch(med *domain.Medicine, patch MedicinePatch) {
	if patch.Code != nil {
		med.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.Name != nil {
		med.Name = *patch.Name
	}
	if patch.Brand != nil {
		med.Brand = *patch.Brand
	}
	if patch.Category != nil {
		med.Category = *patch.Category
	}
	if patch.UnitsPerPackage != nil {
		med.UnitsPerPackage = *patch.UnitsPerPackage
	}
	if patch.PackageType != nil {
		med.PackageType = *patch.PackageType
	}
	if patch.Quantity != nil {
		med.Quantity = *patch.Quantity
	}
	if patch.PurchasePrice != nil {
		med.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SellingPrice != nil {
		med.SellingPrice = *patch.SellingPrice
	}
	if patch.PurchaseDate != nil {
		med.PurchaseDate = patch.PurchaseDate
	}
	if patch.ExpiryDate != nil {
		med.ExpiryDate = *patch.ExpiryDate
	}
	if patch.Description != nil {
		med.Description = *patch.Description
	}
	if patch.DosageForm != nil {
		med.DosageForm = *patch.DosageForm
	}
	if patch.SupplierName != nil {
		med.SupplierName = *patch.SupplierName
	}
	if patch.StorageInfo != nil {
		med.StorageInfo = *patch.StorageInfo
	}
	if patch.Location != nil {
		med.Location = *patch.Location
	}
}

func scanMedicine(row pgx.Row) (domain.Medicine, error) {
	var (
		med          domain.Medicine
		purchaseDate *time.Time
	)
	if err := row.Scan(
		&med.ID,
		&med.Code,
		&med.Name,
		&med.Brand,
		&med.Category,
		&med.UnitsPerPackage,
		&med.PackageType,
		&med.Quantity,
		&med.PurchasePrice,
		&med.SellingPrice,
		&purchaseDate,
		&med.ExpiryDate,
		&med.Description,
		&med.DosageForm,
		&med.SupplierName,
		&med.StorageInfo,
		&med.Location,
		&med.IsActive,
		&med.CreatedAt,
		&med.UpdatedAt,
	); err != nil {
		return domain.Medicine{}, err
	}
	med.PurchaseDate = purchaseDate
	return med, nil
}
