package repository

import (
	"context"
	"errors"
	"fmt"

	"ncpharmacy/backend/internal/domain"
	"ncpharmacy/backend/internal/sales"

	"github.com/jackc/pgx/v5"
)

// InSaleTx runs fn inside one transaction whose ledger takes FOR UPDATE
// locks on every medicine and sale row it touches, so concurrent
// checkouts against the same medicine serialize and can never overdraw.
func (r *Repository) InSaleTx(ctx context.Context, fn func(sales.Ledger) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&saleTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sale tx: %w", err)
	}
	return nil
}

type saleTx struct {
	tx pgx.Tx
}

func (s *saleTx) MedicineForUpdate(ctx context.Context, id int64) (*domain.Medicine, error) {
	row := s.tx.QueryRow(ctx, `
		SELECT `+medicineColumns+`
		FROM medicines
		WHERE id = $1 AND is_active
		FOR UPDATE
	`, id)
	med, err := scanMedicine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sales.MedicineNotFoundError{MedicineID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("lock medicine %d: %w", id, err)
	}
	return &med, nil
}

func (s *saleTx) AdjustStock(ctx context.Context, medicineID int64, delta int) error {
	// The quantity >= 0 CHECK is the hard floor; this guard keeps the
	// error readable instead of surfacing a constraint violation.
	cmd, err := s.tx.Exec(ctx, `
		UPDATE medicines
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
	`, medicineID, delta)
	if err != nil {
		return fmt.Errorf("adjust stock for medicine %d: %w", medicineID, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("stock adjustment refused for medicine %d", medicineID)
	}
	return nil
}

func (s *saleTx) SaleForUpdate(ctx context.Context, id int64) (*domain.Sale, error) {
	row := s.tx.QueryRow(ctx, `
		SELECT id, receipt_no, created_at, created_by, created_by_name,
		       delivery_fee, total_amount, customer_name, customer_phone, customer_address
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id)
	sale, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sales.SaleNotFoundError{SaleID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("lock sale %d: %w", id, err)
	}
	return &sale, nil
}

func (s *saleTx) InsertSale(ctx context.Context, sale *domain.Sale) error {
	if err := s.tx.QueryRow(ctx, `
		INSERT INTO sales (
			receipt_no, created_by, created_by_name, delivery_fee,
			customer_name, customer_phone, customer_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		sale.ReceiptNo, sale.CreatedBy, sale.CreatedByName, sale.DeliveryFee,
		sale.CustomerName, sale.CustomerPhone, sale.CustomerAddress,
	).Scan(&sale.ID, &sale.CreatedAt); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (s *saleTx) UpdateSale(ctx context.Context, sale *domain.Sale) error {
	cmd, err := s.tx.Exec(ctx, `
		UPDATE sales
		SET
			created_by = $2,
			created_by_name = $3,
			delivery_fee = $4,
			total_amount = $5,
			customer_name = $6,
			customer_phone = $7,
			customer_address = $8
		WHERE id = $1
	`,
		sale.ID, sale.CreatedBy, sale.CreatedByName, sale.DeliveryFee,
		sale.TotalAmount, sale.CustomerName, sale.CustomerPhone, sale.CustomerAddress,
	)
	if err != nil {
		return fmt.Errorf("update sale %d: %w", sale.ID, err)
	}
	if cmd.RowsAffected() == 0 {
		return sales.SaleNotFoundError{SaleID: sale.ID}
	}
	return nil
}

func (s *saleTx) ItemsBySale(ctx context.Context, saleID int64) ([]domain.SaleItem, error) {
	return querySaleItems(ctx, s.tx, saleID)
}

func (s *saleTx) DeleteItemsBySale(ctx context.Context, saleID int64) error {
	if _, err := s.tx.Exec(ctx, "DELETE FROM sale_items WHERE sale_id = $1", saleID); err != nil {
		return fmt.Errorf("delete sale items %d: %w", saleID, err)
	}
	return nil
}

func (s *saleTx) InsertItem(ctx context.Context, item *domain.SaleItem) error {
	if err := s.tx.QueryRow(ctx, `
		INSERT INTO sale_items (sale_id, medicine_id, quantity, price_at_sale)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, item.SaleID, item.MedicineID, item.Quantity, item.PriceAtSale).Scan(&item.ID); err != nil {
		return fmt.Errorf("insert sale item: %w", err)
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func querySaleItems(ctx context.Context, q queryer, saleID int64) ([]domain.SaleItem, error) {
	rows, err := q.Query(ctx, `
		SELECT si.id, si.sale_id, si.medicine_id, m.name, si.quantity, si.price_at_sale
		FROM sale_items si
		JOIN medicines m ON m.id = si.medicine_id
		WHERE si.sale_id = $1
		ORDER BY si.id ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("query sale items %d: %w", saleID, err)
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&item.MedicineID,
			&item.MedicineName,
			&item.Quantity,
			&item.PriceAtSale,
		); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items %d: %w", saleID, err)
	}
	return items, nil
}

func (r *Repository) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, receipt_no, created_at, created_by, created_by_name,
		       delivery_fee, total_amount, customer_name, customer_phone, customer_address
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale %d: %w", id, err)
	}

	items, err := querySaleItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (r *Repository) ListSales(ctx context.Context, limit, offset int) ([]domain.Sale, error) {
	limit = normalizeLimit(limit)
	offset = normalizeOffset(offset)

	rows, err := r.pool.Query(ctx, `
		SELECT id, receipt_no, created_at, created_by, created_by_name,
		       delivery_fee, total_amount, customer_name, customer_phone, customer_address
		FROM sales
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		result = append(result, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return result, nil
}

func (r *Repository) TotalRevenue(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(total_amount), 0) FROM sales",
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("total revenue: %w", err)
	}
	return total, nil
}

func scanSale(row pgx.Row) (domain.Sale, error) {
	var sale domain.Sale
	if err := row.Scan(
		&sale.ID,
		&sale.ReceiptNo,
		&sale.CreatedAt,
		&sale.CreatedBy,
		&sale.CreatedByName,
		&sale.DeliveryFee,
		&sale.TotalAmount,
		&sale.CustomerName,
		&sale.CustomerPhone,
		&sale.CustomerAddress,
	); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}
