package repository

import (
	"context"
	"fmt"

	"ncpharmacy/backend/internal/domain"
)

// GetThreshold returns the singleton alert configuration, creating it
// with defaults on first use.
func (r *Repository) GetThreshold(ctx context.Context) (domain.Threshold, error) {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO thresholds (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`); err != nil {
		return domain.Threshold{}, fmt.Errorf("ensure threshold row: %w", err)
	}

	var t domain.Threshold
	if err := r.pool.QueryRow(ctx,
		"SELECT low_stock_threshold, expiry_threshold_days FROM thresholds WHERE id = 1",
	).Scan(&t.LowStockThreshold, &t.ExpiryThresholdDays); err != nil {
		return domain.Threshold{}, fmt.Errorf("get threshold: %w", err)
	}
	return t, nil
}

func (r *Repository) UpdateThreshold(ctx context.Context, t domain.Threshold) (domain.Threshold, error) {
	if t.LowStockThreshold < 0 || t.ExpiryThresholdDays < 0 {
		return domain.Threshold{}, fmt.Errorf("thresholds cannot be negative")
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO thresholds (id, low_stock_threshold, expiry_threshold_days)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			expiry_threshold_days = EXCLUDED.expiry_threshold_days
	`, t.LowStockThreshold, t.ExpiryThresholdDays); err != nil {
		return domain.Threshold{}, fmt.Errorf("update threshold: %w", err)
	}
	return t, nil
}

func (r *Repository) GetPharmacyInfo(ctx context.Context) (domain.PharmacyInfo, error) {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO pharmacy_info (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`); err != nil {
		return domain.PharmacyInfo{}, fmt.Errorf("ensure pharmacy info row: %w", err)
	}

	var info domain.PharmacyInfo
	if err := r.pool.QueryRow(ctx,
		"SELECT name, address, phone, phone_2 FROM pharmacy_info WHERE id = 1",
	).Scan(&info.Name, &info.Address, &info.Phone, &info.Phone2); err != nil {
		return domain.PharmacyInfo{}, fmt.Errorf("get pharmacy info: %w", err)
	}
	return info, nil
}

func (r *Repository) UpdatePharmacyInfo(ctx context.Context, info domain.PharmacyInfo) (domain.PharmacyInfo, error) {
	if info.Name == "" {
		return domain.PharmacyInfo{}, fmt.Errorf("pharmacy name is required")
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO pharmacy_info (id, name, address, phone, phone_2)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			phone_2 = EXCLUDED.phone_2
	`, info.Name, info.Address, info.Phone, info.Phone2); err != nil {
		return domain.PharmacyInfo{}, fmt.Errorf("update pharmacy info: %w", err)
	}
	return info, nil
}
