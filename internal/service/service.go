// Package service wires the repository, the checkout engine, and the
// spreadsheet codecs behind one API the HTTP layer calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"ncpharmacy/backend/internal/domain"
	"ncpharmacy/backend/internal/excel"
	"ncpharmacy/backend/internal/metrics"
	"ncpharmacy/backend/internal/repository"
	"ncpharmacy/backend/internal/sales"

	"github.com/google/uuid"
)

type Service struct {
	repo    *repository.Repository
	engine  *sales.Engine
	metrics *metrics.Metrics
}

func New(repo *repository.Repository, engine *sales.Engine, m *metrics.Metrics) *Service {
	return &Service{repo: repo, engine: engine, metrics: m}
}

// --- medicines ---

func (s *Service) ListMedicines(ctx context.Context, filter repository.MedicineListFilter) ([]domain.Medicine, error) {
	medicines, err := s.repo.ListMedicines(ctx, filter)
	if err != nil {
		return nil, err
	}
	threshold, err := s.repo.GetThreshold(ctx)
	if err != nil {
		return nil, err
	}
	s.annotate(medicines, threshold)
	return medicines, nil
}

// annotate flags medicines that are low on stock or close to expiry,
// measured against the singleton threshold row.
func (s *Service) annotate(medicines []domain.Medicine, t domain.Threshold) {
	horizon := time.Now().AddDate(0, 0, t.ExpiryThresholdDays)
	for i := range medicines {
		medicines[i].IsLowStock = medicines[i].Quantity <= t.LowStockThreshold
		medicines[i].IsExpiringSoon = !medicines[i].ExpiryDate.After(horizon)
	}
}

func (s *Service) GetMedicine(ctx context.Context, id int64) (*domain.Medicine, error) {
	return s.repo.GetMedicine(ctx, id)
}

func (s *Service) CreateMedicine(ctx context.Context, med domain.Medicine) (*domain.Medicine, error) {
	med.Name = strings.TrimSpace(med.Name)
	med.Code = strings.TrimSpace(med.Code)
	med.Category = domain.NormalizeCategory(med.Category)
	return s.repo.CreateMedicine(ctx, med)
}

func (s *Service) UpdateMedicine(ctx context.Context, id int64, patch repository.MedicinePatch) (*domain.Medicine, error) {
	if patch.Category != nil {
		normalized := domain.NormalizeCategory(*patch.Category)
		patch.Category = &normalized
	}
	return s.repo.UpdateMedicine(ctx, id, patch)
}

func (s *Service) DeactivateMedicine(ctx context.Context, id int64) error {
	return s.repo.DeactivateMedicine(ctx, id)
}

// --- sales ---

// Checkout runs the engine for a new sale or an amendment. A fresh
// receipt number is minted only for new sales; amendments keep theirs.
func (s *Service) Checkout(ctx context.Context, input sales.CheckoutInput) (*domain.Sale, error) {
	if input.AmendSaleID == nil {
		input.ReceiptNo = uuid.NewString()
	}
	sale, err := s.engine.Checkout(ctx, input)
	if err != nil {
		s.metrics.SalesFailed.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	s.metrics.SalesCompleted.Inc()
	return sale, nil
}

func failureReason(err error) string {
	switch {
	case errors.As(err, &sales.InsufficientStockError{}):
		return "insufficient_stock"
	case errors.As(err, &sales.ValidationError{}):
		return "validation"
	case errors.As(err, &sales.MedicineNotFoundError{}), errors.As(err, &sales.SaleNotFoundError{}):
		return "not_found"
	default:
		return "internal"
	}
}

func (s *Service) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// MonthlyReport groups sales newest-first into per-month buckets and
// returns the all-time revenue alongside.
func (s *Service) MonthlyReport(ctx context.Context, limit, offset int) ([]domain.MonthlySales, int64, error) {
	list, err := s.repo.ListSales(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	revenue, err := s.repo.TotalRevenue(ctx)
	if err != nil {
		return nil, 0, err
	}

	byMonth := make(map[string]*domain.MonthlySales)
	order := make([]string, 0)
	for _, sale := range list {
		key := sale.CreatedAt.Format("January 2006")
		bucket, ok := byMonth[key]
		if !ok {
			bucket = &domain.MonthlySales{Month: key}
			byMonth[key] = bucket
			order = append(order, key)
		}
		bucket.MonthlyTotal += sale.TotalAmount
		bucket.Sales = append(bucket.Sales, sale)
	}

	report := make([]domain.MonthlySales, 0, len(order))
	for _, key := range order {
		report = append(report, *byMonth[key])
	}
	return report, revenue, nil
}

// Receipt is the printable view of one sale.
type Receipt struct {
	Sale     domain.Sale         `json:"sale"`
	Pharmacy domain.PharmacyInfo `json:"pharmacy"`
}

func (s *Service) GetReceipt(ctx context.Context, saleID int64) (*Receipt, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	info, err := s.repo.GetPharmacyInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &Receipt{Sale: *sale, Pharmacy: info}, nil
}

// --- import / export ---

func (s *Service) ImportInventory(ctx context.Context, filename string, file io.Reader) (*domain.ImportResult, error) {
	rows, warnings, err := excel.ParseInventoryFile(filename, file)
	if err != nil {
		return nil, err
	}
	created, updated, err := s.repo.UpsertImportRows(ctx, rows)
	if err != nil {
		s.metrics.ImportRows.WithLabelValues("failed").Add(float64(len(rows)))
		return nil, err
	}
	s.metrics.ImportRows.WithLabelValues("created").Add(float64(created))
	s.metrics.ImportRows.WithLabelValues("updated").Add(float64(updated))
	return &domain.ImportResult{
		TotalRows: len(rows) + len(warnings),
		Created:   created,
		Updated:   updated,
		Skipped:   len(warnings),
		Warnings:  warnings,
	}, nil
}

func (s *Service) ExportInventoryCSV(ctx context.Context, w io.Writer) error {
	medicines, err := s.repo.AllMedicinesForExport(ctx)
	if err != nil {
		return err
	}
	return excel.WriteInventoryCSV(w, medicines)
}

func (s *Service) ExportInventoryXLSX(ctx context.Context, w io.Writer) error {
	medicines, err := s.repo.AllMedicinesForExport(ctx)
	if err != nil {
		return err
	}
	return excel.WriteInventoryXLSX(w, medicines)
}

// --- settings ---

func (s *Service) GetThreshold(ctx context.Context) (domain.Threshold, error) {
	return s.repo.GetThreshold(ctx)
}

func (s *Service) UpdateThreshold(ctx context.Context, t domain.Threshold) (domain.Threshold, error) {
	if t.LowStockThreshold < 0 || t.ExpiryThresholdDays < 0 {
		return domain.Threshold{}, fmt.Errorf("thresholds cannot be negative")
	}
	return s.repo.UpdateThreshold(ctx, t)
}

func (s *Service) GetPharmacyInfo(ctx context.Context) (domain.PharmacyInfo, error) {
	return s.repo.GetPharmacyInfo(ctx)
}

func (s *Service) UpdatePharmacyInfo(ctx context.Context, info domain.PharmacyInfo) (domain.PharmacyInfo, error) {
	info.Name = strings.TrimSpace(info.Name)
	if info.Name == "" {
		return domain.PharmacyInfo{}, fmt.Errorf("pharmacy name is required")
	}
	return s.repo.UpdatePharmacyInfo(ctx, info)
}

// --- staff ---

func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.StaffUser, error) {
	return s.repo.Authenticate(ctx, username, password)
}

func (s *Service) ListStaff(ctx context.Context) ([]domain.StaffUser, error) {
	staff, err := s.repo.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(staff, func(i, j int) bool { return staff[i].Username < staff[j].Username })
	return staff, nil
}

func (s *Service) GetStaff(ctx context.Context, id int64) (*domain.StaffUser, error) {
	return s.repo.GetStaffByID(ctx, id)
}

func (s *Service) CreateStaff(ctx context.Context, username, password, role string) (*domain.StaffUser, error) {
	return s.repo.CreateStaff(ctx, username, password, role)
}

func (s *Service) UpdateStaffPassword(ctx context.Context, id int64, password string) error {
	return s.repo.UpdateStaffPassword(ctx, id, password)
}

func (s *Service) DeleteStaff(ctx context.Context, id int64) error {
	return s.repo.DeleteStaff(ctx, id)
}

// SetStaffPermissions replaces a staff member's grant set. Admin grant
// sets are implicit and cannot be edited.
func (s *Service) SetStaffPermissions(ctx context.Context, id int64, codes []string) error {
	user, err := s.repo.GetStaffByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == domain.RoleAdmin {
		return fmt.Errorf("admin permissions are not editable")
	}
	return s.repo.SetStaffPermissions(ctx, id, codes)
}

func (s *Service) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	return s.repo.EnsureDefaultAdmin(ctx, username, password)
}
