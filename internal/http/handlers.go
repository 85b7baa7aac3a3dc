// Package http is the JSON API surface: chi routes, JWT auth, and the
// request/response shapes for every endpoint.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ncpharmacy/backend/internal/domain"
	"ncpharmacy/backend/internal/repository"
	"ncpharmacy/backend/internal/sales"
	"ncpharmacy/backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc    *service.Service
	tokens *TokenIssuer
}

func NewHandler(svc *service.Service, tokens *TokenIssuer) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// --- auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	token, expires, err := h.tokens.Issue(*user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expires,
		"user":       user,
	})
}

// --- medicines ---

func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeInactive := false
	if raw := strings.TrimSpace(query.Get("include_inactive")); raw != "" {
		includeInactive, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_inactive must be true or false")
			return
		}
	}

	items, err := h.svc.ListMedicines(r.Context(), repository.MedicineListFilter{
		Search:          query.Get("search"),
		Category:        query.Get("category"),
		IncludeInactive: includeInactive,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	medicine, err := h.svc.GetMedicine(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "medicine not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, medicine)
}

type medicineRequest struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Brand           string `json:"brand"`
	Category        string `json:"category"`
	UnitsPerPackage int    `json:"units_per_package"`
	PackageType     string `json:"package_type"`
	Quantity        int    `json:"quantity"`
	PurchasePrice   int64  `json:"purchase_price"`
	SellingPrice    int64  `json:"selling_price"`
	PurchaseDate    string `json:"purchase_date"`
	ExpiryDate      string `json:"expiry_date"`
	Description     string `json:"description"`
	DosageForm      string `json:"dosage_form"`
	SupplierName    string `json:"supplier_name"`
	StorageInfo     string `json:"storage_info"`
	Location        string `json:"location"`
}

func (h *Handler) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	expiry, err := parseDateField(req.ExpiryDate, "expiry_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	purchaseDate, err := parseOptionalDateField(req.PurchaseDate, "purchase_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.svc.CreateMedicine(r.Context(), domain.Medicine{
		Code:            req.Code,
		Name:            req.Name,
		Brand:           req.Brand,
		Category:        req.Category,
		UnitsPerPackage: req.UnitsPerPackage,
		PackageType:     req.PackageType,
		Quantity:        req.Quantity,
		PurchasePrice:   req.PurchasePrice,
		SellingPrice:    req.SellingPrice,
		PurchaseDate:    purchaseDate,
		ExpiryDate:      expiry,
		Description:     req.Description,
		DosageForm:      req.DosageForm,
		SupplierName:    req.SupplierName,
		StorageInfo:     req.StorageInfo,
		Location:        req.Location,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type medicinePatchRequest struct {
	Code            *string `json:"code"`
	Name            *string `json:"name"`
	Brand           *string `json:"brand"`
	Category        *string `json:"category"`
	UnitsPerPackage *int    `json:"units_per_package"`
	PackageType     *string `json:"package_type"`
	Quantity        *int    `json:"quantity"`
	PurchasePrice   *int64  `json:"purchase_price"`
	SellingPrice    *int64  `json:"selling_price"`
	PurchaseDate    *string `json:"purchase_date"`
	ExpiryDate      *string `json:"expiry_date"`
	Description     *string `json:"description"`
	DosageForm      *string `json:"dosage_form"`
	SupplierName    *string `json:"supplier_name"`
	StorageInfo     *string `json:"storage_info"`
	Location        *string `json:"location"`
}

func (h *Handler) UpdateMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req medicinePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := repository.MedicinePatch{
		Code:            req.Code,
		Name:            req.Name,
		Brand:           req.Brand,
		Category:        req.Category,
		UnitsPerPackage: req.UnitsPerPackage,
		PackageType:     req.PackageType,
		Quantity:        req.Quantity,
		PurchasePrice:   req.PurchasePrice,
		SellingPrice:    req.SellingPrice,
		Description:     req.Description,
		DosageForm:      req.DosageForm,
		SupplierName:    req.SupplierName,
		StorageInfo:     req.StorageInfo,
		Location:        req.Location,
	}
	if req.ExpiryDate != nil {
		expiry, err := parseDateField(*req.ExpiryDate, "expiry_date")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.ExpiryDate = &expiry
	}
	if req.PurchaseDate != nil {
		purchaseDate, err := parseOptionalDateField(*req.PurchaseDate, "purchase_date")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.PurchaseDate = purchaseDate
	}

	updated, err := h.svc.UpdateMedicine(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "medicine not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteMedicine deactivates the medicine. The row stays behind so old
// sale items keep their reference.
func (h *Handler) DeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeactivateMedicine(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "medicine not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- sales ---

type saleLineRequest struct {
	MedicineID int64 `json:"medicine_id"`
	Quantity   int   `json:"quantity"`
	UnitPrice  int64 `json:"unit_price"`
}

type saleRequest struct {
	Items           []saleLineRequest `json:"items"`
	DeliveryFee     int64             `json:"delivery_fee"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerAddress string            `json:"customer_address"`
}

func (req saleRequest) toInput(actor domain.StaffUser) sales.CheckoutInput {
	cart := make([]domain.CartLine, 0, len(req.Items))
	for _, line := range req.Items {
		cart = append(cart, domain.CartLine{
			MedicineID: line.MedicineID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
		})
	}
	actorID := actor.ID
	return sales.CheckoutInput{
		Cart:            cart,
		DeliveryFee:     req.DeliveryFee,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerAddress: strings.TrimSpace(req.CustomerAddress),
		ActorID:         &actorID,
		ActorName:       actor.Username,
	}
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r, nil)
}

func (h *Handler) AmendSale(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.checkout(w, r, &id)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, amendSaleID *int64) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := req.toInput(actor)
	input.AmendSaleID = amendSaleID
	sale, err := h.svc.Checkout(r.Context(), input)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	status := http.StatusCreated
	if amendSaleID != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, sale)
}

// writeCheckoutError maps the engine's error taxonomy onto HTTP codes.
// Insufficient stock carries its detail fields so the client can show
// which line failed.
func writeCheckoutError(w http.ResponseWriter, err error) {
	var stockErr sales.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       stockErr.Error(),
			"medicine_id": stockErr.MedicineID,
			"medicine":    stockErr.Name,
			"requested":   stockErr.Requested,
			"available":   stockErr.Available,
		})
		return
	}
	var validationErr sales.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	var medErr sales.MedicineNotFoundError
	if errors.As(err, &medErr) {
		writeError(w, http.StatusNotFound, medErr.Error())
		return
	}
	var saleErr sales.SaleNotFoundError
	if errors.As(err, &saleErr) {
		writeError(w, http.StatusNotFound, saleErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	months, revenue, err := h.svc.MonthlyReport(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"months":        months,
		"total_revenue": revenue,
	})
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "sale not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.svc.GetReceipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "sale not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// --- thresholds & settings ---

func (h *Handler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	threshold, err := h.svc.GetThreshold(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, threshold)
}

func (h *Handler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var req domain.Threshold
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.svc.UpdateThreshold(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) GetPharmacyInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetPharmacyInfo(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) UpdatePharmacyInfo(w http.ResponseWriter, r *http.Request) {
	var req domain.PharmacyInfo
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.svc.UpdatePharmacyInfo(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- staff administration ---

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListStaff(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type createStaffRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.svc.CreateStaff(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := actorFrom(r.Context())
	if actor.ID == id {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := h.svc.DeleteStaff(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "staff member not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) UpdateStaffPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.UpdateStaffPassword(r.Context(), id, req.Password); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "staff member not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) SetStaffPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req setPermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SetStaffPermissions(r.Context(), id, req.Permissions); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "staff member not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

// --- import / export ---

func (h *Handler) ImportInventory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	result, err := h.svc.ImportInventory(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ExportInventoryCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory.csv"`)
	if err := h.svc.ExportInventoryCSV(r.Context(), w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) ExportInventoryXLSX(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory.xlsx"`)
	if err := h.svc.ExportInventoryXLSX(r.Context(), w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- helpers ---

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

func parseDateField(raw, field string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be formatted YYYY-MM-DD", field)
	}
	return parsed, nil
}

func parseOptionalDateField(raw, field string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parsed, err := parseDateField(raw, field)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
