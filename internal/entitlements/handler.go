package entitlements

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/platform/httpx"
	"github.com/lumapos/lumapos/internal/shared"
)

// Handler wires HTTP endpoints for the usage ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs entitlements handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers entitlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/usages", h.handleRecordUsage)
	r.Get("/customers/{customerID}/sales/{saleID}/packages/{packageID}", h.handleSummary)
}

type usageLineRequest struct {
	ItemID int64           `json:"item_id" validate:"required"`
	Qty    decimal.Decimal `json:"qty" validate:"required"`
	Date   string          `json:"date" validate:"required"`
	Time   string          `json:"time"`
}

type recordUsageRequest struct {
	CustomerID int64              `json:"customer_id" validate:"required"`
	PackageID  int64              `json:"package_id" validate:"required"`
	SaleID     int64              `json:"sale_id" validate:"required"`
	Lines      []usageLineRequest `json:"lines" validate:"min=1,dive"`
}

func (h *Handler) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req recordUsageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]UsageLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		date, err := time.Parse("2006-01-02", line.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be formatted YYYY-MM-DD")
			return
		}
		lines = append(lines, UsageLine{
			ComponentItemID: line.ItemID,
			Qty:             line.Qty,
			UsageDate:       date,
			UsageTime:       line.Time,
		})
	}
	inserted, err := h.service.RecordUsage(r.Context(), scope, RecordUsageInput{
		CustomerID: req.CustomerID,
		PackageID:  req.PackageID,
		SaleID:     req.SaleID,
		Lines:      lines,
	})
	if err != nil {
		h.logger.Warn("record usage rejected",
			slog.Any("error", err),
			slog.Int64("customer_id", req.CustomerID),
			slog.Int64("sale_id", req.SaleID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"inserted_ids": inserted})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customerID, err1 := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	saleID, err2 := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	packageID, err3 := strconv.ParseInt(chi.URLParam(r, "packageID"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "identifiers must be numeric")
		return
	}
	summary, err := h.service.GetSummary(r.Context(), scope, customerID, packageID, saleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
