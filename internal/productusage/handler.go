package productusage

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

// Handler wires HTTP endpoints for product usages.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs product usage handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers product usage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
}

type lineRequest struct {
	ItemID     int64           `json:"item_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"required"`
	EmployeeID int64           `json:"employee_id" validate:"required"`
}

type createRequest struct {
	Number    string        `json:"number"`
	UsageDate string        `json:"usage_date" validate:"required"`
	Note      string        `json:"note"`
	Lines     []lineRequest `json:"lines" validate:"min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.UsageDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "usage_date must be formatted YYYY-MM-DD")
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, LineInput{ItemID: line.ItemID, Quantity: line.Quantity, EmployeeID: line.EmployeeID})
	}
	usage, err := h.service.Create(r.Context(), scope, CreateInput{
		Number:    req.Number,
		UsageDate: date,
		Note:      req.Note,
		Lines:     lines,
	})
	if err != nil {
		h.logger.Error("create product usage failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": usage.ID, "number": usage.Number})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	usage, details, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"usage": usage, "details": details})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	usages, err := h.service.List(r.Context(), scope, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"usages": usages})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), scope, id, 0); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) scopeAndID(w http.ResponseWriter, r *http.Request) (shared.TenantScope, int64, bool) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return shared.TenantScope{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "usage id must be numeric")
		return shared.TenantScope{}, 0, false
	}
	return scope, id, true
}
