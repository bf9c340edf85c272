package damages

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

// Handler wires HTTP endpoints for damages.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs damages handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers damage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
}

type lineRequest struct {
	ItemID   int64           `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Reason   string          `json:"reason"`
}

type createRequest struct {
	Number     string        `json:"number"`
	DamageDate string        `json:"damage_date" validate:"required"`
	Note       string        `json:"note"`
	Lines      []lineRequest `json:"lines" validate:"min=1,dive"`
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
	date, err := time.Parse("2006-01-02", req.DamageDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "damage_date must be formatted YYYY-MM-DD")
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, LineInput{ItemID: line.ItemID, Quantity: line.Quantity, UnitCost: line.UnitCost, Reason: line.Reason})
	}
	damage, err := h.service.Create(r.Context(), scope, CreateInput{
		Number:     req.Number,
		DamageDate: date,
		Note:       req.Note,
		Lines:      lines,
	})
	if err != nil {
		h.logger.Error("create damage failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": damage.ID, "number": damage.Number})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	damage, details, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"damage": damage, "details": details})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	damages, err := h.service.List(r.Context(), scope, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"damages": damages})
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
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "damage id must be numeric")
		return shared.TenantScope{}, 0, false
	}
	return scope, id, true
}
