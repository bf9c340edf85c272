package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/platform/httpx"
	"github.com/lumapos/lumapos/internal/shared"
)

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.handleList)
	r.Post("/items", h.handleCreate)
	r.Get("/items/{id}", h.handleGet)
	r.Put("/items/{id}", h.handleUpdate)
	r.Delete("/items/{id}", h.handleDelete)
	r.Get("/items/{id}/components", h.handleComponents)
	r.Put("/items/{id}/components", h.handleReplaceComponents)
	r.Get("/items/{id}/packages", h.handleContainingPackages)
}

type itemRequest struct {
	Code              string          `json:"code"`
	Name              string          `json:"name" validate:"required"`
	Type              string          `json:"type" validate:"required,oneof=Product Service Package"`
	SalePrice         decimal.Decimal `json:"sale_price"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
}

type itemResponse struct {
	ID                   int64           `json:"id"`
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	Type                 string          `json:"type"`
	SalePrice            decimal.Decimal `json:"sale_price"`
	LastPurchasePrice    decimal.Decimal `json:"last_purchase_price"`
	LastThreePurchaseAvg decimal.Decimal `json:"last_three_purchase_avg"`
	LowStockThreshold    decimal.Decimal `json:"low_stock_threshold"`
}

type componentRequest struct {
	ItemID   int64           `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

type componentsRequest struct {
	Components []componentRequest `json:"components" validate:"dive"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}
	filters := ListFilters{
		Search: q.Get("search"),
		Type:   ItemType(q.Get("type")),
		Page:   page,
		Limit:  limit,
	}
	items, pagination, err := h.service.List(r.Context(), scope, filters)
	if err != nil {
		h.logger.Error("list items failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	responses := make([]itemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      responses,
		"pagination": pagination,
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.Create(r.Context(), scope, Item{
		Code:              req.Code,
		Name:              req.Name,
		Type:              ItemType(req.Type),
		SalePrice:         req.SalePrice,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		h.logger.Error("create item failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	current, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	current.Code = req.Code
	current.Name = req.Name
	current.SalePrice = req.SalePrice
	current.LowStockThreshold = req.LowStockThreshold
	if err := h.service.Update(r.Context(), scope, id, current); err != nil {
		h.logger.Error("update item failed", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), scope, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) handleComponents(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	components, err := h.service.ResolveComponents(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"components": components})
}

func (h *Handler) handleReplaceComponents(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	var req componentsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	components := make([]Component, 0, len(req.Components))
	for _, c := range req.Components {
		components = append(components, Component{ItemID: c.ItemID, Quantity: c.Quantity})
	}
	if err := h.service.ReplaceComponents(r.Context(), scope, id, components); err != nil {
		h.logger.Error("replace components failed", slog.Any("error", err), slog.Int64("package_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "replaced"})
}

func (h *Handler) handleContainingPackages(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.scopeAndID(w, r)
	if !ok {
		return
	}
	refs, err := h.service.ResolveContainingPackages(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"packages": refs})
}

func (h *Handler) scopeAndID(w http.ResponseWriter, r *http.Request) (shared.TenantScope, int64, bool) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return shared.TenantScope{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be numeric")
		return shared.TenantScope{}, 0, false
	}
	return scope, id, true
}

func toItemResponse(item Item) itemResponse {
	return itemResponse{
		ID:                   item.ID,
		Code:                 item.Code,
		Name:                 item.Name,
		Type:                 string(item.Type),
		SalePrice:            item.SalePrice,
		LastPurchasePrice:    item.LastPurchasePrice,
		LastThreePurchaseAvg: item.LastThreePurchaseAvg,
		LowStockThreshold:    item.LowStockThreshold,
	}
}
