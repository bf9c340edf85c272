package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumapos/lumapos/internal/platform/httpx"
	"github.com/lumapos/lumapos/internal/shared"
)

// Handler exposes the derivation engine to the controller layer.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{itemID}", h.handleQuantity)
	r.Get("/{itemID}/breakdown", h.handleBreakdown)
	r.Get("/{itemID}/value", h.handleValue)
}

func (h *Handler) handleQuantity(w http.ResponseWriter, r *http.Request) {
	scope, itemID, ok := h.scopeAndItem(w, r)
	if !ok {
		return
	}
	qty, err := h.service.Quantity(r.Context(), scope, itemID)
	if err != nil {
		h.logger.Error("compute stock failed", slog.Any("error", err), slog.Int64("item_id", itemID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item_id": itemID, "on_hand": qty})
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	scope, itemID, ok := h.scopeAndItem(w, r)
	if !ok {
		return
	}
	breakdown, err := h.service.Breakdown(r.Context(), scope, itemID)
	if err != nil {
		h.logger.Error("stock breakdown failed", slog.Any("error", err), slog.Int64("item_id", itemID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"breakdown": breakdown,
		"display":   breakdown.DisplayQuantity(),
	})
}

func (h *Handler) handleValue(w http.ResponseWriter, r *http.Request) {
	scope, itemID, ok := h.scopeAndItem(w, r)
	if !ok {
		return
	}
	policy := CostPolicy(r.URL.Query().Get("policy"))
	if policy == "" {
		policy = CostPolicyLastPurchase
	}
	value, err := h.service.Value(r.Context(), scope, itemID, policy)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id": itemID,
		"policy":  string(policy),
		"value":   value,
	})
}

func (h *Handler) scopeAndItem(w http.ResponseWriter, r *http.Request) (shared.TenantScope, int64, bool) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return shared.TenantScope{}, 0, false
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be numeric")
		return shared.TenantScope{}, 0, false
	}
	return scope, itemID, true
}
