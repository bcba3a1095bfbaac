package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lachapita/lachapita/internal/platform/db"
	"github.com/lachapita/lachapita/internal/platform/httpx"
)

// Handler serves stock ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/movements", h.listMovements)
	r.Post("/stock/check", h.checkStock)
	r.Post("/stock/adjust", h.editStock)
}

type checkStockRequest struct {
	Items []checkStockItem `json:"items" validate:"required,min=1,dive"`
}

type checkStockItem struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	VariantID int64   `json:"variant_id"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) checkStock(w http.ResponseWriter, r *http.Request) {
	var req checkStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	items := make([]CheckItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, CheckItem{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	ok, shortage, err := h.service.CheckStock(r.Context(), items)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := map[string]any{"ok": ok}
	if shortage != nil {
		resp["shortage"] = shortage
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type editStockRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	VariantID int64   `json:"variant_id"`
	Direction string  `json:"direction" validate:"required,oneof=in out"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Note      string  `json:"note"`
}

func (h *Handler) editStock(w http.ResponseWriter, r *http.Request) {
	var req editStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	applied, err := h.service.EditStock(r.Context(), req.ProductID, req.VariantID, Direction(req.Direction), req.Quantity, req.Note)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"movement_id": applied.ID,
		"date":        applied.Date.Format("2006-01-02"),
	})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter MovementFilter
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "from must be YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "to must be YYYY-MM-DD")
			return
		}
		filter.To = t
	}
	if raw := q.Get("direction"); raw != "" {
		d := Direction(raw)
		if !d.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid direction", "direction must be in or out")
			return
		}
		filter.Direction = d
	}
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.ProblemWith(w, http.StatusConflict, "Insufficient Stock", insufficient.Error(),
			map[string]any{"shortage": insufficient.Shortage()})
	case errors.Is(err, ErrUnknownReference):
		httpx.Problem(w, http.StatusNotFound, "Unknown Reference", err.Error())
	case errors.Is(err, ErrVariantRequired), errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Movement", err.Error())
	case errors.Is(err, db.ErrStoreBusy):
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Busy", "another write is in progress, retry shortly")
	case errors.Is(err, ErrLedgerIntegrity):
		h.logger.Error("ledger integrity fault", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Ledger Integrity Fault", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}
