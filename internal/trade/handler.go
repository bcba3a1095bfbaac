package trade

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lachapita/lachapita/internal/ledger"
	"github.com/lachapita/lachapita/internal/platform/db"
	"github.com/lachapita/lachapita/internal/platform/httpx"
)

// Handler serves sale and purchase endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers trade routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.listSales)
	r.Post("/sales", h.saveSale)
	r.Post("/sales/check", h.checkSale)
	r.Get("/sales/{id}", h.showSale)
	r.Put("/sales/{id}", h.saveSale)
	r.Delete("/sales/{id}", h.deleteSale)

	r.Get("/purchases", h.listPurchases)
	r.Post("/purchases", h.savePurchase)
	r.Get("/purchases/{id}", h.showPurchase)
	r.Put("/purchases/{id}", h.savePurchase)
	r.Delete("/purchases/{id}", h.deletePurchase)
}

type saveDocumentRequest struct {
	CounterpartyID int64       `json:"counterparty_id"`
	Date           string      `json:"date"`
	Lines          []LineInput `json:"lines" validate:"required,min=1,dive"`
}

type documentLine struct {
	ProductID int64   `json:"product_id"`
	VariantID int64   `json:"variant_id,omitempty"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Active    bool    `json:"active"`
}

type documentResponse struct {
	ID             int64          `json:"id"`
	Date           string         `json:"date"`
	CounterpartyID int64          `json:"counterparty_id,omitempty"`
	Total          float64        `json:"total"`
	Lines          []documentLine `json:"lines"`
}

func toResponse(doc Document) documentResponse {
	resp := documentResponse{
		ID:             doc.ID,
		Date:           doc.Date.Format("2006-01-02"),
		CounterpartyID: doc.CounterpartyID,
		Total:          doc.Total,
	}
	for _, key := range sortedKeys(doc.Items) {
		item := doc.Items[key]
		resp.Lines = append(resp.Lines, documentLine{
			ProductID: key.ProductID,
			VariantID: key.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Active:    item.Active,
		})
	}
	return resp
}

func (h *Handler) saveSale(w http.ResponseWriter, r *http.Request) {
	req, id, date, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	saleID, err := h.service.SaveSale(r.Context(), SaveSaleInput{
		SaleID:   id,
		ClientID: req.CounterpartyID,
		Date:     date,
		Lines:    req.Lines,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"id": saleID})
}

func (h *Handler) savePurchase(w http.ResponseWriter, r *http.Request) {
	req, id, date, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	purchaseID, err := h.service.SavePurchase(r.Context(), SavePurchaseInput{
		PurchaseID: id,
		SupplierID: req.CounterpartyID,
		Date:       date,
		Lines:      req.Lines,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"id": purchaseID})
}

func (h *Handler) decodeSave(w http.ResponseWriter, r *http.Request) (saveDocumentRequest, int64, time.Time, bool) {
	var req saveDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return req, 0, time.Time{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return req, 0, time.Time{}, false
	}
	var id int64
	if raw := chi.URLParam(r, "id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
			return req, 0, time.Time{}, false
		}
		id = parsed
	}
	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD")
			return req, 0, time.Time{}, false
		}
		date = parsed
	}
	return req, id, date, true
}

type checkSaleRequest struct {
	SaleID int64       `json:"sale_id"`
	Lines  []LineInput `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) checkSale(w http.ResponseWriter, r *http.Request) {
	var req checkSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	ok, shortage, err := h.service.CheckSale(r.Context(), req.SaleID, req.Lines)
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

func (h *Handler) showSale(w http.ResponseWriter, r *http.Request) {
	h.showDocument(w, r, h.service.GetSale)
}

func (h *Handler) showPurchase(w http.ResponseWriter, r *http.Request) {
	h.showDocument(w, r, h.service.GetPurchase)
}

func (h *Handler) showDocument(w http.ResponseWriter, r *http.Request, get func(ctx context.Context, id int64) (Document, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
		return
	}
	doc, err := get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(doc))
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, h.service.ListSales)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, h.service.ListPurchases)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, from, to time.Time) ([]Document, error)) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	docs, err := list(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toResponse(doc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	h.deleteDocument(w, r, h.service.DeleteSale)
}

func (h *Handler) deletePurchase(w http.ResponseWriter, r *http.Request) {
	h.deleteDocument(w, r, h.service.DeletePurchase)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, id int64) error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
		return
	}
	if err := del(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to time.Time
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "from must be YYYY-MM-DD")
			return from, to, false
		}
		from = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid date", "to must be YYYY-MM-DD")
			return from, to, false
		}
		to = parsed
	}
	return from, to, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *ledger.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.ProblemWith(w, http.StatusConflict, "Insufficient Stock", insufficient.Error(),
			map[string]any{"shortage": insufficient.Shortage()})
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrUnknownReference):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrProductInactive),
		errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrVariantRequired):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Document", err.Error())
	case errors.Is(err, db.ErrStoreBusy):
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Busy", "another write is in progress, retry shortly")
	case errors.Is(err, ledger.ErrLedgerIntegrity):
		h.logger.Error("ledger integrity fault", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Ledger Integrity Fault", err.Error())
	default:
		h.logger.Error("trade request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}
