package directory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lachapita/lachapita/internal/platform/httpx"
)

// Handler serves client and supplier endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers directory routes. Clients and suppliers share
// handlers, the kind comes from the mount point.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, kind := range []PartyKind{KindClient, KindSupplier} {
		kind := kind
		r.Route("/"+string(kind)+"s", func(r chi.Router) {
			r.Get("/", h.list(kind))
			r.Post("/", h.save(kind))
			r.Get("/{id}", h.show(kind))
			r.Put("/{id}", h.save(kind))
			r.Delete("/{id}", h.remove(kind))
			r.Post("/{id}/restore", h.restore(kind))
		})
	}
}

func (h *Handler) list(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		parties, err := h.service.List(r.Context(), kind, q.Get("q"), q.Get("status") == "all")
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"records": parties})
	}
}

func (h *Handler) show(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
			return
		}
		party, err := h.service.Get(r.Context(), kind, id)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, party)
	}
}

func (h *Handler) save(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in SavePartyInput
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
			return
		}
		if raw := chi.URLParam(r, "id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
				return
			}
			in.ID = id
		}
		if err := h.validate.Struct(in); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
			return
		}
		id, err := h.service.Save(r.Context(), kind, in)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		status := http.StatusOK
		if in.ID == 0 {
			status = http.StatusCreated
		}
		httpx.JSON(w, status, map[string]any{"id": id})
	}
}

func (h *Handler) remove(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
			return
		}
		if err := h.service.Delete(r.Context(), kind, id); err != nil {
			h.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) restore(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
			return
		}
		if err := h.service.Restore(r.Context(), kind, id); err != nil {
			h.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("directory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
