package backup

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lachapita/lachapita/internal/platform/httpx"
)

// Handler serves backup endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers backup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/backups", h.list)
	r.Post("/backups", h.create)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	archives, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"archives": archives})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	archive, err := h.service.Create(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, archive)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("backup request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
}
