package moderation

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"goimovel/internal/domain"
	"goimovel/internal/pkg/httpx"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/pkg/middleware"
)

// ModerationService define o contrato da fila de moderação.
type ModerationService interface {
	Queue(ctx context.Context, viewer domain.Viewer, kind domain.Kind, status domain.Status, filter domain.ListingFilter) ([]domain.Listing, error)
	Approve(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, rating string) (domain.Listing, error)
	Reject(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, reason string) (domain.Listing, error)
	Events(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) ([]domain.ModerationEvent, error)
}

// ApproveRequest é o corpo de PATCH /v1/moderation/{kind}/{id}.
type ApproveRequest struct {
	Rating string `json:"rating" example:"B+"`
}

// RejectRequest é o corpo de POST /v1/moderation/{kind}/{id}/reject.
type RejectRequest struct {
	Reason string `json:"reason" example:"incomplete photos"`
}

// Handler agrupa os handlers de moderação.
type Handler struct {
	Service ModerationService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc ModerationService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	httpx.Respond(w, r, h.Logger, data, err, successStatus)
}

// QueueHandler devolve o handler de GET /v1/moderation/{kind}/pending|approved|rejected.
// @Summary Fila de moderação por estado
// @Description Anúncios no estado da rota, mais recentes primeiro. Somente administradores.
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Success 200 {array} domain.Listing
// @Failure 401 {object} domain.ErrorResponse "Não autenticado"
// @Failure 403 {object} domain.ErrorResponse "Não é administrador"
// @Router /moderation/{kind}/pending [get]
// @Router /moderation/{kind}/approved [get]
// @Router /moderation/{kind}/rejected [get]
func (h *Handler) QueueHandler(status domain.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}
		filter, err := httpx.ParseListingFilter(r)
		if err != nil {
			h.handleServiceResponse(w, r, nil, err, http.StatusOK)
			return
		}

		listings, err := h.Service.Queue(r.Context(), middleware.ViewerFromContext(r.Context()), kind, status, filter)
		h.handleServiceResponse(w, r, listings, err, http.StatusOK)
	}
}

// ApproveHandler lida com PATCH /v1/moderation/{kind}/{id}.
// @Summary Aprova um anúncio pendente
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Param body body ApproveRequest true "Nota: A, B, B+, C ou D"
// @Success 200 {object} domain.Listing
// @Failure 400 {object} domain.ErrorResponse "Nota inválida"
// @Failure 404 {object} domain.ErrorResponse "Anúncio não encontrado"
// @Failure 409 {object} domain.ErrorResponse "Anúncio não está pendente"
// @Router /moderation/{kind}/{id} [patch]
func (h *Handler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	var req ApproveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	updated, err := h.Service.Approve(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"), req.Rating)
	h.handleServiceResponse(w, r, updated, err, http.StatusOK)
}

// RejectHandler lida com POST /v1/moderation/{kind}/{id}/reject.
// @Summary Rejeita um anúncio pendente
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Param body body RejectRequest true "Motivo (não vazio)"
// @Success 200 {object} domain.Listing
// @Failure 400 {object} domain.ErrorResponse "Motivo vazio"
// @Failure 409 {object} domain.ErrorResponse "Anúncio não está pendente"
// @Router /moderation/{kind}/{id}/reject [post]
func (h *Handler) RejectHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	updated, err := h.Service.Reject(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"), req.Reason)
	h.handleServiceResponse(w, r, updated, err, http.StatusOK)
}

// EventsHandler lida com GET /v1/moderation/{kind}/{id}/events.
// @Summary Trilha de auditoria do anúncio
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Success 200 {array} domain.ModerationEvent
// @Router /moderation/{kind}/{id}/events [get]
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	events, err := h.Service.Events(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"))
	h.handleServiceResponse(w, r, events, err, http.StatusOK)
}
