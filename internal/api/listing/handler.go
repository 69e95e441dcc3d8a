package listing

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"goimovel/internal/domain"
	"goimovel/internal/pkg/httpx"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/pkg/middleware"
)

// ListingService define o contrato que o Handler espera da camada de Serviço.
type ListingService interface {
	Submit(ctx context.Context, viewer domain.Viewer, kind domain.Kind, content domain.ListingContent) (domain.Listing, error)
	Resubmit(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, content domain.ListingContent) (domain.Listing, error)
	Update(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, content domain.ListingContent) (domain.Listing, error)
	Delete(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) error
	Get(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) (domain.Listing, error)
	GetComplex(ctx context.Context, viewer domain.Viewer, id string, filter domain.ListingFilter) (domain.ComplexDetail, error)
	List(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error)
	Public(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error)
	Map(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.MapPoint, error)
	UserListings(ctx context.Context, viewer domain.Viewer, userID string, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error)
	MyListings(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error)
	ListingLimit(ctx context.Context, viewer domain.Viewer, userID string, kind domain.Kind) (*domain.ListingLimitView, error)
	AddFavorite(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) error
	RemoveFavorite(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) error
	Favorites(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error)
}

// Handler agrupa todos os métodos de Handler de anúncios.
type Handler struct {
	Service ListingService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc ListingService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	httpx.Respond(w, r, h.Logger, data, err, successStatus)
}

// kindAndFilter extrai {kind} da rota e os filtros da query string.
func kindAndFilter(r *http.Request) (domain.Kind, domain.ListingFilter, error) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", domain.ListingFilter{}, err
	}
	filter, err := httpx.ParseListingFilter(r)
	return kind, filter, err
}

// SubmitHandler lida com POST /v1/listings/{kind}.
// @Summary Cria um anúncio
// @Description Cria o anúncio em estado pending e consome uma unidade do limite do papel.
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param content body domain.ListingContent true "Conteúdo do anúncio"
// @Success 200 {object} domain.Listing
// @Failure 400 {object} domain.ErrorResponse "Conteúdo inválido"
// @Failure 401 {object} domain.ErrorResponse "Não autenticado"
// @Failure 403 {object} domain.ErrorResponse "Papel não elegível ou limite atingido (QUOTA_EXCEEDED)"
// @Router /listings/{kind} [post]
func (h *Handler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	var content domain.ListingContent
	if err := httpx.DecodeJSON(r, &content); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	created, err := h.Service.Submit(r.Context(), middleware.ViewerFromContext(r.Context()), kind, content)
	h.handleServiceResponse(w, r, created, err, http.StatusOK)
}

// ResubmitHandler lida com PATCH /v1/listings/{kind}/{id}/resubmit.
// @Summary Reenvia um anúncio rejeitado
// @Description Substitui o conteúdo e devolve o anúncio para pending. Somente o dono.
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Param content body domain.ListingContent true "Novo conteúdo"
// @Success 200 {object} domain.Listing
// @Failure 403 {object} domain.ErrorResponse "Não é o dono"
// @Failure 404 {object} domain.ErrorResponse "Anúncio não encontrado"
// @Failure 409 {object} domain.ErrorResponse "Anúncio não está rejeitado"
// @Router /listings/{kind}/{id}/resubmit [patch]
func (h *Handler) ResubmitHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	var content domain.ListingContent
	if err := httpx.DecodeJSON(r, &content); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	updated, err := h.Service.Resubmit(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"), content)
	h.handleServiceResponse(w, r, updated, err, http.StatusOK)
}

// UpdateHandler lida com PUT /v1/listings/{kind}/{id}.
// @Summary Edita o conteúdo de um anúncio
// @Description Edita um anúncio pending ou approved sem alterar o estado. Rejeitados devem usar resubmit.
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Param content body domain.ListingContent true "Conteúdo"
// @Success 200 {object} domain.Listing
// @Failure 409 {object} domain.ErrorResponse "Anúncio rejeitado"
// @Router /listings/{kind}/{id} [put]
func (h *Handler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	var content domain.ListingContent
	if err := httpx.DecodeJSON(r, &content); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	updated, err := h.Service.Update(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"), content)
	h.handleServiceResponse(w, r, updated, err, http.StatusOK)
}

// DeleteHandler lida com DELETE /v1/listings/{kind}/{id}.
// @Summary Exclui um anúncio
// @Tags listings
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Success 204
// @Failure 403 {object} domain.ErrorResponse "Nem dono nem administrador"
// @Failure 404 {object} domain.ErrorResponse "Anúncio não encontrado"
// @Router /listings/{kind}/{id} [delete]
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
		return
	}
	err = h.Service.Delete(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"))
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}

// GetHandler lida com GET /v1/listings/{kind}/{id}.
// @Summary Busca um anúncio
// @Description Empreendimentos vêm com os imóveis vinculados visíveis ao solicitante.
// @Tags listings
// @Produce json
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Success 200 {object} domain.Listing
// @Failure 404 {object} domain.ErrorResponse "Inexistente ou invisível"
// @Router /listings/{kind}/{id} [get]
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	kind, filter, err := kindAndFilter(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	viewer := middleware.ViewerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if kind == domain.KindComplex {
		detail, err := h.Service.GetComplex(r.Context(), viewer, id, filter)
		h.handleServiceResponse(w, r, detail, err, http.StatusOK)
		return
	}
	l, err := h.Service.Get(r.Context(), viewer, kind, id)
	h.handleServiceResponse(w, r, l, err, http.StatusOK)
}

// ListHandler lida com GET /v1/listings/{kind}.
// @Summary Feed de anúncios
// @Description Aprovados, mais os próprios do solicitante; administradores veem tudo.
// @Tags listings
// @Produce json
// @Param kind path string true "property | complex"
// @Param city query string false "Cidade"
// @Param min_price query string false "Preço mínimo"
// @Param max_price query string false "Preço máximo"
// @Param rooms query int false "Quartos"
// @Param owner_id query string false "Dono"
// @Param limit query int false "Itens por página (máx 100)"
// @Param offset query int false "Deslocamento"
// @Success 200 {array} domain.Listing
// @Router /listings/{kind} [get]
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	kind, filter, err := kindAndFilter(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	listings, err := h.Service.List(r.Context(), middleware.ViewerFromContext(r.Context()), kind, filter)
	h.handleServiceResponse(w, r, listings, err, http.StatusOK)
}

// PublicHandler lida com GET /v1/listings/{kind}/public.
// @Summary Feed público (aprovados; dono e admin veem também os seus pendentes)
// @Tags listings
// @Produce json
// @Param kind path string true "property | complex"
// @Success 200 {array} domain.Listing
// @Router /listings/{kind}/public [get]
func (h *Handler) PublicHandler(w http.ResponseWriter, r *http.Request) {
	kind, filter, err := kindAndFilter(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	listings, err := h.Service.Public(r.Context(), middleware.ViewerFromContext(r.Context()), kind, filter)
	h.handleServiceResponse(w, r, listings, err, http.StatusOK)
}

// MapHandler lida com GET /v1/listings/{kind}/map.
// @Summary Pontos do mapa
// @Tags listings
// @Produce json
// @Param kind path string true "property | complex"
// @Success 200 {array} domain.MapPoint
// @Router /listings/{kind}/map [get]
func (h *Handler) MapHandler(w http.ResponseWriter, r *http.Request) {
	kind, filter, err := kindAndFilter(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	points, err := h.Service.Map(r.Context(), middleware.ViewerFromContext(r.Context()), kind, filter)
	h.handleServiceResponse(w, r, points, err, http.StatusOK)
}

// UserListingsHandler lida com GET /v1/users/{id}/listings/{kind}.
// @Summary Anúncios do perfil de um usuário
// @Tags users
// @Produce json
// @Param id path string true "ID do usuário"
// @Param kind path string true "property | complex"
// @Success 200 {array} domain.Listing
// @Failure 404 {object} domain.ErrorResponse "Usuário não encontrado"
// @Router /users/{id}/listings/{kind} [get]
func (h *Handler) UserListingsHandler(w http.ResponseWriter, r *http.Request) {
	kind, filter, err := kindAndFilter(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	listings, err := h.Service.UserListings(r.Context(), middleware.ViewerFromContext(r.Context()), chi.URLParam(r, "id"), kind, filter)
	h.handleServiceResponse(w, r, listings, err, http.StatusOK)
}

// MyListingsHandler lida com GET /v1/me/listings/{kind}.
// @Summary Painel do dono (todos os estados)
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Success 200 {array} domain.Listing
// @Router /me/listings/{kind} [get]
func (h *Handler) MyListingsHandler(w http.ResponseWriter, r *http.Request) {
	kind, filter, err := kindAndFilter(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	listings, err := h.Service.MyListings(r.Context(), middleware.ViewerFromContext(r.Context()), kind, filter)
	h.handleServiceResponse(w, r, listings, err, http.StatusOK)
}

// ListingLimitHandler lida com GET /v1/users/{id}/listing-limit.
// @Summary Limite de anúncios do usuário
// @Description {count, maxLimit} para papéis com teto; null caso contrário.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do usuário"
// @Param kind query string false "property (padrão) | complex"
// @Success 200 {object} domain.ListingLimitView
// @Failure 403 {object} domain.ErrorResponse "Nem o próprio usuário nem administrador"
// @Router /users/{id}/listing-limit [get]
func (h *Handler) ListingLimitHandler(w http.ResponseWriter, r *http.Request) {
	rawKind := r.URL.Query().Get("kind")
	if rawKind == "" {
		rawKind = string(domain.KindProperty)
	}
	kind, err := domain.ParseKind(rawKind)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	view, err := h.Service.ListingLimit(r.Context(), middleware.ViewerFromContext(r.Context()), chi.URLParam(r, "id"), kind)
	if err == nil && view == nil {
		// papel sem teto: corpo JSON null
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("null\n"))
		return
	}
	h.handleServiceResponse(w, r, view, err, http.StatusOK)
}

// AddFavoriteHandler lida com POST /v1/listings/{kind}/{id}/favorite.
// @Summary Marca um anúncio como favorito
// @Tags favorites
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse "Inexistente ou invisível"
// @Router /listings/{kind}/{id}/favorite [post]
func (h *Handler) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
		return
	}
	err = h.Service.AddFavorite(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"))
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}

// RemoveFavoriteHandler lida com DELETE /v1/listings/{kind}/{id}/favorite.
// @Summary Remove um favorito
// @Tags favorites
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Param id path string true "ID do anúncio"
// @Success 204
// @Router /listings/{kind}/{id}/favorite [delete]
func (h *Handler) RemoveFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
		return
	}
	err = h.Service.RemoveFavorite(r.Context(), middleware.ViewerFromContext(r.Context()), kind, chi.URLParam(r, "id"))
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}

// FavoritesHandler lida com GET /v1/me/favorites/{kind}.
// @Summary Lista os favoritos visíveis
// @Tags favorites
// @Produce json
// @Security BearerAuth
// @Param kind path string true "property | complex"
// @Success 200 {array} domain.Listing
// @Router /me/favorites/{kind} [get]
func (h *Handler) FavoritesHandler(w http.ResponseWriter, r *http.Request) {
	kind, filter, err := kindAndFilter(r)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}
	favs, err := h.Service.Favorites(r.Context(), middleware.ViewerFromContext(r.Context()), kind, filter)
	h.handleServiceResponse(w, r, favs, err, http.StatusOK)
}
