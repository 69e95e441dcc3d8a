package listingservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/pkg/metrics"
)

const (
	defaultMapLimit = 500
	maxMapLimit     = 1000
)

// Service orquestra submissão, reenvio, edição, exclusão e leitura de anúncios.
type Service struct {
	repo   domain.ListingRepository
	users  domain.UserRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Anúncios.
func NewService(repo domain.ListingRepository, users domain.UserRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, users: users, logger: logger}
}

func requireSession(viewer domain.Viewer) error {
	if viewer.IsAnonymous() {
		return apperror.NewUnauthorizedError("Sessão obrigatória.")
	}
	return nil
}

// --- Submissão ---

// Submit cria um anúncio em Pending, consumindo uma unidade do limite do papel.
// A checagem do limite e o incremento acontecem no repositório, numa única operação atômica.
func (s *Service) Submit(ctx context.Context, viewer domain.Viewer, kind domain.Kind, content domain.ListingContent) (domain.Listing, error) {
	s.logger.Debug("Iniciando submissão de anúncio.", map[string]interface{}{"user_id": viewer.UserID, "role": viewer.Role, "kind": kind})

	if err := requireSession(viewer); err != nil {
		return domain.Listing{}, err
	}

	// 1. Elegibilidade do papel
	limit, ok := domain.LimitFor(viewer.Role, kind)
	if !ok {
		s.logger.Warn("Papel não elegível para criar anúncio.", map[string]interface{}{"role": viewer.Role, "kind": kind})
		return domain.Listing{}, apperror.NewForbiddenError(fmt.Sprintf("O papel '%s' não pode criar anúncios do tipo %s.", viewer.Role, kind))
	}

	// 2. Conteúdo
	if err := content.Validate(kind); err != nil {
		return domain.Listing{}, err
	}
	content = content.Normalized(kind)
	if err := s.checkComplexLink(ctx, kind, content); err != nil {
		return domain.Listing{}, err
	}

	now := time.Now().UTC()
	listing := domain.Listing{
		ID:        uuid.New().String(),
		Kind:      kind,
		OwnerID:   viewer.UserID,
		Content:   content,
		Lifecycle: domain.Pending(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 3. Criação + incremento do contador (tudo ou nada)
	created, err := s.repo.Create(ctx, listing, limit)
	if err != nil {
		var quotaErr *apperror.QuotaExceededError
		if errors.As(err, &quotaErr) {
			metrics.QuotaRejections.WithLabelValues(string(kind), string(viewer.Role)).Inc()
			s.logger.Warn("Submissão recusada por limite.", map[string]interface{}{"user_id": viewer.UserID, "kind": kind})
		}
		return domain.Listing{}, err
	}

	metrics.ListingsSubmitted.WithLabelValues(string(kind), string(viewer.Role)).Inc()
	s.logger.Info("Anúncio submetido.", map[string]interface{}{"listing_id": created.ID, "kind": kind, "owner_id": created.OwnerID})
	return created, nil
}

// checkComplexLink exige que o empreendimento referenciado por um imóvel exista.
func (s *Service) checkComplexLink(ctx context.Context, kind domain.Kind, content domain.ListingContent) error {
	if kind != domain.KindProperty || content.Property == nil || content.Property.ComplexID == "" {
		return nil
	}
	_, err := s.repo.FindByID(ctx, domain.KindComplex, content.Property.ComplexID)
	var notFound *apperror.NotFoundError
	if errors.As(err, &notFound) {
		return apperror.NewValidationError(fmt.Sprintf("Empreendimento %s inexistente.", content.Property.ComplexID))
	}
	return err
}

// --- Reenvio ---

// Resubmit substitui o conteúdo de um anúncio rejeitado e o devolve a Pending.
// Não altera o contador de limite.
func (s *Service) Resubmit(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, content domain.ListingContent) (domain.Listing, error) {
	if err := requireSession(viewer); err != nil {
		return domain.Listing{}, err
	}

	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if current.OwnerID != viewer.UserID {
		return domain.Listing{}, apperror.NewForbiddenError("Somente o dono pode reenviar o anúncio.")
	}

	next, err := current.Lifecycle.Resubmit()
	if err != nil {
		return domain.Listing{}, err
	}

	if err := content.Validate(kind); err != nil {
		return domain.Listing{}, err
	}
	content = content.Normalized(kind)
	if err := s.checkComplexLink(ctx, kind, content); err != nil {
		return domain.Listing{}, err
	}

	updated, err := s.repo.Transition(ctx, domain.TransitionRequest{
		Kind:    kind,
		ID:      id,
		From:    domain.StatusRejected,
		Next:    next,
		Content: &content,
		Event:   domain.NewModerationEvent(kind, id, domain.ActionResubmitted, viewer.UserID),
	})
	if err != nil {
		return domain.Listing{}, err
	}

	metrics.ModerationDecisions.WithLabelValues(string(kind), string(domain.ActionResubmitted)).Inc()
	s.logger.Info("Anúncio reenviado para moderação.", map[string]interface{}{"listing_id": id, "kind": kind})
	return updated, nil
}

// --- Edição em estado ---

// Update edita o conteúdo de um anúncio Pending ou Approved sem mudar o estado.
func (s *Service) Update(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, content domain.ListingContent) (domain.Listing, error) {
	if err := requireSession(viewer); err != nil {
		return domain.Listing{}, err
	}

	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if current.OwnerID != viewer.UserID && !viewer.IsAdmin() {
		return domain.Listing{}, apperror.NewForbiddenError("Somente o dono ou um administrador pode editar o anúncio.")
	}

	if err := content.Validate(kind); err != nil {
		return domain.Listing{}, err
	}
	content = content.Normalized(kind)
	if err := s.checkComplexLink(ctx, kind, content); err != nil {
		return domain.Listing{}, err
	}

	if current.Lifecycle.Status() == domain.StatusRejected {
		return domain.Listing{}, apperror.NewInvalidTransitionError("Anúncios rejeitados devem ser reenviados, não editados.")
	}

	return s.repo.UpdateContent(ctx, kind, id, content)
}

// --- Exclusão ---

// Delete remove o anúncio e devolve a unidade ao limite do dono.
// Um contador já zerado é inconsistência interna: registrada em log, sem falhar a exclusão.
func (s *Service) Delete(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) error {
	if err := requireSession(viewer); err != nil {
		return err
	}

	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if current.OwnerID != viewer.UserID && !viewer.IsAdmin() {
		return apperror.NewForbiddenError("Somente o dono ou um administrador pode excluir o anúncio.")
	}

	res, err := s.repo.Delete(ctx, kind, id)
	if err != nil {
		return err
	}
	if res.CounterDrift {
		s.logger.Error("Contador de anúncios já estava em zero na exclusão.",
			apperror.NewInternalError(fmt.Sprintf("quota drift: user=%s kind=%s listing=%s", res.OwnerID, kind, id), nil))
	}

	s.logger.Info("Anúncio excluído.", map[string]interface{}{"listing_id": id, "kind": kind, "by": viewer.UserID})
	return nil
}

// --- Leitura ---

// Get devolve o anúncio se o viewer puder vê-lo. Invisível e inexistente respondem igual.
func (s *Service) Get(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) (domain.Listing, error) {
	l, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if !domain.IsVisible(l, viewer) {
		return domain.Listing{}, apperror.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado", id))
	}
	return l, nil
}

// GetComplex devolve o empreendimento com os imóveis vinculados visíveis ao viewer.
func (s *Service) GetComplex(ctx context.Context, viewer domain.Viewer, id string, filter domain.ListingFilter) (domain.ComplexDetail, error) {
	c, err := s.Get(ctx, viewer, domain.KindComplex, id)
	if err != nil {
		return domain.ComplexDetail{}, err
	}

	filter = filter.Normalize()
	filter.ComplexID = id
	properties, err := s.repo.List(ctx, domain.KindProperty, filter, domain.ScopeFor(viewer))
	if err != nil {
		return domain.ComplexDetail{}, err
	}
	return domain.ComplexDetail{Listing: c, Properties: properties}, nil
}

// List é o feed geral, com a regra de visibilidade do viewer.
func (s *Service) List(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error) {
	return s.repo.List(ctx, kind, filter.Normalize(), domain.ScopeFor(viewer))
}

// Public é o feed público. Anônimos veem só aprovados; dono e admin mantêm
// a mesma regra de visibilidade do feed geral.
func (s *Service) Public(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error) {
	return s.List(ctx, viewer, kind, filter)
}

// Map devolve os pontos do mapa. A paginação é mais larga que a dos feeds.
func (s *Service) Map(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.MapPoint, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultMapLimit
	}
	if filter.Limit > maxMapLimit {
		filter.Limit = maxMapLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.MapPoints(ctx, kind, filter, domain.ScopeFor(viewer))
}

// UserListings é o feed do perfil de um usuário.
func (s *Service) UserListings(ctx context.Context, viewer domain.Viewer, userID string, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	filter.OwnerID = userID
	return s.List(ctx, viewer, kind, filter)
}

// MyListings é o painel do dono: todos os estados dos próprios anúncios.
func (s *Service) MyListings(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error) {
	if err := requireSession(viewer); err != nil {
		return nil, err
	}
	filter.OwnerID = viewer.UserID
	return s.List(ctx, viewer, kind, filter)
}

// ListingLimit devolve {count, maxLimit} do usuário para o tipo, ou nil se o papel não tem teto.
// Somente o próprio usuário ou um administrador podem consultar.
func (s *Service) ListingLimit(ctx context.Context, viewer domain.Viewer, userID string, kind domain.Kind) (*domain.ListingLimitView, error) {
	if err := requireSession(viewer); err != nil {
		return nil, err
	}
	if viewer.UserID != userID && !viewer.IsAdmin() {
		return nil, apperror.NewForbiddenError("Somente o próprio usuário ou um administrador pode consultar o limite.")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !domain.IsQuotaBound(user.Role, kind) {
		return nil, nil
	}
	limit, _ := domain.LimitFor(user.Role, kind)

	// contador criado sob demanda: ausente equivale a zero
	counter, _, err := s.repo.Quota(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	return &domain.ListingLimitView{Count: counter.Count, MaxLimit: limit.MaxPtr()}, nil
}

// --- Favoritos ---

// AddFavorite marca um anúncio visível ao viewer.
func (s *Service) AddFavorite(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) error {
	if err := requireSession(viewer); err != nil {
		return err
	}
	if _, err := s.Get(ctx, viewer, kind, id); err != nil {
		return err
	}
	return s.repo.AddFavorite(ctx, viewer.UserID, kind, id)
}

// RemoveFavorite desmarca o anúncio. Remover algo não marcado não é erro.
func (s *Service) RemoveFavorite(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) error {
	if err := requireSession(viewer); err != nil {
		return err
	}
	return s.repo.RemoveFavorite(ctx, viewer.UserID, kind, id)
}

// Favorites lista os favoritos do viewer que ainda lhe são visíveis.
func (s *Service) Favorites(ctx context.Context, viewer domain.Viewer, kind domain.Kind, filter domain.ListingFilter) ([]domain.Listing, error) {
	if err := requireSession(viewer); err != nil {
		return nil, err
	}
	return s.repo.Favorites(ctx, viewer.UserID, kind, filter.Normalize(), domain.ScopeFor(viewer))
}
