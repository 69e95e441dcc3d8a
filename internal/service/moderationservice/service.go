package moderationservice

import (
	"context"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/pkg/metrics"
)

// Service aplica as decisões de moderação e expõe as filas por estado.
// Toda operação exige um administrador.
type Service struct {
	repo   domain.ListingRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Moderação.
func NewService(repo domain.ListingRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func requireAdmin(viewer domain.Viewer) error {
	if viewer.IsAnonymous() {
		return apperror.NewUnauthorizedError("Sessão obrigatória.")
	}
	if !domain.CanModerate(viewer.Role) {
		return apperror.NewForbiddenError("Somente administradores podem moderar anúncios.")
	}
	return nil
}

// Queue lista os anúncios de um estado, mais recentes primeiro.
func (s *Service) Queue(ctx context.Context, viewer domain.Viewer, kind domain.Kind, status domain.Status, filter domain.ListingFilter) ([]domain.Listing, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	filter.Status = status
	return s.repo.List(ctx, kind, filter, domain.VisibilityScope{ViewerID: viewer.UserID, All: true})
}

// Approve aplica Pending → Approved com a nota informada.
func (s *Service) Approve(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, rating string) (domain.Listing, error) {
	if err := requireAdmin(viewer); err != nil {
		return domain.Listing{}, err
	}
	parsed, err := domain.ParseRating(rating)
	if err != nil {
		return domain.Listing{}, err
	}

	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return domain.Listing{}, err
	}
	next, err := current.Lifecycle.Approve(parsed)
	if err != nil {
		s.logger.Warn("Aprovação recusada.", map[string]interface{}{"listing_id": id, "status": current.Lifecycle.Status()})
		return domain.Listing{}, err
	}

	event := domain.NewModerationEvent(kind, id, domain.ActionApproved, viewer.UserID)
	event.Rating = &parsed
	return s.apply(ctx, domain.TransitionRequest{Kind: kind, ID: id, From: domain.StatusPending, Next: next, Event: event})
}

// Reject aplica Pending → Rejected com o motivo informado.
func (s *Service) Reject(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string, reason string) (domain.Listing, error) {
	if err := requireAdmin(viewer); err != nil {
		return domain.Listing{}, err
	}
	// valida o motivo antes de consultar o estado
	if _, err := domain.Pending().Reject(reason); err != nil {
		return domain.Listing{}, err
	}

	current, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return domain.Listing{}, err
	}
	next, err := current.Lifecycle.Reject(reason)
	if err != nil {
		s.logger.Warn("Rejeição recusada.", map[string]interface{}{"listing_id": id, "status": current.Lifecycle.Status()})
		return domain.Listing{}, err
	}

	event := domain.NewModerationEvent(kind, id, domain.ActionRejected, viewer.UserID)
	stored, _ := next.RejectionReason()
	event.Reason = &stored
	return s.apply(ctx, domain.TransitionRequest{Kind: kind, ID: id, From: domain.StatusPending, Next: next, Event: event})
}

// apply delega a transição condicional ao repositório: se outro administrador
// moderou o anúncio entre a leitura e a escrita, o repositório devolve InvalidTransition.
func (s *Service) apply(ctx context.Context, req domain.TransitionRequest) (domain.Listing, error) {
	updated, err := s.repo.Transition(ctx, req)
	if err != nil {
		return domain.Listing{}, err
	}
	metrics.ModerationDecisions.WithLabelValues(string(req.Kind), string(req.Event.Action)).Inc()
	s.logger.Info("Decisão de moderação aplicada.", map[string]interface{}{
		"listing_id": req.ID,
		"kind":       req.Kind,
		"action":     req.Event.Action,
		"actor_id":   req.Event.ActorID,
	})
	return updated, nil
}

// Events devolve a trilha de auditoria do anúncio, mais antigos primeiro.
func (s *Service) Events(ctx context.Context, viewer domain.Viewer, kind domain.Kind, id string) ([]domain.ModerationEvent, error) {
	if err := requireAdmin(viewer); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, kind, id); err != nil {
		return nil, err
	}
	return s.repo.Events(ctx, kind, id)
}
