package domain

import "context"

// TransitionRequest descreve uma transição condicional de ciclo de vida.
// O repositório só aplica Next se o estado persistido ainda for From,
// e grava Event na mesma transação.
type TransitionRequest struct {
	Kind    Kind
	ID      string
	From    Status
	Next    Lifecycle
	Content *ListingContent // preenchido no reenvio: conteúdo substituído junto com o estado
	Event   ModerationEvent
}

// DeleteResult informa o que a exclusão fez com o contador do dono.
type DeleteResult struct {
	OwnerID string
	// CounterDrift indica que o contador existia mas já estava em zero.
	CounterDrift bool
}

// ListingRepository define o contrato de persistência de anúncios e contadores de limite.
type ListingRepository interface {
	// Create grava o anúncio em Pending. Se limit for finito, incrementa o contador
	// do dono na mesma operação atômica, somente se count < max; caso contrário
	// devolve QuotaExceededError sem efeito colateral.
	Create(ctx context.Context, listing Listing, limit ListingLimit) (Listing, error)
	FindByID(ctx context.Context, kind Kind, id string) (Listing, error)
	List(ctx context.Context, kind Kind, filter ListingFilter, scope VisibilityScope) ([]Listing, error)
	MapPoints(ctx context.Context, kind Kind, filter ListingFilter, scope VisibilityScope) ([]MapPoint, error)
	// UpdateContent troca o conteúdo somente se o anúncio não estiver Rejected.
	UpdateContent(ctx context.Context, kind Kind, id string, content ListingContent) (Listing, error)
	Transition(ctx context.Context, req TransitionRequest) (Listing, error)
	// Delete remove o anúncio, seus eventos e favoritos, e decrementa o contador do dono
	// (piso zero) na mesma transação.
	Delete(ctx context.Context, kind Kind, id string) (DeleteResult, error)
	Events(ctx context.Context, kind Kind, id string) ([]ModerationEvent, error)

	// Quota devolve o contador persistido; found=false se ainda não existe.
	Quota(ctx context.Context, userID string, kind Kind) (counter QuotaCounter, found bool, err error)
	ReconcileQuotas(ctx context.Context) ([]QuotaDrift, error)

	AddFavorite(ctx context.Context, userID string, kind Kind, listingID string) error
	RemoveFavorite(ctx context.Context, userID string, kind Kind, listingID string) error
	Favorites(ctx context.Context, userID string, kind Kind, filter ListingFilter, scope VisibilityScope) ([]Listing, error)
}
