package listingrepo

import (
	"context"
	"fmt"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/pkg/database"
)

// AddFavorite marca o anúncio como favorito (idempotente).
func (r *ListingRepository) AddFavorite(ctx context.Context, userID string, kind domain.Kind, listingID string) error {
	if err := notFoundIfMalformed(listingID); err != nil {
		return err
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `INSERT INTO listing_favorites (user_id, kind, listing_id) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, kind, listing_id) DO NOTHING`
	if _, err := r.DB.ExecContext(ctxTimeout, query, userID, string(kind), listingID); err != nil {
		if database.IsForeignKeyViolation(err) {
			return errUnknownOwner
		}
		return apperror.NewDBError("failed to insert favorite", err)
	}
	return nil
}

// RemoveFavorite desmarca o anúncio (idempotente).
func (r *ListingRepository) RemoveFavorite(ctx context.Context, userID string, kind domain.Kind, listingID string) error {
	if err := notFoundIfMalformed(listingID); err != nil {
		return err
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `DELETE FROM listing_favorites WHERE user_id = $1 AND kind = $2 AND listing_id = $3`
	if _, err := r.DB.ExecContext(ctxTimeout, query, userID, string(kind), listingID); err != nil {
		return apperror.NewDBError("failed to delete favorite", err)
	}
	return nil
}

// Favorites lista os favoritos do usuário ainda visíveis para o escopo, mais recentes primeiro.
func (r *ListingRepository) Favorites(ctx context.Context, userID string, kind domain.Kind, filter domain.ListingFilter, scope domain.VisibilityScope) ([]domain.Listing, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	where, args := whereClause(filter, scope, 3)
	query := fmt.Sprintf(`SELECT %s FROM %s l
		JOIN listing_favorites f ON f.listing_id = l.id AND f.kind = $2
		WHERE f.user_id = $1 AND %s
		ORDER BY f.created_at DESC, l.id DESC LIMIT $%d OFFSET $%d`,
		listingColumns, table, where, len(args)+3, len(args)+4)
	all := append([]interface{}{userID, string(kind)}, args...)
	all = append(all, filter.Limit, filter.Offset)

	return r.queryListings(ctxTimeout, kind, query, all...)
}
