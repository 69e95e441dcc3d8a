package listingrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
)

// statePredicate traduz um Status no par (moderated, rejected) persistido.
func statePredicate(s domain.Status) (moderated, rejected bool) {
	switch s {
	case domain.StatusApproved:
		return true, false
	case domain.StatusRejected:
		return false, true
	default:
		return false, false
	}
}

// Transition aplica a transição somente se o estado persistido ainda for req.From
// (UPDATE condicional) e grava o evento de auditoria na mesma transação.
// Uma segunda aprovação concorrente não encontra linha e recebe InvalidTransition.
func (r *ListingRepository) Transition(ctx context.Context, req domain.TransitionRequest) (domain.Listing, error) {
	table, err := tableFor(req.Kind)
	if err != nil {
		return domain.Listing{}, err
	}
	if err := notFoundIfMalformed(req.ID); err != nil {
		return domain.Listing{}, err
	}
	r.logger.Debug("Aplicando transição de ciclo de vida.", map[string]interface{}{
		"listing_id": req.ID, "kind": req.Kind, "from": req.From, "to": req.Next.Status(),
	})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	now := time.Now().UTC()
	rec := req.Next.Record()
	fromModerated, fromRejected := statePredicate(req.From)

	sets := []string{"moderated = $4", "rejected = $5", "rejection_reason = $6", "property_rating = $7", "updated_at = $8"}
	args := []interface{}{req.ID, fromModerated, fromRejected,
		rec.Moderated, rec.Rejected, nullable(rec.RejectionReason), nullable(rec.PropertyRating), now}

	if req.Content != nil {
		specs, err := encodeSpecs(req.Kind, *req.Content)
		if err != nil {
			return domain.Listing{}, apperror.NewInternalError("Falha ao serializar especificações.", err)
		}
		c := req.Content
		for _, col := range []struct {
			name string
			val  interface{}
		}{
			{"title", c.Title},
			{"description", c.Description},
			{"price", c.Price},
			{"city", c.City},
			{"address", c.Address},
			{"latitude", c.Latitude},
			{"longitude", c.Longitude},
			{"images", pq.Array(c.Images)},
			{"documents", pq.Array(c.Documents)},
			{"specs", specs},
		} {
			args = append(args, col.val)
			sets = append(sets, fmt.Sprintf("%s = $%d", col.name, len(args)))
		}
	}

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Listing{}, apperror.NewDBError("failed to start tx", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`UPDATE %s l SET %s WHERE l.id = $1 AND l.moderated = $2 AND l.rejected = $3 RETURNING %s`,
		table, strings.Join(sets, ", "), listingColumns)
	l, err := scanListing(tx.QueryRowContext(ctxTimeout, query, args...), req.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, r.missOrConflict(ctxTimeout, tx, table, req.ID,
			fmt.Sprintf("O anúncio não está mais no estado %s.", req.From))
	}
	if err != nil {
		if apperror.IsAppError(err) {
			return domain.Listing{}, err
		}
		return domain.Listing{}, apperror.NewDBError("failed to apply transition", err)
	}

	ev := req.Event
	const eventSQL = `INSERT INTO moderation_events (id, kind, listing_id, action, actor_id, rating, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	var rating *string
	if ev.Rating != nil {
		s := string(*ev.Rating)
		rating = &s
	}
	if _, err := tx.ExecContext(ctxTimeout, eventSQL,
		ev.ID, string(ev.Kind), ev.ListingID, string(ev.Action), ev.ActorID, nullable(rating), nullable(ev.Reason), ev.CreatedAt,
	); err != nil {
		return domain.Listing{}, apperror.NewDBError("failed to insert moderation event", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Listing{}, apperror.NewDBError("failed to commit tx", err)
	}

	r.cacheInvalidate(ctxTimeout, fmt.Sprintf(listingCacheKey, req.Kind, req.ID))
	r.logger.Info("Transição aplicada.", map[string]interface{}{"listing_id": req.ID, "status": l.Lifecycle.Status()})
	return l, nil
}

// Events lista a trilha de moderação de um anúncio, mais antigos primeiro (ULID ordena por tempo).
func (r *ListingRepository) Events(ctx context.Context, kind domain.Kind, id string) ([]domain.ModerationEvent, error) {
	if err := notFoundIfMalformed(id); err != nil {
		return nil, err
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `SELECT id, kind, listing_id, action, actor_id, rating, reason, created_at
		FROM moderation_events WHERE kind = $1 AND listing_id = $2 ORDER BY id ASC`
	rows, err := r.DB.QueryContext(ctxTimeout, query, string(kind), id)
	if err != nil {
		return nil, apperror.NewDBError("failed to query moderation events", err)
	}
	defer rows.Close()

	events := []domain.ModerationEvent{}
	for rows.Next() {
		var (
			ev     domain.ModerationEvent
			rating sql.NullString
			reason sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.ListingID, &ev.Action, &ev.ActorID, &rating, &reason, &ev.CreatedAt); err != nil {
			return nil, apperror.NewDBError("failed to scan moderation event", err)
		}
		if rating.Valid {
			rt := domain.Rating(rating.String)
			ev.Rating = &rt
		}
		if reason.Valid {
			ev.Reason = &reason.String
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("failed to iterate moderation events", err)
	}
	return events, nil
}
