package listingrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
)

// Delete remove o anúncio e seus registros filhos e decrementa o contador do dono
// na mesma transação. O decremento é condicional (count > 0); se o contador existe
// mas já está em zero, a exclusão segue e o resultado sinaliza CounterDrift.
func (r *ListingRepository) Delete(ctx context.Context, kind domain.Kind, id string) (domain.DeleteResult, error) {
	table, err := tableFor(kind)
	if err != nil {
		return domain.DeleteResult{}, err
	}
	if err := notFoundIfMalformed(id); err != nil {
		return domain.DeleteResult{}, err
	}
	r.logger.Debug("Iniciando exclusão de anúncio.", map[string]interface{}{"listing_id": id, "kind": kind})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.DeleteResult{}, apperror.NewDBError("failed to start tx", err)
	}
	defer tx.Rollback()

	var res domain.DeleteResult
	err = tx.QueryRowContext(ctxTimeout, fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING owner_id`, table), id).Scan(&res.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeleteResult{}, apperror.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
	}
	if err != nil {
		return domain.DeleteResult{}, apperror.NewDBError("failed to delete listing", err)
	}

	for _, q := range []string{
		`DELETE FROM moderation_events WHERE kind = $1 AND listing_id = $2`,
		`DELETE FROM listing_favorites WHERE kind = $1 AND listing_id = $2`,
	} {
		if _, err := tx.ExecContext(ctxTimeout, q, string(kind), id); err != nil {
			return domain.DeleteResult{}, apperror.NewDBError("failed to delete listing children", err)
		}
	}

	const decrementSQL = `UPDATE listing_quotas SET count = count - 1 WHERE user_id = $1 AND kind = $2 AND count > 0`
	result, err := tx.ExecContext(ctxTimeout, decrementSQL, res.OwnerID, string(kind))
	if err != nil {
		return domain.DeleteResult{}, apperror.NewDBError("failed to decrement quota counter", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.DeleteResult{}, apperror.NewDBError("failed to read affected rows", err)
	}
	if affected == 0 {
		// Sem contador (dono sem teto) é o caso normal; contador em zero é drift.
		const existsSQL = `SELECT EXISTS(SELECT 1 FROM listing_quotas WHERE user_id = $1 AND kind = $2)`
		if err := tx.QueryRowContext(ctxTimeout, existsSQL, res.OwnerID, string(kind)).Scan(&res.CounterDrift); err != nil {
			return domain.DeleteResult{}, apperror.NewDBError("failed to check quota counter", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.DeleteResult{}, apperror.NewDBError("failed to commit tx", err)
	}

	r.cacheInvalidate(ctxTimeout, fmt.Sprintf(listingCacheKey, kind, id))
	r.logger.Info("Anúncio excluído.", map[string]interface{}{"listing_id": id, "owner_id": res.OwnerID})
	return res, nil
}

// Quota lê o contador persistido de (userID, kind).
func (r *ListingRepository) Quota(ctx context.Context, userID string, kind domain.Kind) (domain.QuotaCounter, bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	counter := domain.QuotaCounter{UserID: userID, Kind: kind}
	var maxLimit sql.NullInt64
	const query = `SELECT count, max_limit FROM listing_quotas WHERE user_id = $1 AND kind = $2`
	err := r.DB.QueryRowContext(ctxTimeout, query, userID, string(kind)).Scan(&counter.Count, &maxLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return counter, false, nil
	}
	if err != nil {
		return domain.QuotaCounter{}, false, apperror.NewDBError("failed to read quota counter", err)
	}
	if maxLimit.Valid {
		m := int(maxLimit.Int64)
		counter.MaxLimit = &m
	}
	return counter, true, nil
}

type quotaKey struct {
	userID string
	kind   domain.Kind
}

// ReconcileQuotas recalcula todos os contadores a partir da contagem real.
// Primeiro trava as linhas de listing_quotas (FOR UPDATE): submissões e exclusões
// em andamento terminam antes, e novas esperam. Depois conta os anúncios num
// snapshot novo e corrige o que divergir.
func (r *ListingRepository) ReconcileQuotas(ctx context.Context) ([]domain.QuotaDrift, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout*6)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return nil, apperror.NewDBError("failed to start tx", err)
	}
	defer tx.Rollback()

	counters := map[quotaKey]int{}
	rows, err := tx.QueryContext(ctxTimeout, `SELECT user_id, kind, count FROM listing_quotas ORDER BY user_id, kind FOR UPDATE`)
	if err != nil {
		return nil, apperror.NewDBError("failed to lock quota counters", err)
	}
	for rows.Next() {
		var (
			k     quotaKey
			count int
		)
		if err := rows.Scan(&k.userID, &k.kind, &count); err != nil {
			rows.Close()
			return nil, apperror.NewDBError("failed to scan quota counter", err)
		}
		counters[k] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("failed to iterate quota counters", err)
	}

	actual := map[quotaKey]int{}
	for _, kind := range []domain.Kind{domain.KindProperty, domain.KindComplex} {
		table, _ := tableFor(kind)
		rows, err := tx.QueryContext(ctxTimeout, fmt.Sprintf(`SELECT owner_id, count(*) FROM %s GROUP BY owner_id`, table))
		if err != nil {
			return nil, apperror.NewDBError("failed to count listings", err)
		}
		for rows.Next() {
			var (
				owner string
				n     int
			)
			if err := rows.Scan(&owner, &n); err != nil {
				rows.Close()
				return nil, apperror.NewDBError("failed to scan listing count", err)
			}
			actual[quotaKey{owner, kind}] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, apperror.NewDBError("failed to iterate listing counts", err)
		}
	}

	drifts := []domain.QuotaDrift{}
	for k, cached := range counters {
		if n := actual[k]; n != cached {
			drifts = append(drifts, domain.QuotaDrift{UserID: k.userID, Kind: k.kind, Cached: cached, Actual: n})
		}
	}
	sort.Slice(drifts, func(i, j int) bool {
		if drifts[i].UserID != drifts[j].UserID {
			return drifts[i].UserID < drifts[j].UserID
		}
		return drifts[i].Kind < drifts[j].Kind
	})
	for _, d := range drifts {
		if _, err := tx.ExecContext(ctxTimeout, `UPDATE listing_quotas SET count = $3 WHERE user_id = $1 AND kind = $2`,
			d.UserID, string(d.Kind), d.Actual); err != nil {
			return nil, apperror.NewDBError("failed to correct quota counter", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.NewDBError("failed to commit tx", err)
	}

	return drifts, nil
}
