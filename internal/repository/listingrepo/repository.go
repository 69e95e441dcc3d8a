package listingrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/pkg/cache"
	"goimovel/internal/pkg/database"
	"goimovel/internal/pkg/logger"
)

// ListingRepository implementa domain.ListingRepository sobre PostgreSQL.
// Imóveis ficam em properties e empreendimentos em complexes (mesmo formato).
type ListingRepository struct {
	DB        *sql.DB
	Cache     cache.Client // opcional; nil desliga o cache-aside
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

var _ domain.ListingRepository = (*ListingRepository)(nil)

// NewListingRepository cria o repositório injetando DB, cache e logger.
func NewListingRepository(db *sql.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, log logger.Logger) *ListingRepository {
	return &ListingRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    log,
	}
}

var tables = map[domain.Kind]string{
	domain.KindProperty: "properties",
	domain.KindComplex:  "complexes",
}

// notFoundIfMalformed evita mandar ao banco um ID que não é UUID.
func notFoundIfMalformed(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
	}
	return nil
}

func tableFor(kind domain.Kind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", apperror.NewValidationError(fmt.Sprintf("Tipo de anúncio '%s' desconhecido.", kind))
	}
	return t, nil
}

// listingColumns é a ordem usada por scanListing.
const listingColumns = `l.id, l.owner_id, l.title, l.description, l.price, l.city, l.address, l.latitude, l.longitude,
	l.images, l.documents, l.specs, l.moderated, l.rejected, l.rejection_reason, l.property_rating, l.created_at, l.updated_at`

const (
	listingCacheKey = "listing:%s:%s"
	cacheTombstone  = "-"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner, kind domain.Kind) (domain.Listing, error) {
	var (
		l         domain.Listing
		images    pq.StringArray
		documents pq.StringArray
		specs     []byte
		rec       domain.LifecycleRecord
		reason    sql.NullString
		rating    sql.NullString
	)
	err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&l.Content.Title,
		&l.Content.Description,
		&l.Content.Price,
		&l.Content.City,
		&l.Content.Address,
		&l.Content.Latitude,
		&l.Content.Longitude,
		&images,
		&documents,
		&specs,
		&rec.Moderated,
		&rec.Rejected,
		&reason,
		&rating,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}

	l.Kind = kind
	l.Content.Images = []string(images)
	l.Content.Documents = []string(documents)
	if err := decodeSpecs(kind, specs, &l.Content); err != nil {
		return domain.Listing{}, apperror.NewInternalError("Especificações do anúncio corrompidas.", err)
	}
	if reason.Valid {
		rec.RejectionReason = &reason.String
	}
	if rating.Valid {
		rec.PropertyRating = &rating.String
	}
	l.Lifecycle, err = domain.LifecycleFromRecord(rec)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Content = l.Content.Normalized(kind)
	return l, nil
}

func encodeSpecs(kind domain.Kind, c domain.ListingContent) ([]byte, error) {
	switch {
	case kind == domain.KindProperty && c.Property != nil:
		return json.Marshal(c.Property)
	case kind == domain.KindComplex && c.Complex != nil:
		return json.Marshal(c.Complex)
	}
	return []byte("{}"), nil
}

func decodeSpecs(kind domain.Kind, raw []byte, c *domain.ListingContent) error {
	if len(raw) == 0 {
		return nil
	}
	switch kind {
	case domain.KindProperty:
		var p domain.PropertySpecs
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		c.Property = &p
	case domain.KindComplex:
		var cs domain.ComplexSpecs
		if err := json.Unmarshal(raw, &cs); err != nil {
			return err
		}
		c.Complex = &cs
	}
	return nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// errUnknownOwner: a sessão aponta para um usuário que não existe mais.
var errUnknownOwner = apperror.NewUnauthorizedError("Usuário da sessão não encontrado.")

// Create grava o anúncio e, para limites finitos, faz o compare-and-increment do
// contador na mesma transação:
//
//	INSERT ... ON CONFLICT DO NOTHING   (contador criado em zero na primeira vez)
//	UPDATE ... SET count = count + 1 WHERE count < max RETURNING count
//
// O UPDATE bloqueia a linha do contador; submissões concorrentes do mesmo usuário
// são serializadas ali e reavaliam a condição após o commit da anterior.
func (r *ListingRepository) Create(ctx context.Context, l domain.Listing, limit domain.ListingLimit) (domain.Listing, error) {
	table, err := tableFor(l.Kind)
	if err != nil {
		return domain.Listing{}, err
	}
	r.logger.Debug("Iniciando criação de anúncio no repositório.", map[string]interface{}{"kind": l.Kind, "owner_id": l.OwnerID})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	specs, err := encodeSpecs(l.Kind, l.Content)
	if err != nil {
		return domain.Listing{}, apperror.NewInternalError("Falha ao serializar especificações.", err)
	}

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Listing{}, apperror.NewDBError("failed to start tx", err)
	}
	defer tx.Rollback()

	if !limit.Unbounded {
		const ensureQuotaSQL = `INSERT INTO listing_quotas (user_id, kind, count, max_limit) VALUES ($1, $2, 0, $3)
			ON CONFLICT (user_id, kind) DO NOTHING`
		if _, err := tx.ExecContext(ctxTimeout, ensureQuotaSQL, l.OwnerID, string(l.Kind), limit.Max); err != nil {
			if database.IsForeignKeyViolation(err) {
				return domain.Listing{}, errUnknownOwner
			}
			return domain.Listing{}, apperror.NewDBError("failed to ensure quota counter", err)
		}

		const incrementSQL = `UPDATE listing_quotas SET count = count + 1, max_limit = $3
			WHERE user_id = $1 AND kind = $2 AND count < $3 RETURNING count`
		var count int
		err := tx.QueryRowContext(ctxTimeout, incrementSQL, l.OwnerID, string(l.Kind), limit.Max).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Info("Limite de anúncios atingido.", map[string]interface{}{"owner_id": l.OwnerID, "kind": l.Kind, "max": limit.Max})
			return domain.Listing{}, apperror.NewQuotaExceededError(fmt.Sprintf("Limite de %d anúncios do tipo %s atingido.", limit.Max, l.Kind))
		}
		if err != nil {
			return domain.Listing{}, apperror.NewDBError("failed to increment quota counter", err)
		}
	}

	rec := l.Lifecycle.Record()
	insertSQL := fmt.Sprintf(`INSERT INTO %s (id, owner_id, title, description, price, city, address, latitude, longitude,
		images, documents, specs, moderated, rejected, rejection_reason, property_rating, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`, table)
	_, err = tx.ExecContext(ctxTimeout, insertSQL,
		l.ID,
		l.OwnerID,
		l.Content.Title,
		l.Content.Description,
		l.Content.Price,
		l.Content.City,
		l.Content.Address,
		l.Content.Latitude,
		l.Content.Longitude,
		pq.Array(l.Content.Images),
		pq.Array(l.Content.Documents),
		specs,
		rec.Moderated,
		rec.Rejected,
		nullable(rec.RejectionReason),
		nullable(rec.PropertyRating),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return domain.Listing{}, errUnknownOwner
		}
		return domain.Listing{}, apperror.NewDBError("failed to insert listing", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Listing{}, apperror.NewDBError("failed to commit tx", err)
	}

	r.logger.Info("Anúncio criado no repositório.", map[string]interface{}{"listing_id": l.ID, "kind": l.Kind})
	return l, nil
}

// FindByID busca um anúncio pelo ID com cache-aside. Não aplica visibilidade.
func (r *ListingRepository) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Listing, error) {
	table, err := tableFor(kind)
	if err != nil {
		return domain.Listing{}, err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if err := notFoundIfMalformed(id); err != nil {
		return domain.Listing{}, err
	}

	key := fmt.Sprintf(listingCacheKey, kind, id)
	if cached, ok := r.cacheGet(ctxTimeout, key); ok {
		return cached, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s l WHERE l.id = $1`, listingColumns, table)
	l, err := scanListing(r.DB.QueryRowContext(ctxTimeout, query, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, apperror.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
	}
	if err != nil {
		if apperror.IsAppError(err) {
			return domain.Listing{}, err
		}
		return domain.Listing{}, apperror.NewDBError("failed to find listing", err)
	}

	r.cacheSet(ctxTimeout, key, l)
	return l, nil
}

// whereClause monta o predicado de visibilidade e os filtros simples.
// Os placeholders começam em $start.
func whereClause(filter domain.ListingFilter, scope domain.VisibilityScope, start int) (string, []interface{}) {
	args := []interface{}{scope.All, scope.ViewerID}
	conds := []string{fmt.Sprintf("($%d OR (l.moderated AND NOT l.rejected) OR l.owner_id::text = $%d)", start, start+1)}
	n := start + 2

	add := func(cond string, arg interface{}) {
		conds = append(conds, fmt.Sprintf(cond, n))
		args = append(args, arg)
		n++
	}

	if filter.City != "" {
		add("lower(l.city) = lower($%d)", filter.City)
	}
	if filter.MinPrice != nil {
		add("l.price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("l.price <= $%d", *filter.MaxPrice)
	}
	if filter.Rooms != nil {
		add("(l.specs->>'rooms')::int = $%d", *filter.Rooms)
	}
	if filter.OwnerID != "" {
		add("l.owner_id::text = $%d", filter.OwnerID)
	}
	if filter.ComplexID != "" {
		add("l.specs->>'complex_id' = $%d", filter.ComplexID)
	}
	switch filter.Status {
	case domain.StatusPending:
		conds = append(conds, "NOT l.moderated AND NOT l.rejected")
	case domain.StatusApproved:
		conds = append(conds, "l.moderated AND NOT l.rejected")
	case domain.StatusRejected:
		conds = append(conds, "l.rejected")
	}
	return strings.Join(conds, " AND "), args
}

// List devolve os anúncios visíveis para o escopo, mais recentes primeiro.
func (r *ListingRepository) List(ctx context.Context, kind domain.Kind, filter domain.ListingFilter, scope domain.VisibilityScope) ([]domain.Listing, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	where, args := whereClause(filter, scope, 1)
	query := fmt.Sprintf(`SELECT %s FROM %s l WHERE %s ORDER BY l.created_at DESC, l.id DESC LIMIT $%d OFFSET $%d`,
		listingColumns, table, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	return r.queryListings(ctxTimeout, kind, query, args...)
}

func (r *ListingRepository) queryListings(ctx context.Context, kind domain.Kind, query string, args ...interface{}) ([]domain.Listing, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewDBError("failed to query listings", err)
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows, kind)
		if err != nil {
			if apperror.IsAppError(err) {
				return nil, err
			}
			return nil, apperror.NewDBError("failed to scan listing", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("failed to iterate listings", err)
	}
	return listings, nil
}

// MapPoints devolve a projeção leve do feed do mapa com a mesma visibilidade.
func (r *ListingRepository) MapPoints(ctx context.Context, kind domain.Kind, filter domain.ListingFilter, scope domain.VisibilityScope) ([]domain.MapPoint, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	where, args := whereClause(filter, scope, 1)
	query := fmt.Sprintf(`SELECT l.id, l.latitude, l.longitude, l.price FROM %s l WHERE %s
		ORDER BY l.created_at DESC, l.id DESC LIMIT $%d OFFSET $%d`, table, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.DB.QueryContext(ctxTimeout, query, args...)
	if err != nil {
		return nil, apperror.NewDBError("failed to query map points", err)
	}
	defer rows.Close()

	points := []domain.MapPoint{}
	for rows.Next() {
		var (
			p     domain.MapPoint
			price decimal.Decimal
		)
		if err := rows.Scan(&p.ID, &p.Latitude, &p.Longitude, &price); err != nil {
			return nil, apperror.NewDBError("failed to scan map point", err)
		}
		p.Price = price
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDBError("failed to iterate map points", err)
	}
	return points, nil
}

// UpdateContent substitui o conteúdo de um anúncio Pending ou Approved.
func (r *ListingRepository) UpdateContent(ctx context.Context, kind domain.Kind, id string, content domain.ListingContent) (domain.Listing, error) {
	table, err := tableFor(kind)
	if err != nil {
		return domain.Listing{}, err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if err := notFoundIfMalformed(id); err != nil {
		return domain.Listing{}, err
	}
	specs, err := encodeSpecs(kind, content)
	if err != nil {
		return domain.Listing{}, apperror.NewInternalError("Falha ao serializar especificações.", err)
	}

	query := fmt.Sprintf(`UPDATE %s l SET title = $2, description = $3, price = $4, city = $5, address = $6,
		latitude = $7, longitude = $8, images = $9, documents = $10, specs = $11, updated_at = $12
		WHERE l.id = $1 AND NOT l.rejected RETURNING %s`, table, listingColumns)
	row := r.DB.QueryRowContext(ctxTimeout, query,
		id,
		content.Title,
		content.Description,
		content.Price,
		content.City,
		content.Address,
		content.Latitude,
		content.Longitude,
		pq.Array(content.Images),
		pq.Array(content.Documents),
		specs,
		time.Now().UTC(),
	)
	l, err := scanListing(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, r.missOrConflict(ctxTimeout, r.DB, table, id,
			"Anúncios rejeitados devem ser reenviados, não editados.")
	}
	if err != nil {
		if apperror.IsAppError(err) {
			return domain.Listing{}, err
		}
		return domain.Listing{}, apperror.NewDBError("failed to update listing content", err)
	}

	r.cacheInvalidate(ctxTimeout, fmt.Sprintf(listingCacheKey, kind, id))
	return l, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// missOrConflict distingue "não existe" de "existe mas a pré-condição falhou"
// depois de um UPDATE condicional que não afetou nenhuma linha.
func (r *ListingRepository) missOrConflict(ctx context.Context, q queryer, table, id, conflictMsg string) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return apperror.NewDBError("failed to check listing existence", err)
	}
	if !exists {
		return apperror.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
	}
	return apperror.NewInvalidTransitionError(conflictMsg)
}

// --- cache-aside (opcional) ---

func (r *ListingRepository) cacheGet(ctx context.Context, key string) (domain.Listing, bool) {
	if r.Cache == nil {
		return domain.Listing{}, false
	}
	raw, err := r.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("Falha ao ler do cache.", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return domain.Listing{}, false
	}
	if raw == cacheTombstone {
		return domain.Listing{}, false
	}
	var l domain.Listing
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		r.logger.Warn("Entrada de cache inválida descartada.", map[string]interface{}{"key": key, "error": err.Error()})
		r.cacheDelete(ctx, key)
		return domain.Listing{}, false
	}
	return l, true
}

// cacheSet não sobrescreve: se houver tombstone de uma escrita recente,
// a leitura concorrente não devolve ao cache uma versão já superada.
func (r *ListingRepository) cacheSet(ctx context.Context, key string, l domain.Listing) {
	if r.Cache == nil {
		return
	}
	data, err := json.Marshal(l)
	if err != nil {
		return
	}
	if _, err := r.Cache.SetNX(ctx, key, data, r.CacheTTL); err != nil {
		r.logger.Warn("Falha ao gravar no cache.", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// cacheInvalidate troca a entrada por um tombstone que vive DBTimeout.
// Toda leitura iniciada antes do commit termina (ou expira o contexto)
// dentro desse prazo, então nenhuma consegue regravar o valor antigo.
func (r *ListingRepository) cacheInvalidate(ctx context.Context, key string) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Set(ctx, key, cacheTombstone, r.DBTimeout); err != nil {
		r.logger.Warn("Falha ao invalidar cache.", map[string]interface{}{"key": key, "error": err.Error()})
		r.cacheDelete(ctx, key)
	}
}

func (r *ListingRepository) cacheDelete(ctx context.Context, keys ...string) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Falha ao invalidar cache.", map[string]interface{}{"keys": keys, "error": err.Error()})
	}
}
