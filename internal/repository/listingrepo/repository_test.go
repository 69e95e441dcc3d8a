package listingrepo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/repository/listingrepo"
)

var listingCols = []string{
	"id", "owner_id", "title", "description", "price", "city", "address", "latitude", "longitude",
	"images", "documents", "specs", "moderated", "rejected", "rejection_reason", "property_rating", "created_at", "updated_at",
}

func newRepo(t *testing.T) (*listingrepo.ListingRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return listingrepo.NewListingRepository(db, nil, 5*time.Second, time.Minute, logger.NewNop()), mock, db
}

func newListing(owner string) domain.Listing {
	now := time.Now().UTC()
	return domain.Listing{
		ID:      uuid.NewString(),
		Kind:    domain.KindProperty,
		OwnerID: owner,
		Content: domain.ListingContent{
			Title: "Apartamento 2 quartos",
			Price: decimal.NewFromInt(250000),
			City:  "Almaty",
		}.Normalized(domain.KindProperty),
		Lifecycle: domain.Pending(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreate_IncrementsQuotaAndInserts(t *testing.T) {
	repo, mock, _ := newRepo(t)
	owner := uuid.NewString()
	l := newListing(owner)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO listing_quotas`).
		WithArgs(owner, "property", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE listing_quotas SET count = count \+ 1`).
		WithArgs(owner, "property", 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO properties`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), l, domain.ListingLimit{Max: 3})

	assert.NoError(t, err)
	assert.Equal(t, l.ID, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_QuotaExceeded_RollsBack(t *testing.T) {
	repo, mock, _ := newRepo(t)
	owner := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO listing_quotas`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`UPDATE listing_quotas SET count = count \+ 1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), newListing(owner), domain.ListingLimit{Max: 3})

	assert.IsType(t, &apperror.QuotaExceededError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Unbounded_SkipsCounter(t *testing.T) {
	repo, mock, _ := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO properties`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Create(context.Background(), newListing(uuid.NewString()), domain.ListingLimit{Unbounded: true})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_InsertFailure_RollsBackCounter(t *testing.T) {
	repo, mock, _ := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO listing_quotas`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE listing_quotas`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO properties`).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), newListing(uuid.NewString()), domain.ListingLimit{Max: 3})

	assert.IsType(t, &apperror.InternalError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UnknownOwner_IsUnauthorized(t *testing.T) {
	repo, mock, _ := newRepo(t)
	l := newListing(uuid.NewString())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO properties`).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), l, domain.ListingLimit{Unbounded: true})

	assert.IsType(t, &apperror.UnauthorizedError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_MalformedID(t *testing.T) {
	repo, mock, _ := newRepo(t)

	_, err := repo.FindByID(context.Background(), domain.KindProperty, "nao-e-uuid")

	assert.IsType(t, &apperror.NotFoundError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_ScansLifecycle(t *testing.T) {
	repo, mock, _ := newRepo(t)
	id := uuid.NewString()
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT .+ FROM properties l WHERE l.id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(listingCols).AddRow(
			id, "owner-1", "Casa", "", "99.50", "Astana", "", 51.1, 71.4,
			"{https://cdn/img1.jpg}", "{}", []byte(`{"rooms":3,"complex_id":"c-1"}`),
			true, false, nil, "B+", now, now,
		))

	l, err := repo.FindByID(context.Background(), domain.KindProperty, id)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, l.Lifecycle.Status())
	rating, _ := l.Lifecycle.Rating()
	assert.Equal(t, domain.RatingBPlus, rating)
	assert.Equal(t, []string{"https://cdn/img1.jpg"}, l.Content.Images)
	assert.Equal(t, 3, l.Content.Property.Rooms)
	assert.Equal(t, "c-1", l.Content.Property.ComplexID)
	assert.True(t, decimal.RequireFromString("99.50").Equal(l.Content.Price))
}

func TestFindByID_IllegalStoredState(t *testing.T) {
	repo, mock, _ := newRepo(t)
	id := uuid.NewString()
	now := time.Now()

	mock.ExpectQuery(`FROM properties`).
		WillReturnRows(sqlmock.NewRows(listingCols).AddRow(
			id, "o", "Casa", "", "1", "", "", 0.0, 0.0, "{}", "{}", []byte(`{}`),
			true, true, "x", nil, now, now,
		))

	_, err := repo.FindByID(context.Background(), domain.KindProperty, id)
	assert.IsType(t, &apperror.InternalError{}, err)
}

func TestList_AppliesVisibilityAndFilters(t *testing.T) {
	repo, mock, _ := newRepo(t)

	mock.ExpectQuery(`\(\$1 OR \(l.moderated AND NOT l.rejected\) OR l.owner_id::text = \$2\) AND lower\(l.city\) = lower\(\$3\)`).
		WithArgs(false, "viewer-1", "Almaty", 20, 0).
		WillReturnRows(sqlmock.NewRows(listingCols))

	listings, err := repo.List(context.Background(), domain.KindProperty,
		domain.ListingFilter{City: "Almaty"}.Normalize(),
		domain.VisibilityScope{ViewerID: "viewer-1"})

	assert.NoError(t, err)
	assert.Empty(t, listings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_AlreadyModerated(t *testing.T) {
	repo, mock, _ := newRepo(t)
	id := uuid.NewString()
	next, _ := domain.Pending().Approve(domain.RatingA)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE properties l SET .+ WHERE l.id = \$1 AND l.moderated = \$2 AND l.rejected = \$3`).
		WillReturnRows(sqlmock.NewRows(listingCols))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), domain.TransitionRequest{
		Kind: domain.KindProperty, ID: id, From: domain.StatusPending, Next: next,
	})

	assert.IsType(t, &apperror.InvalidTransitionError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_Missing(t *testing.T) {
	repo, mock, _ := newRepo(t)
	next, _ := domain.Pending().Reject("fotos")

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE complexes l SET`).WillReturnRows(sqlmock.NewRows(listingCols))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), domain.TransitionRequest{
		Kind: domain.KindComplex, ID: uuid.NewString(), From: domain.StatusPending, Next: next,
	})

	assert.IsType(t, &apperror.NotFoundError{}, err)
}

func TestTransition_AppliesAndRecordsEvent(t *testing.T) {
	repo, mock, _ := newRepo(t)
	id := uuid.NewString()
	now := time.Now()
	next, _ := domain.Pending().Approve(domain.RatingA)
	rating := domain.RatingA

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE properties l SET moderated = \$4, rejected = \$5`).
		WithArgs(id, false, false, true, false, nil, "A", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(listingCols).AddRow(
			id, "owner", "Casa", "", "10", "", "", 0.0, 0.0, "{}", "{}", []byte(`{}`),
			true, false, nil, "A", now, now,
		))
	mock.ExpectExec(`INSERT INTO moderation_events`).
		WithArgs("01HZX", "property", id, "approved", "admin-1", "A", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	l, err := repo.Transition(context.Background(), domain.TransitionRequest{
		Kind: domain.KindProperty, ID: id, From: domain.StatusPending, Next: next,
		Event: domain.ModerationEvent{
			ID: "01HZX", Kind: domain.KindProperty, ListingID: id, Action: domain.ActionApproved,
			ActorID: "admin-1", Rating: &rating, CreatedAt: now,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, l.Lifecycle.Status())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_DecrementsCounter(t *testing.T) {
	repo, mock, _ := newRepo(t)
	id := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM properties WHERE id = \$1 RETURNING owner_id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("owner-1"))
	mock.ExpectExec(`DELETE FROM moderation_events`).WithArgs("property", id).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM listing_favorites`).WithArgs("property", id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE listing_quotas SET count = count - 1`).
		WithArgs("owner-1", "property").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Delete(context.Background(), domain.KindProperty, id)

	require.NoError(t, err)
	assert.Equal(t, "owner-1", res.OwnerID)
	assert.False(t, res.CounterDrift)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_CounterAtZero_ReportsDrift(t *testing.T) {
	repo, mock, _ := newRepo(t)
	id := uuid.NewString()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM properties`).WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("owner-1"))
	mock.ExpectExec(`DELETE FROM moderation_events`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM listing_favorites`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE listing_quotas`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM listing_quotas`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	res, err := repo.Delete(context.Background(), domain.KindProperty, id)

	require.NoError(t, err)
	assert.True(t, res.CounterDrift)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, _ := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM properties`).WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), domain.KindProperty, uuid.NewString())

	assert.IsType(t, &apperror.NotFoundError{}, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuota_NotFound(t *testing.T) {
	repo, mock, _ := newRepo(t)

	mock.ExpectQuery(`SELECT count, max_limit FROM listing_quotas`).
		WithArgs("u1", "property").
		WillReturnRows(sqlmock.NewRows([]string{"count", "max_limit"}))

	counter, found, err := repo.Quota(context.Background(), "u1", domain.KindProperty)

	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, counter.Count)
}

func TestReconcileQuotas_CorrectsDrift(t *testing.T) {
	repo, mock, _ := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, kind, count FROM listing_quotas .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "kind", "count"}).
			AddRow("u1", "property", 3).
			AddRow("u2", "property", 1))
	mock.ExpectQuery(`SELECT owner_id, count\(\*\) FROM properties`).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "count"}).
			AddRow("u1", 2).
			AddRow("u2", 1))
	mock.ExpectQuery(`SELECT owner_id, count\(\*\) FROM complexes`).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "count"}))
	mock.ExpectExec(`UPDATE listing_quotas SET count = \$3`).
		WithArgs("u1", "property", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	drifts, err := repo.ReconcileQuotas(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.QuotaDrift{{UserID: "u1", Kind: domain.KindProperty, Cached: 3, Actual: 2}}, drifts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFavorites_JoinsAndFiltersByVisibility(t *testing.T) {
	repo, mock, _ := newRepo(t)

	mock.ExpectQuery(`JOIN listing_favorites f ON f.listing_id = l.id AND f.kind = \$2\s+WHERE f.user_id = \$1 AND \(\$3 OR`).
		WithArgs("u1", "property", false, "u1", 20, 0).
		WillReturnRows(sqlmock.NewRows(listingCols))

	_, err := repo.Favorites(context.Background(), "u1", domain.KindProperty,
		domain.ListingFilter{}.Normalize(), domain.VisibilityScope{ViewerID: "u1"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
