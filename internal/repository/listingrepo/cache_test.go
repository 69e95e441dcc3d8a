package listingrepo_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goimovel/internal/domain"
	"goimovel/internal/pkg/cache"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/repository/listingrepo"
)

// memCache é um cache.Client em memória, sem expiração, suficiente para
// observar o que o repositório grava e invalida.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func asString(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = asString(value)
	return nil
}

func (c *memCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = asString(value)
	return true, nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) GetInt(context.Context, string) (int, error) { return 0, cache.ErrCacheMiss }

func (c *memCache) Incr(context.Context, string, time.Duration) (int64, error) { return 0, nil }

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) raw(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func newCachedRepo(t *testing.T) (*listingrepo.ListingRepository, sqlmock.Sqlmock, *memCache) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := newMemCache()
	return listingrepo.NewListingRepository(db, c, 5*time.Second, time.Minute, logger.NewNop()), mock, c
}

func approvedRow(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(listingCols).AddRow(
		id, "owner-1", "Casa", "", "100", "Almaty", "", 0.0, 0.0, "{}", "{}", []byte(`{}`),
		true, false, nil, "A", now, now,
	)
}

func cacheKey(id string) string { return "listing:property:" + id }

func TestFindByID_CacheAside(t *testing.T) {
	repo, mock, c := newCachedRepo(t)
	id := uuid.NewString()

	mock.ExpectQuery(`FROM properties l WHERE l.id = \$1`).WithArgs(id).WillReturnRows(approvedRow(id))

	first, err := repo.FindByID(context.Background(), domain.KindProperty, id)
	require.NoError(t, err)
	_, cached := c.raw(cacheKey(id))
	assert.True(t, cached)

	// Segunda leitura sai do cache: nenhuma query nova esperada.
	second, err := repo.FindByID(context.Background(), domain.KindProperty, id)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusApproved, second.Lifecycle.Status())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutations_InvalidateCachedListing(t *testing.T) {
	ctx := context.Background()
	next, _ := domain.Pending().Reject("fotos incompletas")

	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock, id string)
		mutate func(repo *listingrepo.ListingRepository, id string) error
	}{
		{
			name: "Transition",
			expect: func(mock sqlmock.Sqlmock, id string) {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE properties l SET moderated`).WillReturnRows(approvedRow(id))
				mock.ExpectExec(`INSERT INTO moderation_events`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			mutate: func(repo *listingrepo.ListingRepository, id string) error {
				_, err := repo.Transition(ctx, domain.TransitionRequest{
					Kind: domain.KindProperty, ID: id, From: domain.StatusPending, Next: next,
					Event: domain.NewModerationEvent(domain.KindProperty, id, domain.ActionRejected, "admin-1"),
				})
				return err
			},
		},
		{
			name: "UpdateContent",
			expect: func(mock sqlmock.Sqlmock, id string) {
				mock.ExpectQuery(`UPDATE properties l SET title`).WillReturnRows(approvedRow(id))
			},
			mutate: func(repo *listingrepo.ListingRepository, id string) error {
				_, err := repo.UpdateContent(ctx, domain.KindProperty, id, newListing("owner-1").Content)
				return err
			},
		},
		{
			name: "Delete",
			expect: func(mock sqlmock.Sqlmock, id string) {
				mock.ExpectBegin()
				mock.ExpectQuery(`DELETE FROM properties`).WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("owner-1"))
				mock.ExpectExec(`DELETE FROM moderation_events`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`DELETE FROM listing_favorites`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`UPDATE listing_quotas`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			mutate: func(repo *listingrepo.ListingRepository, id string) error {
				_, err := repo.Delete(ctx, domain.KindProperty, id)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, c := newCachedRepo(t)
			id := uuid.NewString()

			mock.ExpectQuery(`FROM properties l WHERE l.id = \$1`).WillReturnRows(approvedRow(id))
			_, err := repo.FindByID(ctx, domain.KindProperty, id)
			require.NoError(t, err)

			tt.expect(mock, id)
			require.NoError(t, tt.mutate(repo, id))

			// A próxima leitura vai ao banco, não ao valor antigo.
			mock.ExpectQuery(`FROM properties l WHERE l.id = \$1`).WillReturnRows(approvedRow(id))
			_, err = repo.FindByID(ctx, domain.KindProperty, id)
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())

			v, _ := c.raw(cacheKey(id))
			assert.Equal(t, "-", v, "leitura logo após a escrita não repovoa o cache")
		})
	}
}

func TestFindByID_ReadBeforeDeleteCommit_DoesNotRecache(t *testing.T) {
	ctx := context.Background()
	repo, mock, c := newCachedRepo(t)
	id := uuid.NewString()

	// A leitura lenta pega a linha antes do commit do delete e só grava no
	// cache depois. WillDelayFor segura o retorno da linha.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`FROM properties l WHERE l.id = \$1`).
		WillDelayFor(100 * time.Millisecond).
		WillReturnRows(approvedRow(id))
	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM properties`).WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("owner-1"))
	mock.ExpectExec(`DELETE FROM moderation_events`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM listing_favorites`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE listing_quotas`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	done := make(chan error, 1)
	go func() {
		_, err := repo.FindByID(ctx, domain.KindProperty, id)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := repo.Delete(ctx, domain.KindProperty, id)
	require.NoError(t, err)
	require.NoError(t, <-done)

	v, _ := c.raw(cacheKey(id))
	assert.Equal(t, "-", v, "anúncio excluído não pode voltar ao cache")
}
