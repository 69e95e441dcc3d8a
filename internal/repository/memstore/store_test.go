package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/repository/memstore"
)

func listing(owner string, kind domain.Kind) domain.Listing {
	return domain.Listing{
		ID:        uuid.NewString(),
		Kind:      kind,
		OwnerID:   owner,
		Content:   domain.ListingContent{Title: "Casa", Price: decimal.NewFromInt(1)}.Normalized(kind),
		Lifecycle: domain.Pending(),
		CreatedAt: time.Now(),
	}
}

func TestCreate_ConcurrentAtLimit_OnlyOneWins(t *testing.T) {
	ls := memstore.New().Listings()
	ctx := context.Background()
	limit := domain.ListingLimit{Max: 3}

	for i := 0; i < 2; i++ {
		_, err := ls.Create(ctx, listing("u1", domain.KindProperty), limit)
		require.NoError(t, err)
	}

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		exceeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ls.Create(ctx, listing("u1", domain.KindProperty), limit)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if _, isQuota := err.(*apperror.QuotaExceededError); isQuota {
				exceeded++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, exceeded)

	counter, found, err := ls.Quota(ctx, "u1", domain.KindProperty)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, counter.Count)
	assert.Equal(t, 3, ls.CountOwned("u1", domain.KindProperty))
}

func TestTransition_ConcurrentApprove_OnlyOneApplies(t *testing.T) {
	ls := memstore.New().Listings()
	ctx := context.Background()
	l, err := ls.Create(ctx, listing("u1", domain.KindComplex), domain.ListingLimit{Unbounded: true})
	require.NoError(t, err)
	next, _ := domain.Pending().Approve(domain.RatingA)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ls.Transition(ctx, domain.TransitionRequest{
				Kind: domain.KindComplex, ID: l.ID, From: domain.StatusPending, Next: next,
				Event: domain.ModerationEvent{Action: domain.ActionApproved},
			})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	events, _ := ls.Events(ctx, domain.KindComplex, l.ID)
	assert.Len(t, events, 1)
}

func TestDelete_FloorsAtZeroAndReportsDrift(t *testing.T) {
	ls := memstore.New().Listings()
	ctx := context.Background()
	l, err := ls.Create(ctx, listing("u1", domain.KindProperty), domain.ListingLimit{Max: 3})
	require.NoError(t, err)

	ls.SetQuotaCount("u1", domain.KindProperty, 0)
	res, err := ls.Delete(ctx, domain.KindProperty, l.ID)

	require.NoError(t, err)
	assert.True(t, res.CounterDrift)
	counter, _, _ := ls.Quota(ctx, "u1", domain.KindProperty)
	assert.Equal(t, 0, counter.Count)
}

func TestDelete_RemovesFavoritesAndEvents(t *testing.T) {
	ls := memstore.New().Listings()
	ctx := context.Background()
	l, _ := ls.Create(ctx, listing("u1", domain.KindProperty), domain.ListingLimit{Unbounded: true})
	require.NoError(t, ls.AddFavorite(ctx, "u2", domain.KindProperty, l.ID))

	_, err := ls.Delete(ctx, domain.KindProperty, l.ID)
	require.NoError(t, err)

	favs, err := ls.Favorites(ctx, "u2", domain.KindProperty, domain.ListingFilter{}, domain.VisibilityScope{All: true})
	require.NoError(t, err)
	assert.Empty(t, favs)

	_, err = ls.Delete(ctx, domain.KindProperty, l.ID)
	assert.IsType(t, &apperror.NotFoundError{}, err)
}

func TestReconcileQuotas(t *testing.T) {
	ls := memstore.New().Listings()
	ctx := context.Background()
	_, _ = ls.Create(ctx, listing("u1", domain.KindProperty), domain.ListingLimit{Max: 3})
	ls.SetQuotaCount("u1", domain.KindProperty, 3)

	drifts, err := ls.ReconcileQuotas(ctx)

	require.NoError(t, err)
	assert.Equal(t, []domain.QuotaDrift{{UserID: "u1", Kind: domain.KindProperty, Cached: 3, Actual: 1}}, drifts)
	counter, _, _ := ls.Quota(ctx, "u1", domain.KindProperty)
	assert.Equal(t, 1, counter.Count)
}

func TestUsers_DuplicateEmail(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	_, err := s.Save(ctx, domain.User{Email: "a@b.kz", Role: domain.RoleSeller})
	require.NoError(t, err)

	_, err = s.Save(ctx, domain.User{Email: "A@b.kz", Role: domain.RoleBuyer})
	assert.IsType(t, &apperror.ConflictError{}, err)
}
