// Package memstore implementa os contratos de repositório em memória, com as
// mesmas garantias de atomicidade do PostgreSQL: cada operação roda inteira sob
// um único mutex, então a condição de limite e a transição de estado são
// verificadas e aplicadas sem janela entre leitura e escrita.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
)

type listingKey struct {
	kind domain.Kind
	id   string
}

type quotaKey struct {
	userID string
	kind   domain.Kind
}

type favoriteKey struct {
	userID  string
	listing listingKey
}

// Store guarda usuários, anúncios, contadores, eventos e favoritos.
type Store struct {
	mu        sync.Mutex
	users     map[string]domain.User
	emails    map[string]string
	listings  map[listingKey]domain.Listing
	quotas    map[quotaKey]domain.QuotaCounter
	events    map[listingKey][]domain.ModerationEvent
	favorites map[favoriteKey]time.Time
}

var (
	_ domain.UserRepository    = (*Store)(nil)
	_ domain.ListingRepository = (*ListingStore)(nil)
)

// New cria um Store vazio.
func New() *Store {
	return &Store{
		users:     map[string]domain.User{},
		emails:    map[string]string{},
		listings:  map[listingKey]domain.Listing{},
		quotas:    map[quotaKey]domain.QuotaCounter{},
		events:    map[listingKey][]domain.ModerationEvent{},
		favorites: map[favoriteKey]time.Time{},
	}
}

func notFound(id string) error {
	return apperror.NewNotFoundError(fmt.Sprintf("Anúncio %s não encontrado.", id))
}

// clone devolve uma cópia sem aliasing das listas de URLs.
func clone(l domain.Listing) domain.Listing {
	l.Content.Images = append([]string{}, l.Content.Images...)
	l.Content.Documents = append([]string{}, l.Content.Documents...)
	if l.Content.Property != nil {
		p := *l.Content.Property
		l.Content.Property = &p
	}
	if l.Content.Complex != nil {
		c := *l.Content.Complex
		l.Content.Complex = &c
	}
	return l
}

// --- domain.UserRepository ---

func (s *Store) Save(ctx context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, taken := s.emails[email]; taken {
		return domain.User{}, apperror.NewConflictError(fmt.Sprintf("O e-mail '%s' já está cadastrado.", user.Email))
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
		user.UpdatedAt = user.CreatedAt
	}
	s.users[user.ID] = user
	s.emails[email] = user.ID
	return user, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return domain.User{}, apperror.NewNotFoundError(fmt.Sprintf("Usuário com email '%s' não encontrado", email))
	}
	return s.users[id], nil
}

func (s *Store) FindByID(ctx context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, apperror.NewNotFoundError(fmt.Sprintf("Usuário %s não encontrado", id))
	}
	return u, nil
}

// Listings expõe o mesmo Store como domain.ListingRepository.
// (FindByID tem assinaturas diferentes nos dois contratos.)
func (s *Store) Listings() *ListingStore {
	return &ListingStore{s: s}
}

// ListingStore é a visão de anúncios do Store.
type ListingStore struct {
	s *Store
}

func (ls *ListingStore) Create(ctx context.Context, l domain.Listing, limit domain.ListingLimit) (domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if !limit.Unbounded {
		k := quotaKey{l.OwnerID, l.Kind}
		counter, ok := s.quotas[k]
		if !ok {
			counter = domain.QuotaCounter{UserID: l.OwnerID, Kind: l.Kind}
		}
		if counter.Count >= limit.Max {
			return domain.Listing{}, apperror.NewQuotaExceededError(fmt.Sprintf("Limite de %d anúncios do tipo %s atingido.", limit.Max, l.Kind))
		}
		counter.Count++
		counter.MaxLimit = limit.MaxPtr()
		s.quotas[k] = counter
	}

	s.listings[listingKey{l.Kind, l.ID}] = clone(l)
	return clone(l), nil
}

func (ls *ListingStore) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingKey{kind, id}]
	if !ok {
		return domain.Listing{}, notFound(id)
	}
	return clone(l), nil
}

// selectListings aplica escopo e filtro, ordena (mais recentes primeiro) e pagina.
func (s *Store) selectListings(kind domain.Kind, filter domain.ListingFilter, scope domain.VisibilityScope) []domain.Listing {
	out := []domain.Listing{}
	for k, l := range s.listings {
		if k.kind != kind || !scope.Allows(l) || !filter.Matches(l) {
			continue
		}
		out = append(out, clone(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, filter.Offset, filter.Limit)
}

func paginate(in []domain.Listing, offset, limit int) []domain.Listing {
	if offset >= len(in) {
		return []domain.Listing{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (ls *ListingStore) List(ctx context.Context, kind domain.Kind, filter domain.ListingFilter, scope domain.VisibilityScope) ([]domain.Listing, error) {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()
	return ls.s.selectListings(kind, filter, scope), nil
}

func (ls *ListingStore) MapPoints(ctx context.Context, kind domain.Kind, filter domain.ListingFilter, scope domain.VisibilityScope) ([]domain.MapPoint, error) {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	listings := ls.s.selectListings(kind, filter, scope)
	points := make([]domain.MapPoint, 0, len(listings))
	for _, l := range listings {
		points = append(points, domain.MapPoint{ID: l.ID, Latitude: l.Content.Latitude, Longitude: l.Content.Longitude, Price: l.Content.Price})
	}
	return points, nil
}

func (ls *ListingStore) UpdateContent(ctx context.Context, kind domain.Kind, id string, content domain.ListingContent) (domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := listingKey{kind, id}
	l, ok := s.listings[k]
	if !ok {
		return domain.Listing{}, notFound(id)
	}
	if l.Lifecycle.Status() == domain.StatusRejected {
		return domain.Listing{}, apperror.NewInvalidTransitionError("Anúncios rejeitados devem ser reenviados, não editados.")
	}
	l.Content = content
	l.UpdatedAt = time.Now().UTC()
	s.listings[k] = clone(l)
	return clone(l), nil
}

func (ls *ListingStore) Transition(ctx context.Context, req domain.TransitionRequest) (domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := listingKey{req.Kind, req.ID}
	l, ok := s.listings[k]
	if !ok {
		return domain.Listing{}, notFound(req.ID)
	}
	if l.Lifecycle.Status() != req.From {
		return domain.Listing{}, apperror.NewInvalidTransitionError(fmt.Sprintf("O anúncio não está mais no estado %s.", req.From))
	}

	l.Lifecycle = req.Next
	if req.Content != nil {
		l.Content = *req.Content
	}
	l.UpdatedAt = time.Now().UTC()
	s.listings[k] = clone(l)
	s.events[k] = append(s.events[k], req.Event)
	return clone(l), nil
}

func (ls *ListingStore) Delete(ctx context.Context, kind domain.Kind, id string) (domain.DeleteResult, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := listingKey{kind, id}
	l, ok := s.listings[k]
	if !ok {
		return domain.DeleteResult{}, notFound(id)
	}
	delete(s.listings, k)
	delete(s.events, k)
	for fk := range s.favorites {
		if fk.listing == k {
			delete(s.favorites, fk)
		}
	}

	res := domain.DeleteResult{OwnerID: l.OwnerID}
	qk := quotaKey{l.OwnerID, kind}
	if counter, ok := s.quotas[qk]; ok {
		if counter.Count > 0 {
			counter.Count--
			s.quotas[qk] = counter
		} else {
			res.CounterDrift = true
		}
	}
	return res, nil
}

func (ls *ListingStore) Events(ctx context.Context, kind domain.Kind, id string) ([]domain.ModerationEvent, error) {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	return append([]domain.ModerationEvent{}, ls.s.events[listingKey{kind, id}]...), nil
}

func (ls *ListingStore) Quota(ctx context.Context, userID string, kind domain.Kind) (domain.QuotaCounter, bool, error) {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	counter, ok := ls.s.quotas[quotaKey{userID, kind}]
	if !ok {
		return domain.QuotaCounter{UserID: userID, Kind: kind}, false, nil
	}
	return counter, true, nil
}

// ReconcileQuotas recalcula os contadores existentes a partir dos anúncios.
func (ls *ListingStore) ReconcileQuotas(ctx context.Context) ([]domain.QuotaDrift, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	actual := map[quotaKey]int{}
	for k, l := range s.listings {
		actual[quotaKey{l.OwnerID, k.kind}]++
	}

	drifts := []domain.QuotaDrift{}
	for k, counter := range s.quotas {
		if n := actual[k]; n != counter.Count {
			drifts = append(drifts, domain.QuotaDrift{UserID: k.userID, Kind: k.kind, Cached: counter.Count, Actual: n})
			counter.Count = n
			s.quotas[k] = counter
		}
	}
	sort.Slice(drifts, func(i, j int) bool {
		if drifts[i].UserID != drifts[j].UserID {
			return drifts[i].UserID < drifts[j].UserID
		}
		return drifts[i].Kind < drifts[j].Kind
	})
	return drifts, nil
}

// SetQuotaCount força o valor de um contador (usado em testes de drift).
func (ls *ListingStore) SetQuotaCount(userID string, kind domain.Kind, count int) {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	k := quotaKey{userID, kind}
	counter := ls.s.quotas[k]
	counter.UserID, counter.Kind, counter.Count = userID, kind, count
	ls.s.quotas[k] = counter
}

// CountOwned conta os anúncios de um dono (a verdade contra a qual o contador é comparado).
func (ls *ListingStore) CountOwned(userID string, kind domain.Kind) int {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	n := 0
	for k, l := range ls.s.listings {
		if k.kind == kind && l.OwnerID == userID {
			n++
		}
	}
	return n
}

func (ls *ListingStore) AddFavorite(ctx context.Context, userID string, kind domain.Kind, listingID string) error {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := favoriteKey{userID, listingKey{kind, listingID}}
	if _, ok := s.favorites[k]; !ok {
		s.favorites[k] = time.Now().UTC()
	}
	return nil
}

func (ls *ListingStore) RemoveFavorite(ctx context.Context, userID string, kind domain.Kind, listingID string) error {
	ls.s.mu.Lock()
	defer ls.s.mu.Unlock()

	delete(ls.s.favorites, favoriteKey{userID, listingKey{kind, listingID}})
	return nil
}

func (ls *ListingStore) Favorites(ctx context.Context, userID string, kind domain.Kind, filter domain.ListingFilter, scope domain.VisibilityScope) ([]domain.Listing, error) {
	s := ls.s
	s.mu.Lock()
	defer s.mu.Unlock()

	type fav struct {
		l  domain.Listing
		at time.Time
	}
	favs := []fav{}
	for fk, at := range s.favorites {
		if fk.userID != userID || fk.listing.kind != kind {
			continue
		}
		l, ok := s.listings[fk.listing]
		if !ok || !scope.Allows(l) || !filter.Matches(l) {
			continue
		}
		favs = append(favs, fav{clone(l), at})
	}
	sort.Slice(favs, func(i, j int) bool {
		if !favs[i].at.Equal(favs[j].at) {
			return favs[i].at.After(favs[j].at)
		}
		return favs[i].l.ID > favs[j].l.ID
	})

	out := make([]domain.Listing, 0, len(favs))
	for _, f := range favs {
		out = append(out, f.l)
	}
	return paginate(out, filter.Offset, filter.Limit), nil
}
