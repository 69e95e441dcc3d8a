package domain_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"goimovel/internal/domain"
)

func TestIsVisible(t *testing.T) {
	owner := domain.Viewer{UserID: "owner", Role: domain.RoleSeller}
	stranger := domain.Viewer{UserID: "other", Role: domain.RoleBuyer}
	admin := domain.Viewer{UserID: "root", Role: domain.RoleAdmin}
	anon := domain.Viewer{}

	base := domain.Listing{ID: "l1", OwnerID: "owner"}
	pending := base
	approvedL := base
	approvedL.Lifecycle = approved(t)
	rejectedL := base
	rejectedL.Lifecycle = rejected(t)

	tests := []struct {
		name    string
		listing domain.Listing
		viewer  domain.Viewer
		want    bool
	}{
		{"approved/anon", approvedL, anon, true},
		{"approved/stranger", approvedL, stranger, true},
		{"pending/anon", pending, anon, false},
		{"pending/stranger", pending, stranger, false},
		{"pending/owner", pending, owner, true},
		{"pending/admin", pending, admin, true},
		{"rejected/stranger", rejectedL, stranger, false},
		{"rejected/owner", rejectedL, owner, true},
		{"rejected/admin", rejectedL, admin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsVisible(tt.listing, tt.viewer))
		})
	}
}

func TestIsVisible_AdminRoleWithoutSession(t *testing.T) {
	// papel admin sem ID não é uma sessão válida
	v := domain.Viewer{Role: domain.RoleAdmin}
	assert.False(t, domain.IsVisible(domain.Listing{OwnerID: "x"}, v))
}

func TestListingFilter_Matches(t *testing.T) {
	l := domain.Listing{
		OwnerID: "u1",
		Content: domain.ListingContent{
			City:     "Almaty",
			Price:    decimal.NewFromInt(50000),
			Property: &domain.PropertySpecs{Rooms: 2, ComplexID: "c1"},
		},
	}
	min := decimal.NewFromInt(10000)
	max := decimal.NewFromInt(40000)
	rooms := 2

	assert.True(t, domain.ListingFilter{City: "almaty", MinPrice: &min, Rooms: &rooms}.Matches(l))
	assert.False(t, domain.ListingFilter{MaxPrice: &max}.Matches(l))
	assert.True(t, domain.ListingFilter{ComplexID: "c1", OwnerID: "u1"}.Matches(l))
	assert.False(t, domain.ListingFilter{Status: domain.StatusApproved}.Matches(l))
}

func TestListingContent_Validate(t *testing.T) {
	ok := domain.ListingContent{Title: "Apartamento", Price: decimal.NewFromInt(1)}
	assert.NoError(t, ok.Validate(domain.KindProperty))

	short := ok
	short.Title = "ab"
	assert.Error(t, short.Validate(domain.KindProperty))

	accented := ok
	accented.Title = strings.Repeat("ã", 150)
	assert.NoError(t, accented.Validate(domain.KindProperty), "tamanho conta caracteres, não bytes")
	accented.Title = "Çã"
	assert.Error(t, accented.Validate(domain.KindProperty))

	free := ok
	free.Price = decimal.Zero
	assert.Error(t, free.Validate(domain.KindProperty))

	mixed := ok
	mixed.Complex = &domain.ComplexSpecs{Developer: "X"}
	assert.Error(t, mixed.Validate(domain.KindProperty))
	assert.NoError(t, mixed.Validate(domain.KindComplex))

	_, err := domain.ParseKind("castle")
	assert.Error(t, err)
}

func TestListingFilter_Normalize(t *testing.T) {
	f := domain.ListingFilter{Limit: 0, Offset: -3}.Normalize()
	assert.Equal(t, domain.DefaultPageSize, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, domain.MaxPageSize, domain.ListingFilter{Limit: 5000}.Normalize().Limit)
}
