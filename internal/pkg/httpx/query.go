package httpx

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
)

// ParseListingFilter lê os filtros simples da query string:
// city, min_price, max_price, rooms, owner_id, status, limit, offset.
func ParseListingFilter(r *http.Request) (domain.ListingFilter, error) {
	q := r.URL.Query()
	filter := domain.ListingFilter{
		City:    q.Get("city"),
		OwnerID: q.Get("owner_id"),
	}

	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_price", &filter.MinPrice},
		{"max_price", &filter.MaxPrice},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.ListingFilter{}, apperror.NewValidationError("Parâmetro '" + p.name + "' deve ser numérico.")
		}
		*p.dst = &d
	}

	if raw := q.Get("rooms"); raw != "" {
		rooms, err := strconv.Atoi(raw)
		if err != nil {
			return domain.ListingFilter{}, apperror.NewValidationError("Parâmetro 'rooms' deve ser inteiro.")
		}
		filter.Rooms = &rooms
	}

	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.ListingFilter{}, err
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return domain.ListingFilter{}, apperror.NewValidationError("Parâmetro 'limit' deve ser inteiro.")
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		return domain.ListingFilter{}, apperror.NewValidationError("Parâmetro 'offset' deve ser inteiro.")
	}
	return filter, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
