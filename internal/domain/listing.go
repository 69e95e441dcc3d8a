package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperror "goimovel/internal/errors"
)

// Kind distingue imóveis avulsos (property) de empreendimentos (complex).
// Os dois compartilham o mesmo ciclo de vida de moderação.
type Kind string

const (
	KindProperty Kind = "property"
	KindComplex  Kind = "complex"
)

// ParseKind valida o segmento {kind} das rotas.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindProperty, KindComplex:
		return Kind(s), nil
	}
	return "", apperror.NewValidationError(fmt.Sprintf("Tipo de anúncio '%s' desconhecido. Use 'property' ou 'complex'.", s))
}

// Listing é um anúncio (imóvel ou empreendimento).
// O dono nunca muda depois da criação.
type Listing struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	OwnerID   string         `json:"owner_id"`
	Content   ListingContent `json:"content"`
	Lifecycle Lifecycle      `json:"lifecycle"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ListingContent agrupa os campos editáveis pelo dono.
type ListingContent struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	City        string          `json:"city"`
	Address     string          `json:"address"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	Images      []string        `json:"images"`    // URLs no storage de objetos
	Documents   []string        `json:"documents"` // URLs no storage de objetos

	Property *PropertySpecs `json:"property,omitempty"`
	Complex  *ComplexSpecs  `json:"complex,omitempty"`
}

// PropertySpecs são os campos exclusivos de imóveis.
type PropertySpecs struct {
	Rooms     int     `json:"rooms"`
	AreaM2    float64 `json:"area_m2"`
	Floor     int     `json:"floor"`
	ComplexID string  `json:"complex_id,omitempty"` // empreendimento ao qual o imóvel pertence
}

// ComplexSpecs são os campos exclusivos de empreendimentos.
type ComplexSpecs struct {
	Developer      string `json:"developer"`
	CompletionYear int    `json:"completion_year"`
	BuildingsCount int    `json:"buildings_count"`
}

// Validate aplica as regras de conteúdo para o tipo informado.
func (c ListingContent) Validate(kind Kind) error {
	title := utf8.RuneCountInString(strings.TrimSpace(c.Title))
	if title < 3 || title > 200 {
		return apperror.NewValidationError("O título deve ter entre 3 e 200 caracteres.")
	}
	if !c.Price.IsPositive() {
		return apperror.NewValidationError("O preço deve ser maior que zero.")
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return apperror.NewValidationError("Coordenadas fora do intervalo válido.")
	}
	for _, url := range append(append([]string{}, c.Images...), c.Documents...) {
		if strings.TrimSpace(url) == "" {
			return apperror.NewValidationError("URLs de imagens e documentos não podem ser vazias.")
		}
	}

	switch kind {
	case KindProperty:
		if c.Complex != nil {
			return apperror.NewValidationError("Imóveis não aceitam campos de empreendimento.")
		}
		if c.Property != nil && (c.Property.Rooms < 0 || c.Property.AreaM2 < 0) {
			return apperror.NewValidationError("Quartos e área não podem ser negativos.")
		}
	case KindComplex:
		if c.Property != nil {
			return apperror.NewValidationError("Empreendimentos não aceitam campos de imóvel.")
		}
		if c.Complex != nil && c.Complex.BuildingsCount < 0 {
			return apperror.NewValidationError("O número de prédios não pode ser negativo.")
		}
	default:
		return apperror.NewValidationError(fmt.Sprintf("Tipo de anúncio '%s' desconhecido.", kind))
	}
	return nil
}

// Normalized remove espaços das bordas dos campos textuais e garante
// listas e especificações não nulas para o tipo informado.
func (c ListingContent) Normalized(kind Kind) ListingContent {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.City = strings.TrimSpace(c.City)
	c.Address = strings.TrimSpace(c.Address)
	if c.Images == nil {
		c.Images = []string{}
	}
	if c.Documents == nil {
		c.Documents = []string{}
	}
	switch kind {
	case KindProperty:
		if c.Property == nil {
			c.Property = &PropertySpecs{}
		}
	case KindComplex:
		if c.Complex == nil {
			c.Complex = &ComplexSpecs{}
		}
	}
	return c
}

// ListingFilter define os predicados simples de busca e a paginação.
type ListingFilter struct {
	City      string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	Rooms     *int
	OwnerID   string
	ComplexID string
	Status    Status // vazio = qualquer estado permitido pela visibilidade
	Limit     int
	Offset    int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize aplica os limites de paginação.
func (f ListingFilter) Normalize() ListingFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches aplica o filtro em memória (mesma semântica das consultas SQL).
func (f ListingFilter) Matches(l Listing) bool {
	if f.City != "" && !strings.EqualFold(f.City, l.Content.City) {
		return false
	}
	if f.MinPrice != nil && l.Content.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && l.Content.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Rooms != nil && (l.Content.Property == nil || l.Content.Property.Rooms != *f.Rooms) {
		return false
	}
	if f.OwnerID != "" && f.OwnerID != l.OwnerID {
		return false
	}
	if f.ComplexID != "" && (l.Content.Property == nil || l.Content.Property.ComplexID != f.ComplexID) {
		return false
	}
	if f.Status != "" && f.Status != l.Lifecycle.Status() {
		return false
	}
	return true
}

// MapPoint é a projeção leve usada pelo feed do mapa.
type MapPoint struct {
	ID        string          `json:"id"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Price     decimal.Decimal `json:"price"`
}

// ComplexDetail é o empreendimento com os imóveis visíveis vinculados a ele.
type ComplexDetail struct {
	Listing
	Properties []Listing `json:"properties"`
}

// ModerationAction identifica um evento da trilha de auditoria.
type ModerationAction string

const (
	ActionApproved    ModerationAction = "approved"
	ActionRejected    ModerationAction = "rejected"
	ActionResubmitted ModerationAction = "resubmitted"
)

// ModerationEvent registra uma transição aplicada a um anúncio.
type ModerationEvent struct {
	ID        string           `json:"id"` // ULID, ordenável por tempo
	Kind      Kind             `json:"kind"`
	ListingID string           `json:"listing_id"`
	Action    ModerationAction `json:"action"`
	ActorID   string           `json:"actor_id"`
	Rating    *Rating          `json:"rating,omitempty"`
	Reason    *string          `json:"reason,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
