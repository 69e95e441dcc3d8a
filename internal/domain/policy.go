package domain

// ListingLimit é o teto de anúncios de um papel para um tipo de anúncio.
// Unbounded indica ausência de teto; nesse caso Max é ignorado.
type ListingLimit struct {
	Max       int
	Unbounded bool
}

// Allows informa se um usuário com count anúncios pode criar mais um.
func (l ListingLimit) Allows(count int) bool {
	return l.Unbounded || count < l.Max
}

// MaxPtr devolve o teto como ponteiro (nil = ilimitado), formato usado no banco e na API.
func (l ListingLimit) MaxPtr() *int {
	if l.Unbounded {
		return nil
	}
	max := l.Max
	return &max
}

var unbounded = ListingLimit{Unbounded: true}

// roleLimits é a tabela fixa de limites por papel e tipo de anúncio.
// Papéis ausentes de um tipo não são elegíveis para criá-lo.
var roleLimits = map[Kind]map[UserRole]ListingLimit{
	KindProperty: {
		RoleSeller:       {Max: 3},
		RoleAgentSolo:    {Max: 30},
		RoleAgentCompany: {Max: 100},
		RoleBuilder:      {Max: 1000},
		RoleAdmin:        unbounded,
	},
	KindComplex: {
		RoleBuilder: {Max: 100},
		RoleAdmin:   unbounded,
	},
}

// LimitFor resolve o limite de anúncios de role para kind.
// ok=false significa "papel não elegível", que é diferente de um limite zero.
func LimitFor(role UserRole, kind Kind) (limit ListingLimit, ok bool) {
	byRole, found := roleLimits[kind]
	if !found {
		return ListingLimit{}, false
	}
	limit, ok = byRole[role]
	return limit, ok
}

// CanCreate informa se o papel pode criar anúncios do tipo informado.
func CanCreate(role UserRole, kind Kind) bool {
	_, ok := LimitFor(role, kind)
	return ok
}

// CanModerate informa se o papel pode operar a fila de moderação.
func CanModerate(role UserRole) bool {
	return role == RoleAdmin
}

// IsQuotaBound informa se o papel está sujeito a um teto finito para o tipo.
func IsQuotaBound(role UserRole, kind Kind) bool {
	limit, ok := LimitFor(role, kind)
	return ok && !limit.Unbounded
}
