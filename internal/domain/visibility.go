package domain

// IsVisible decide se o anúncio pode aparecer para o viewer:
// aprovado, ou o viewer é o dono, ou o viewer é administrador.
func IsVisible(l Listing, v Viewer) bool {
	return ScopeFor(v).Allows(l)
}

// VisibilityScope é a forma da regra de visibilidade entregue aos repositórios,
// para que toda consulta que devolve anúncios aplique exatamente o mesmo predicado.
type VisibilityScope struct {
	ViewerID string // vazio = anônimo
	All      bool   // administrador vê tudo
}

// ScopeFor deriva o escopo a partir do viewer.
func ScopeFor(v Viewer) VisibilityScope {
	return VisibilityScope{ViewerID: v.UserID, All: v.IsAdmin()}
}

// Allows aplica o escopo a um anúncio.
func (s VisibilityScope) Allows(l Listing) bool {
	if s.All {
		return true
	}
	if l.Lifecycle.Status() == StatusApproved {
		return true
	}
	return s.ViewerID != "" && s.ViewerID == l.OwnerID
}
