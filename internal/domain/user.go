package domain

import (
	"context"
	"time"
)

// User representa a entidade do usuário no sistema.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Oculta o hash da senha no JSON de resposta
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRole é um tipo string para representar o papel do usuário no sistema.
// O papel é imutável após o registro.
type UserRole string

const (
	RoleBuyer        UserRole = "buyer"
	RoleSeller       UserRole = "seller"
	RoleAgentSolo    UserRole = "agent_solo"
	RoleAgentCompany UserRole = "agent_company"
	RoleBuilder      UserRole = "builder"
	RoleAdmin        UserRole = "admin"
)

// IsValid informa se o papel pertence ao conjunto conhecido.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAgentSolo, RoleAgentCompany, RoleBuilder, RoleAdmin:
		return true
	}
	return false
}

// UserRegistration representa o payload de entrada para o registro.
type UserRegistration struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     UserRole `json:"role" example:"seller"`
}

// UserRepository define o contrato de persistência para a entidade User.
type UserRepository interface {
	Save(ctx context.Context, user User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

// Viewer identifica quem faz a requisição. O valor zero é o visitante anônimo.
type Viewer struct {
	UserID string
	Role   UserRole
}

// IsAnonymous informa se não há sessão associada ao Viewer.
func (v Viewer) IsAnonymous() bool {
	return v.UserID == ""
}

// IsAdmin informa se o Viewer é um administrador autenticado.
func (v Viewer) IsAdmin() bool {
	return !v.IsAnonymous() && CanModerate(v.Role)
}
