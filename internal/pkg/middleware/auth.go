package middleware

import (
	"context"
	"net/http"
	"strings"

	"goimovel/internal/domain"
	apperror "goimovel/internal/errors"
	"goimovel/internal/pkg/httpx"
	"goimovel/internal/pkg/token"
)

// ContextKey é o tipo das chaves de contexto deste pacote.
// Context Keys devem ser não-exportadas ou de um tipo único.
type ContextKey int

const (
	UserClaimsKey ContextKey = iota
)

// UserClaims representa os dados do usuário extraídos do token JWT.
type UserClaims struct {
	UserID string
	Role   domain.UserRole
}

// TokenService define o contrato de validação necessário para o middleware.
type TokenService interface {
	ValidateToken(tokenString string) (*token.CustomClaims, error)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") || len(authHeader) <= 7 {
		return "", false
	}
	return authHeader[7:], true
}

func claimsFrom(tokenSvc TokenService, raw string) (UserClaims, error) {
	claims, err := tokenSvc.ValidateToken(raw)
	if err != nil {
		return UserClaims{}, apperror.NewUnauthorizedError("Token inválido ou expirado.")
	}
	role := domain.UserRole(claims.Role)
	if !role.IsValid() || claims.UserID == "" {
		return UserClaims{}, apperror.NewUnauthorizedError("Token com papel desconhecido.")
	}
	return UserClaims{UserID: claims.UserID, Role: role}, nil
}

// RequireAuth valida o JWT e anexa as claims ao contexto. Sem token válido responde 401.
func RequireAuth(tokenSvc TokenService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httpx.Respond(w, r, nil, nil, apperror.NewUnauthorizedError("Token de autorização ausente ou malformado."), 0)
				return
			}
			claims, err := claimsFrom(tokenSvc, raw)
			if err != nil {
				httpx.Respond(w, r, nil, nil, err, 0)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserClaimsKey, claims)))
		})
	}
}

// OptionalAuth anexa as claims quando há token válido e segue como anônimo
// quando não há header. Um token presente porém inválido ainda é 401.
func OptionalAuth(tokenSvc TokenService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				httpx.Respond(w, r, nil, nil, apperror.NewUnauthorizedError("Token de autorização malformado."), 0)
				return
			}
			claims, err := claimsFrom(tokenSvc, raw)
			if err != nil {
				httpx.Respond(w, r, nil, nil, err, 0)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserClaimsKey, claims)))
		})
	}
}

// GetUserClaimsFromContext é uma função utilitária para extrair as claims no handler.
func GetUserClaimsFromContext(ctx context.Context) (UserClaims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(UserClaims)
	return claims, ok
}

// ViewerFromContext devolve o viewer da requisição (anônimo se não houver claims).
func ViewerFromContext(ctx context.Context) domain.Viewer {
	claims, ok := GetUserClaimsFromContext(ctx)
	if !ok {
		return domain.Viewer{}
	}
	return domain.Viewer{UserID: claims.UserID, Role: claims.Role}
}

// WithViewer injeta claims no contexto sem passar pelo JWT (usado em testes de handler).
func WithViewer(ctx context.Context, v domain.Viewer) context.Context {
	return context.WithValue(ctx, UserClaimsKey, UserClaims{UserID: v.UserID, Role: v.Role})
}

// PermissionMiddleware restringe a rota aos papéis informados. Deve rodar depois de RequireAuth.
func PermissionMiddleware(requiredRoles ...domain.UserRole) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserClaimsFromContext(r.Context())
			if !ok {
				httpx.Respond(w, r, nil, nil, apperror.NewUnauthorizedError("Autorização necessária. Token não processado."), 0)
				return
			}

			for _, requiredRole := range requiredRoles {
				if claims.Role == requiredRole {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Respond(w, r, nil, nil, apperror.NewForbiddenError("Você não tem a permissão necessária."), 0)
		})
	}
}
