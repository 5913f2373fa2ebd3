package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/tazhate/flock/internal/domain"
)

type contextKey int

const userKey contextKey = iota

// Claims are the token claims issued by the hosted auth provider. The
// subject is the provider's user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// authenticate verifies the bearer token, mirrors the user into the users
// table and stores it in the request context. Only leaders and admins pass.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			w.Header().Set("WWW-Authenticate", `Bearer realm="flock"`)
			jsonError(w, "Missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := s.validateToken(parts[1])
		if err != nil {
			slog.Debug("Rejected token", "path", r.URL.Path, "error", err)
			jsonError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		role, ok := domain.ParseUserRole(claims.Role)
		if !ok {
			role = domain.RoleMember
		}
		if !role.CanManage() {
			jsonError(w, "Staff role required", http.StatusForbidden)
			return
		}

		user := &domain.User{AuthUID: claims.Subject, Email: claims.Email, Name: claims.Name, Role: role}
		if err := s.storage.EnsureUser(r.Context(), user); err != nil {
			writeError(w, r, fmt.Errorf("ensure user: %w", err))
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user == nil || !user.IsAdmin() {
			jsonError(w, "Admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) validateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if s.cfg.Auth.Issuer != "" && !claims.VerifyIssuer(s.cfg.Auth.Issuer, true) {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func userFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}

// GET /api/me
func (s *Server) apiMe(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, userFromContext(r.Context()))
}
