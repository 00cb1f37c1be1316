package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the roles known to the scheduler.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleParent  UserRole = "PARENT"
)

// ParseRole normalises a role string. Unknown roles yield false.
func ParseRole(raw string) (UserRole, bool) {
	switch role := UserRole(strings.ToUpper(strings.TrimSpace(raw))); role {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return role, true
	default:
		return "", false
	}
}

// JWTClaims is the access token payload issued by the external auth service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Viewer is the authenticated actor whose role drives every visibility and edit decision.
type Viewer struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
	Token string   `json:"-"`
}

// ViewerFromClaims builds a Viewer from validated token claims.
func ViewerFromClaims(claims *JWTClaims, token string) Viewer {
	if claims == nil {
		return Viewer{}
	}
	return Viewer{ID: claims.UserID, Name: claims.FullName, Role: claims.Role, Token: token}
}
