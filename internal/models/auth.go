package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by RBAC gating.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims represents the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	Role          UserRole `json:"role"`
	Email         string   `json:"email,omitempty"`
	InstitutionID string   `json:"institution_id,omitempty"`
	jwt.RegisteredClaims
}
