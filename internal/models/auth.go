package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID int64    `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// Actor identifies who performs a workflow operation.
type Actor struct {
	UserID    int64
	Role      UserRole
	IPAddress string
}

// HasRole reports whether the actor holds one of roles.
func (a Actor) HasRole(roles ...UserRole) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}
