package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the identity issued by the external auth provider. UserID
// addresses the account (notifications); ProfileID is the student or tutor id
// the core operations act on.
type JWTClaims struct {
	UserID    int64    `json:"uid"`
	ProfileID int64    `json:"pid"`
	Role      UserRole `json:"role"`
	jwt.RegisteredClaims
}
