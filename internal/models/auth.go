package models

import "github.com/golang-jwt/jwt/v5"

// AdminClaims is the JWT payload accepted on the administrative API. Tokens
// are issued by the host platform; this service only validates them.
type AdminClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
