package jwt

import "github.com/golang-jwt/jwt"

// Payload is the session token issued to back-office users by the account service.
// The chat server only verifies it; it never authenticates credentials itself.
type Payload struct {
	jwt.StandardClaims

	// ID is the registered user's identifier.
	ID string `json:"id"`

	// Role is the user's role at issuance time (e.g. "ADMIN").
	Role string `json:"role"`
}
