package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the claims carried by a chatrelay identity token.
// The token is the opaque bearer credential presented once at connection
// establishment (WebSocket handshake) and on every REST call.
type Payload struct {
	// StandardClaims embeds Exp (Expiration), Iat (Issued At), and Iss
	// (Issuer), which drive token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the stable identifier of the authenticated user. It is
	// resolved against the store on every connection; a token whose subject
	// no longer exists is rejected.
	UserID int64 `json:"uid"`

	// Username is the display name at issuance time, carried for logging
	// convenience only. Authoritative identity data always comes from the store.
	Username string `json:"username"`
}
