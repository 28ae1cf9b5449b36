package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Rejection reasons carried by AuthError.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonExpired   = "expired"
	ReasonInvalid   = "invalid"
)

// AuthError is a terminal handshake rejection. The client must reconnect with
// a fresh credential; nothing is retried server-side.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Identity is the decoded result of a successful verification.
type Identity struct {
	UserID string
}

// Verifier validates HMAC-signed bearer tokens presented during the websocket
// handshake. Verification is synchronous; the handshake does not complete
// until it has passed.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, &AuthError{Reason: ReasonMissing}
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, &AuthError{Reason: ReasonExpired, Err: err}
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Identity{}, &AuthError{Reason: ReasonMalformed, Err: err}
		default:
			return Identity{}, &AuthError{Reason: ReasonInvalid, Err: err}
		}
	}
	if !token.Valid {
		return Identity{}, &AuthError{Reason: ReasonInvalid}
	}
	if claims.Subject == "" {
		return Identity{}, &AuthError{Reason: ReasonInvalid, Err: errors.New("token missing 'sub' claim")}
	}

	return Identity{UserID: claims.Subject}, nil
}
