package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mentorhub/chat-relay/pkg/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected *auth.AuthError, got %T: %v", err, err)
	}
	return authErr.Reason
}

func TestVerifyValidToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	identity, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed for a valid token: %v", err)
	}
	if identity.UserID != "user-42" {
		t.Errorf("Expected userID user-42, got %s", identity.UserID)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	_, err := v.Verify("")
	if err == nil {
		t.Fatal("Expected an error for an empty token")
	}
	if reason := reasonOf(t, err); reason != auth.ReasonMissing {
		t.Errorf("Expected reason %q, got %q", auth.ReasonMissing, reason)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	_, err := v.Verify("not-a-jwt")
	if err == nil {
		t.Fatal("Expected an error for a malformed token")
	}
	if reason := reasonOf(t, err); reason != auth.ReasonMalformed {
		t.Errorf("Expected reason %q, got %q", auth.ReasonMalformed, reason)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	_, err := v.Verify(token)
	if err == nil {
		t.Fatal("Expected an error for an expired token")
	}
	if reason := reasonOf(t, err); reason != auth.ReasonExpired {
		t.Errorf("Expected reason %q, got %q", auth.ReasonExpired, reason)
	}
}

func TestVerifyWrongSignature(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, "some-other-secret", jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Verify(token)
	if err == nil {
		t.Fatal("Expected an error for a token signed with the wrong secret")
	}
	if reason := reasonOf(t, err); reason != auth.ReasonInvalid {
		t.Errorf("Expected reason %q, got %q", auth.ReasonInvalid, reason)
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := v.Verify(token)
	if err == nil {
		t.Fatal("Expected an error for a token without a subject")
	}
	if reason := reasonOf(t, err); reason != auth.ReasonInvalid {
		t.Errorf("Expected reason %q, got %q", auth.ReasonInvalid, reason)
	}
}
