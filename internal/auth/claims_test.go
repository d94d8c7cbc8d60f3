package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789abcdef0123"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateAccessToken("alice", RoleAdmin, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
	}
	if claims.ID == "" {
		t.Error("token ID is empty, want a unique jti per token")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("alice", RoleOperator, testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if _, err := ParseToken(token, "another-secret-entirely-0123456789"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(wrong secret) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(garbage) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			ID:        "expired",
		},
		Role: RoleOperator,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseToken(token, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(expired) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_MissingRole(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseToken(token, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(no role) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_RejectsUnsignedAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: RoleAdmin,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseToken(token, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(alg=none) error = %v, want ErrTokenInvalid", err)
	}
}
