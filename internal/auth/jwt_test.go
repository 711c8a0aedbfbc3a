package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_SecretLength(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Error("secrets under 16 chars must be rejected")
	}
	if _, err := NewTokenService("this-is-16-chars"); err != nil {
		t.Errorf("16-char secret rejected: %v", err)
	}
}

func TestGenerateValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-abc-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token %q doesn't have the header.payload.signature shape", token)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "user-abc-123" {
		t.Errorf("Validate() userID = %q, want %q", got, "user-abc-123")
	}
}

func TestValidate_ExpiredSession(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", -time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	if _, err := ts.Validate(token); err == nil {
		t.Error("an expired session token must not validate")
	}
}

func TestValidate_TamperedSignature(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-123")
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.Validate(tampered); err == nil {
		t.Error("a tampered token must not validate")
	}
}

func TestValidate_DifferentSecret(t *testing.T) {
	issuing, _ := NewTokenService("correct-secret-32-chars-long!!!!")
	verifying, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	token, _ := issuing.Generate("user-123")

	if _, err := verifying.Validate(token); err == nil {
		t.Error("a token signed with another secret must not validate")
	}
}

func TestValidate_ForeignIssuer(t *testing.T) {
	ts := newTestTokenService(t)

	// Same secret, different issuer — e.g. a token minted by another app
	// sharing infrastructure. Must be rejected.
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "some-other-app",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := foreign.SignedString([]byte("test-secret-at-least-16-chars!!"))
	if err != nil {
		t.Fatalf("signing foreign token: %v", err)
	}

	if _, err := ts.Validate(signed); err == nil {
		t.Error("a token from a different issuer must not validate")
	}
}

func TestValidate_UnsignedAlgorithmRejected(t *testing.T) {
	ts := newTestTokenService(t)

	// The classic alg=none confusion attack.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "testimonial-board",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("building unsigned token: %v", err)
	}

	if _, err := ts.Validate(token); err == nil {
		t.Error("an unsigned token must not validate")
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, bad := range []string{"", "not.a.jwt.token", "x"} {
		if _, err := ts.Validate(bad); err == nil {
			t.Errorf("Validate(%q) should fail", bad)
		}
	}
}
