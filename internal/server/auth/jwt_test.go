package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("u1", 2, secret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("UserID = %q, want u1", claims.UserID)
	}
	if claims.VerificationLevel != 2 {
		t.Fatalf("VerificationLevel = %d, want 2", claims.VerificationLevel)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", 0, []byte("right"), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := ParseToken(token, []byte("wrong")); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	secret := []byte("s")
	token, err := GenerateToken("u1", 0, secret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := ParseToken(token, secret); err == nil {
		t.Fatal("expected error for expired token")
	}
}
