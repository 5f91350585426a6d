package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Generate("user-1", "alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("expected alice, got %s", claims.Username)
	}
}

func TestVerifyStripsBearerPrefix(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Generate("user-2", "bob")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := tm.Verify("Bearer " + token)
	if err != nil {
		t.Fatalf("Verify with Bearer prefix failed: %v", err)
	}
	if claims.UserID != "user-2" {
		t.Errorf("expected user-2, got %s", claims.UserID)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Generate("user-3", "carol")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := tm.Verify(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret-a", time.Hour)
	other := NewTokenManager("secret-b", time.Hour)

	token, err := tm.Generate("user-4", "dave")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := other.Verify(token); err == nil {
		t.Fatal("expected error for token signed with different secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("expected mismatched password to fail")
	}
}
