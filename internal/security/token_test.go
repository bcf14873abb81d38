package security

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueOperatorToken("secret", 42, "ops@school.test", time.Hour)
	if err != nil {
		t.Fatalf("IssueOperatorToken() error = %v", err)
	}

	claims, err := ParseOperatorToken("secret", token)
	if err != nil {
		t.Fatalf("ParseOperatorToken() error = %v", err)
	}
	if claims.Email != "ops@school.test" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, want 42", claims.Subject)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueOperatorToken("secret", 1, "ops@school.test", time.Hour)
	if err != nil {
		t.Fatalf("IssueOperatorToken() error = %v", err)
	}
	if _, err := ParseOperatorToken("other-secret", token); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	token, err := IssueOperatorToken("secret", 1, "ops@school.test", -time.Minute)
	if err != nil {
		t.Fatalf("IssueOperatorToken() error = %v", err)
	}
	if _, err := ParseOperatorToken("secret", token); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword("correct horse", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}
