package service

import (
	"testing"
	"time"

	"github.com/examgate/examgate-backend/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret: "unit-test-secret",
		JWTExpiry: time.Hour,
	}
}

func TestStudentTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(testConfig())

	token, err := svc.GenerateStudentToken("student-42")
	if err != nil {
		t.Fatalf("GenerateStudentToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeStudent {
		t.Errorf("token type = %q, want %q", claims.TokenType, TokenTypeStudent)
	}
	if claims.StudentID != "student-42" {
		t.Errorf("student id = %q, want student-42", claims.StudentID)
	}
}

func TestAdminTokenHasNoStudentID(t *testing.T) {
	svc := NewAuthService(testConfig())

	token, err := svc.GenerateAdminToken("admin-1")
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeAdmin {
		t.Errorf("token type = %q, want %q", claims.TokenType, TokenTypeAdmin)
	}
	if claims.StudentID != "" {
		t.Errorf("student id = %q, want empty", claims.StudentID)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(&config.Config{JWTSecret: "secret-a", JWTExpiry: time.Hour})
	verifier := NewAuthService(&config.Config{JWTSecret: "secret-b", JWTExpiry: time.Hour})

	token, err := issuer.GenerateStudentToken("student-1")
	if err != nil {
		t.Fatalf("GenerateStudentToken: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("expected validation to fail for wrong secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: -time.Minute})

	token, err := svc.GenerateStudentToken("student-1")
	if err != nil {
		t.Fatalf("GenerateStudentToken: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expected validation to fail for expired token")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(testConfig())
	if _, err := svc.ValidateToken("not.a.jwt"); err == nil {
		t.Error("expected validation to fail for malformed token")
	}
}
