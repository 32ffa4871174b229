package util

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := GenerateJWT("u1", "hana", "hana@corp.test", "hr", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseJWT(tok, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "u1" || claims.Role != "hr" || claims.Username != "hana" || claims.Email != "hana@corp.test" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := ParseJWT(tok, "wrong"); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestJWTExpired(t *testing.T) {
	tok, _ := GenerateJWT("u1", "hana", "", "hr", "secret", -time.Minute)
	// non-positive ttl falls back to the default lifetime
	if _, err := ParseJWT(tok, "secret"); err != nil {
		t.Fatalf("expected default ttl, got %v", err)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword("s3cret!", hash) || CheckPassword("nope", hash) {
		t.Fatal("bcrypt check mismatch")
	}
	if CheckPassword("", "") {
		t.Fatal("empty hash must never match")
	}
	if _, err := HashPassword(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if ExtractToken(r) != "abc" {
		t.Fatal("expected bearer token")
	}
	r.Header.Set("Authorization", "Basic abc")
	if ExtractToken(r) != "" {
		t.Fatal("non-bearer scheme should be ignored")
	}
}
