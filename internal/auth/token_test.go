package auth

import (
	"testing"
	"time"

	"stockgame/internal/apperr"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	raw, err := issuer.Issue(User{ID: "u-1", Email: "admin@example.com", IsAdmin: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID() != "u-1" || claims.Email != "admin@example.com" || !claims.IsAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejections(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	raw, err := issuer.Issue(User{ID: "u-1", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokenIssuer("other-secret", time.Hour)
	if _, err := other.Parse(raw); apperr.KindOf(err) != apperr.KindAuth {
		t.Fatalf("expected auth error for wrong secret, got %v", err)
	}

	if _, err := issuer.Parse("invalidtoken123"); apperr.KindOf(err) != apperr.KindAuth {
		t.Fatalf("expected auth error for garbage token, got %v", err)
	}

	expired := NewTokenIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(User{ID: "u-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = issuer.Parse(old)
	if apperr.KindOf(err) != apperr.KindAuth || apperr.Message(err) != "token expired" {
		t.Fatalf("expected expiry error, got %v", err)
	}
}
