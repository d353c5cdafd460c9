package session

import (
	"context"
	"errors"
	"testing"
)

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{
		"tok-seeker":   {UserID: "s1", Role: RoleSeeker},
		"tok-provider": {UserID: "u1", Role: RoleProvider},
	}
	ctx := context.Background()

	b, err := v.Verify(ctx, "tok-seeker")
	if err != nil || b.UserID != "s1" || b.Role != RoleSeeker {
		t.Fatalf("verify: %+v %v", b, err)
	}

	if _, err := v.Verify(ctx, "unknown"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := v.Verify(ctx, ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for empty token, got %v", err)
	}
}

func TestHashTokenStableAndOpaque(t *testing.T) {
	a := hashToken("secret")
	b := hashToken("secret")
	if a != b {
		t.Fatal("hash not stable")
	}
	if a == "secret" || len(a) != 64 {
		t.Fatalf("unexpected hash %q", a)
	}
	if hashToken("other") == a {
		t.Fatal("distinct tokens collide")
	}
}
