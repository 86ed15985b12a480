package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/offline-pay/offline_pay/internal/identity"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("s3cret")
	issuer.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	token, err := issuer.Issue(identity.Account{ID: "id-1", Name: "Asha", Phone: "9876543210"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Name != "Asha" || claims.Num != "9876543210" || claims.Subject != "id-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Unix() != 1_700_000_000 {
		t.Fatalf("unexpected iat %v", claims.IssuedAt)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	token, err := NewIssuer("other").Issue(identity.Account{Name: "Eve", Phone: "9000000000"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("s3cret").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewIssuer("s3cret").Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
