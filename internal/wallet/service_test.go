package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/offline-pay/offline_pay/internal/ledger"
)

func TestServiceOpenAndBalance(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led, 1_000)

	ctx := context.Background()
	wallet, err := svc.Open(ctx, "9876543210")
	if err != nil {
		t.Fatalf("open wallet: %v", err)
	}
	if wallet.AccountCode != "wallet:9876543210" {
		t.Fatalf("unexpected account code %s", wallet.AccountCode)
	}

	fetched, err := svc.GetByOwner(ctx, "9876543210")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if fetched.ID != wallet.ID {
		t.Fatalf("expected wallet ID %s, got %s", wallet.ID, fetched.ID)
	}

	balance, err := svc.Balance(ctx, "9876543210")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 1_000 {
		t.Fatalf("expected opening balance 1000, got %d", balance.Amount)
	}

	if _, err := svc.Open(ctx, "9876543210"); !errors.Is(err, ErrWalletExists) {
		t.Fatalf("expected ErrWalletExists, got %v", err)
	}
	balance, _ = svc.Balance(ctx, "9876543210")
	if balance.Amount != 1_000 {
		t.Fatalf("second open must not grant again, got %d", balance.Amount)
	}
}

func TestServiceZeroOpeningBalance(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory(), 0)
	ctx := context.Background()

	if _, err := svc.Open(ctx, "9123456780"); err != nil {
		t.Fatalf("open: %v", err)
	}
	balance, err := svc.Balance(ctx, "9123456780")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 0 {
		t.Fatalf("expected zero balance, got %d", balance.Amount)
	}
}

func TestOwnerOf(t *testing.T) {
	if phone, ok := OwnerOf(AccountCode("9000000001")); !ok || phone != "9000000001" {
		t.Fatalf("unexpected owner %q %v", phone, ok)
	}
	if _, ok := OwnerOf(ledger.TreasuryAccountCode); ok {
		t.Fatalf("treasury is not a wallet")
	}
}
