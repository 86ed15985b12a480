package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/offline-pay/offline_pay/internal/ledger"
)

const (
	statusActive = "active"
	codePrefix   = "wallet:"
)

var (
	// ErrWalletExists is returned when the owner already has a wallet.
	ErrWalletExists = errors.New("wallet exists")
	// ErrWalletNotFound is returned for numbers without a wallet.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo           Repository
	ledger         ledger.Ledger
	openingBalance int64
}

// NewService builds a wallet service instance. New wallets are credited
// openingBalance from the treasury.
func NewService(repo Repository, ledger ledger.Ledger, openingBalance int64) *Service {
	return &Service{repo: repo, ledger: ledger, openingBalance: openingBalance}
}

// AccountCode is the ledger account for a number.
func AccountCode(phone string) string {
	return codePrefix + phone
}

// OwnerOf reverses AccountCode. ok is false for non-wallet accounts.
func OwnerOf(code string) (phone string, ok bool) {
	return strings.CutPrefix(code, codePrefix)
}

// Open provisions a wallet, its ledger account and the opening grant.
func (s *Service) Open(ctx context.Context, phone string) (Wallet, error) {
	accountCode := AccountCode(phone)

	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Wallet{}, err
	}

	wallet := Wallet{
		ID:          uuid.New().String(),
		OwnerPhone:  phone,
		AccountCode: accountCode,
		Status:      statusActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}

	if s.openingBalance > 0 {
		_, err := s.ledger.Grant(ctx, accountCode, "opening:"+phone, s.openingBalance)
		if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return Wallet{}, fmt.Errorf("opening grant: %w", err)
		}
	}

	return wallet, nil
}

// GetByOwner retrieves wallet metadata for a number.
func (s *Service) GetByOwner(ctx context.Context, phone string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, phone)
}

// Balance returns the ledger balance for the number's wallet.
func (s *Service) Balance(ctx context.Context, phone string) (Balance, error) {
	wallet, err := s.repo.GetByOwner(ctx, phone)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, wallet.AccountCode)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: wallet.ID, Amount: amount, AsOf: time.Now().UTC()}, nil
}
