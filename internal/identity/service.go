package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAccountExists is returned when the number is already registered.
	ErrAccountExists = errors.New("number already registered")
	// ErrAccountNotFound is returned for unknown numbers.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials hides whether the number or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid number or password")
)

const minPassLength = 8

// Service manages account lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new account and stores a hashed password.
func (s *Service) Register(ctx context.Context, creds Credentials) (Account, error) {
	if len(creds.Pass) < minPassLength {
		return Account{}, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Pass), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	acct := Account{
		ID:        uuid.New().String(),
		Name:      creds.Name,
		Phone:     creds.Phone,
		PassHash:  hash,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}

	return acct, nil
}

// Authenticate verifies the number and password.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	acct, err := s.repo.FindByPhone(ctx, creds.Phone)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword(acct.PassHash, []byte(creds.Pass)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	return acct, nil
}

// Lookup returns the account for phone.
func (s *Service) Lookup(ctx context.Context, phone string) (Account, error) {
	return s.repo.FindByPhone(ctx, phone)
}
