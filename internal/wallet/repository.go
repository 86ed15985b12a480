package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	GetByOwner(ctx context.Context, phone string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record. A second wallet for the same owner is ignored.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO wallets (id, owner_phone, account_code, status, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (owner_phone) DO NOTHING`,
		walletID, wallet.OwnerPhone, wallet.AccountCode, wallet.Status, wallet.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrWalletExists
	}
	return nil
}

// GetByOwner fetches wallet metadata by owner number.
func (r *PostgresRepository) GetByOwner(ctx context.Context, phone string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_phone, account_code, status, created_at
        FROM wallets WHERE owner_phone = $1`, phone)
	var w Wallet
	var createdAt time.Time
	var idVal uuid.UUID
	if err := row.Scan(&idVal, &w.OwnerPhone, &w.AccountCode, &w.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = idVal.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
