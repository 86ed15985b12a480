package infra

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offline-pay/offline_pay/internal/ledger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id         UUID PRIMARY KEY,
        name       TEXT NOT NULL,
        phone      TEXT NOT NULL UNIQUE,
        pass_hash  BYTEA NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS accounts (
        id   UUID PRIMARY KEY,
        code TEXT NOT NULL UNIQUE
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id           UUID PRIMARY KEY,
        client_tx_id TEXT NOT NULL,
        kind         TEXT NOT NULL,
        status       TEXT NOT NULL,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        UNIQUE (client_tx_id, kind)
    )`,
	`CREATE TABLE IF NOT EXISTS entries (
        id             UUID PRIMARY KEY,
        transaction_id UUID NOT NULL REFERENCES transactions (id),
        account_id     UUID NOT NULL REFERENCES accounts (id),
        amount         BIGINT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS entries_account_id_idx ON entries (account_id)`,
	`CREATE INDEX IF NOT EXISTS entries_transaction_id_idx ON entries (transaction_id)`,
	`CREATE TABLE IF NOT EXISTS wallets (
        id           UUID PRIMARY KEY,
        owner_phone  TEXT NOT NULL UNIQUE,
        account_code TEXT NOT NULL REFERENCES accounts (code),
        status       TEXT NOT NULL,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
}

// EnsureSchema creates the sandbox tables when missing and provisions the
// treasury account that funds opening grants.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if _, err := pool.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`,
		uuid.New(), ledger.TreasuryAccountCode); err != nil {
		return fmt.Errorf("provision treasury: %w", err)
	}
	return nil
}
