package wallet

import "time"

// Wallet binds a registered number to its ledger account.
type Wallet struct {
	ID          string
	OwnerPhone  string
	AccountCode string
	Status      string
	CreatedAt   time.Time
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	AsOf     time.Time
}
