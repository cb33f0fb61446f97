package wallet

import "time"

// Wallet is the stored-value account a player's deposits credit. The actual
// balance lives in the ledger under AccountCode.
type Wallet struct {
	ID          string
	OwnerID     string
	AccountCode string
	Currency    string
	Status      string
	CreatedAt   time.Time
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	AsOf     time.Time
}
