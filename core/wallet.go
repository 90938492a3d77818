package core

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Wallet is the custody record of a user. SeedPhrase is the only secret and
// must never leave the wallet store, the keyring or the wallet service.
type Wallet struct {
	UserID         string    `json:"user_id"`
	SeedPhrase     string    `json:"-"`
	PrimaryAccount string    `json:"primary_account"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type WalletStore interface {
	// Create inserts the wallet unless the user already has one, in which case
	// the existing row is kept untouched.
	Create(ctx context.Context, wallet *Wallet) error
	Find(ctx context.Context, userID string) (*Wallet, error)
	UpdatePrimaryAccount(ctx context.Context, userID, address string) error
	List(ctx context.Context, offset string, limit int) ([]*Wallet, error)
}

// VaultService onboards users by creating their secret.
type VaultService interface {
	Create(ctx context.Context, userID string) (*Wallet, error)
}

// WalletService is the single gateway for chain mutations of one user.
type WalletService interface {
	Address(index uint32) (common.Address, error)
	Summary(ctx context.Context, index uint32, tokens []common.Address) (*Account, error)
	SendNative(ctx context.Context, tx *NativeTx) (*TransactionResult, error)
	TransferToken(ctx context.Context, transfer *TokenTransfer) (*TransactionResult, error)
	SendContract(ctx context.Context, call *ContractCall) (*TransactionResult, error)
	WaitConfirmation(ctx context.Context, hash common.Hash) (*Confirmation, error)
}

type WalletLoader interface {
	LoadWallet(ctx context.Context, userID string) (WalletService, error)
}
