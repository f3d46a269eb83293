// Package memory provides in-process repository implementations. They back
// the service when DATABASE_URL is unset and carry the same semantics as
// the Postgres adapters, revision checks included.
package memory

import (
	"context"
	"sync"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

type WalletRepository struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet // keyed userID/currency
}

func NewWalletRepository() *WalletRepository {
	return &WalletRepository{wallets: make(map[string]*domain.Wallet)}
}

func walletKey(userID string, currency domain.Currency) string {
	return userID + "/" + string(currency)
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	const op = "memory.wallet.create"
	r.mu.Lock()
	defer r.mu.Unlock()

	key := walletKey(wallet.UserID, wallet.Currency)
	if _, exists := r.wallets[key]; exists {
		return domain.NewWalletExists(op, wallet.UserID, wallet.Currency)
	}
	cp := *wallet
	r.wallets[key] = &cp
	return nil
}

func (r *WalletRepository) GetByUserAndCurrency(ctx context.Context, userID string, currency domain.Currency) (*domain.Wallet, error) {
	const op = "memory.wallet.get"
	r.mu.RLock()
	defer r.mu.RUnlock()

	wallet, ok := r.wallets[walletKey(userID, currency)]
	if !ok {
		return nil, domain.NewNotFound(op, "wallet")
	}
	cp := *wallet
	return &cp, nil
}

func (r *WalletRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Wallet
	for _, wallet := range r.wallets {
		if wallet.UserID == userID {
			cp := *wallet
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *WalletRepository) Update(ctx context.Context, wallet *domain.Wallet) error {
	const op = "memory.wallet.update"
	r.mu.Lock()
	defer r.mu.Unlock()

	key := walletKey(wallet.UserID, wallet.Currency)
	stored, ok := r.wallets[key]
	if !ok {
		return domain.NewNotFound(op, "wallet")
	}
	if stored.Revision != wallet.Revision {
		return domain.NewConcurrentModification(op)
	}
	wallet.Revision++
	cp := *wallet
	r.wallets[key] = &cp
	return nil
}
