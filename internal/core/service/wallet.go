package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
	"github.com/NiMv1/payment-service/internal/core/locker"
)

// WalletRepository is the storage port for wallets.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByUserAndCurrency(ctx context.Context, userID string, currency domain.Currency) (*domain.Wallet, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Wallet, error)
	// Update persists the wallet, comparing the stored revision to
	// wallet.Revision and bumping it on success. A mismatch surfaces as
	// ConcurrentModification.
	Update(ctx context.Context, wallet *domain.Wallet) error
}

// WalletService owns balances and holds. Every mutation runs under an
// exclusive per-wallet lock; no call path ever holds two wallet locks at
// once — the transfer saga relies on that to stay deadlock-free.
type WalletService struct {
	repo  WalletRepository
	locks *locker.Keyed
}

func NewWalletService(repo WalletRepository) *WalletService {
	return &WalletService{repo: repo, locks: locker.NewKeyed()}
}

func walletKey(userID string, currency domain.Currency) string {
	return userID + "/" + string(currency)
}

// Open creates a wallet for (user, currency). One wallet per pair.
func (s *WalletService) Open(ctx context.Context, userID string, currency domain.Currency, initialBalance decimal.Decimal) (*domain.Wallet, error) {
	const op = "wallet.open"

	if !currency.IsValid() {
		return nil, domain.NewInvalidRequest(op, "unsupported currency: "+string(currency))
	}
	if initialBalance.IsNegative() {
		return nil, domain.NewInvalidRequest(op, "initial balance cannot be negative")
	}

	wallet := domain.NewWallet(userID, currency, initialBalance)
	if err := s.repo.Create(ctx, wallet); err != nil {
		return nil, err
	}
	slog.Info("Wallet opened", "user_id", userID, "currency", currency, "wallet_id", wallet.ID)
	return wallet, nil
}

func (s *WalletService) Get(ctx context.Context, userID string, currency domain.Currency) (*domain.Wallet, error) {
	return s.repo.GetByUserAndCurrency(ctx, userID, currency)
}

// ListByUser returns the user's active wallets.
func (s *WalletService) ListByUser(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	wallets, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		if w.Active {
			active = append(active, w)
		}
	}
	return active, nil
}

// Deactivate marks the wallet inactive. Wallets are never physically deleted.
func (s *WalletService) Deactivate(ctx context.Context, userID string, currency domain.Currency) (*domain.Wallet, error) {
	return s.mutate(ctx, userID, currency, func(w *domain.Wallet) error {
		w.Active = false
		return nil
	})
}

// Deposit credits the wallet.
func (s *WalletService) Deposit(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) (*domain.Wallet, error) {
	const op = "wallet.deposit"
	if !domain.IsPositive(amount) {
		return nil, domain.NewInvalidAmount(op)
	}
	return s.mutate(ctx, userID, currency, func(w *domain.Wallet) error {
		w.Credit(amount)
		return nil
	})
}

// Withdraw debits the wallet; fails with InsufficientFunds when the
// available balance (balance minus holds) is too small.
func (s *WalletService) Withdraw(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) (*domain.Wallet, error) {
	const op = "wallet.withdraw"
	if !domain.IsPositive(amount) {
		return nil, domain.NewInvalidAmount(op)
	}
	return s.mutate(ctx, userID, currency, func(w *domain.Wallet) error {
		return w.Debit(amount)
	})
}

// Block reserves funds without removing them from the balance.
func (s *WalletService) Block(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) error {
	const op = "wallet.block"
	if !domain.IsPositive(amount) {
		return domain.NewInvalidAmount(op)
	}
	_, err := s.mutate(ctx, userID, currency, func(w *domain.Wallet) error {
		return w.Block(amount)
	})
	return err
}

// Unblock releases a hold. Releasing more than is held fails with
// InvalidHoldState; we do not clamp, a mismatch means bookkeeping is broken.
func (s *WalletService) Unblock(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) error {
	const op = "wallet.unblock"
	if !domain.IsPositive(amount) {
		return domain.NewInvalidAmount(op)
	}
	_, err := s.mutate(ctx, userID, currency, func(w *domain.Wallet) error {
		return w.Unblock(amount)
	})
	return err
}

// DebitBlocked finalizes a hold: releases it and reduces the balance
// atomically under the wallet lock.
func (s *WalletService) DebitBlocked(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) error {
	const op = "wallet.debitBlocked"
	if !domain.IsPositive(amount) {
		return domain.NewInvalidAmount(op)
	}
	_, err := s.mutate(ctx, userID, currency, func(w *domain.Wallet) error {
		return w.DebitBlocked(amount)
	})
	return err
}

// mutate runs fn on the wallet under its lock and persists the result.
func (s *WalletService) mutate(ctx context.Context, userID string, currency domain.Currency, fn func(*domain.Wallet) error) (*domain.Wallet, error) {
	unlock := s.locks.Lock(walletKey(userID, currency))
	defer unlock()

	wallet, err := s.repo.GetByUserAndCurrency(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	if err := fn(wallet); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}
