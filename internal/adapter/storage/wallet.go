// Package storage holds the Postgres repositories. Amounts travel as text
// and are parsed into decimals on scan; revisions guard every update.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type WalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

const walletColumns = `id, user_id, currency, balance::text, blocked_amount::text, active, revision, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	var balance, blocked string
	err := row.Scan(&w.ID, &w.UserID, &w.Currency, &balance, &blocked, &w.Active, &w.Revision, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	if w.BlockedAmount, err = decimal.NewFromString(blocked); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	const op = "storage.wallet.create"
	query := `
		INSERT INTO wallets (id, user_id, currency, balance, blocked_amount, active, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		wallet.ID, wallet.UserID, wallet.Currency, wallet.Balance.String(), wallet.BlockedAmount.String(),
		wallet.Active, wallet.Revision, wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewWalletExists(op, wallet.UserID, wallet.Currency)
		}
		return domain.NewInternal(op, err)
	}
	return nil
}

func (r *WalletRepository) GetByUserAndCurrency(ctx context.Context, userID string, currency domain.Currency) (*domain.Wallet, error) {
	const op = "storage.wallet.get"
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency = $2`
	wallet, err := scanWallet(r.db.QueryRow(ctx, query, userID, currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound(op, "wallet")
		}
		return nil, domain.NewInternal(op, err)
	}
	return wallet, nil
}

func (r *WalletRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	const op = "storage.wallet.list"
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, domain.NewInternal(op, err)
	}
	defer rows.Close()

	var wallets []*domain.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, domain.NewInternal(op, err)
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

func (r *WalletRepository) Update(ctx context.Context, wallet *domain.Wallet) error {
	const op = "storage.wallet.update"
	query := `
		UPDATE wallets
		SET balance = $1, blocked_amount = $2, active = $3, revision = revision + 1, updated_at = $4
		WHERE id = $5 AND revision = $6
	`
	tag, err := r.db.Exec(ctx, query,
		wallet.Balance.String(), wallet.BlockedAmount.String(), wallet.Active,
		time.Now().UTC(), wallet.ID, wallet.Revision)
	if err != nil {
		return domain.NewInternal(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewConcurrentModification(op)
	}
	wallet.Revision++
	return nil
}
