package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, idempotency_key, order_id, user_id, merchant_id, amount::text, currency,
	payment_method, status, description, external_transaction_id, error_code, error_message,
	refunded_amount::text, metadata, revision, created_at, updated_at, completed_at, expires_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amount, refunded string
	err := row.Scan(&p.ID, &p.IdempotencyKey, &p.OrderID, &p.UserID, &p.MerchantID, &amount, &p.Currency,
		&p.PaymentMethod, &p.Status, &p.Description, &p.ExternalTransactionID, &p.ErrorCode, &p.ErrorMessage,
		&refunded, &p.Metadata, &p.Revision, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt, &p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if p.RefundedAmount, err = decimal.NewFromString(refunded); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	const op = "storage.payment.create"
	query := `
		INSERT INTO payments (id, idempotency_key, order_id, user_id, merchant_id, amount, currency,
			payment_method, status, description, external_transaction_id, error_code, error_message,
			refunded_amount, metadata, revision, created_at, updated_at, completed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.IdempotencyKey, p.OrderID, p.UserID, p.MerchantID, p.Amount.String(), p.Currency,
		p.PaymentMethod, p.Status, p.Description, p.ExternalTransactionID, p.ErrorCode, p.ErrorMessage,
		p.RefundedAmount.String(), p.Metadata, p.Revision, p.CreatedAt, p.UpdatedAt, p.CompletedAt, p.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewKeyConflict(op, "idempotency key or order already has a payment")
		}
		return domain.NewInternal(op, err)
	}
	return nil
}

func (r *PaymentRepository) getOne(ctx context.Context, op, where string, arg any) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where
	payment, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound(op, "payment")
		}
		return nil, domain.NewInternal(op, err)
	}
	return payment, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.getOne(ctx, "storage.payment.get", "id = $1", id)
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	return r.getOne(ctx, "storage.payment.getByKey", "idempotency_key = $1", key)
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.getOne(ctx, "storage.payment.getByOrder", "order_id = $1", orderID)
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Payment, int, error) {
	const op = "storage.payment.list"

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM payments WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, domain.NewInternal(op, err)
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, domain.NewInternal(op, err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, 0, domain.NewInternal(op, err)
		}
		payments = append(payments, payment)
	}
	return payments, total, rows.Err()
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	const op = "storage.payment.update"
	query := `
		UPDATE payments
		SET status = $1, external_transaction_id = $2, error_code = $3, error_message = $4,
			refunded_amount = $5, completed_at = $6, updated_at = $7, revision = revision + 1
		WHERE id = $8 AND revision = $9
	`
	tag, err := r.db.Exec(ctx, query,
		p.Status, p.ExternalTransactionID, p.ErrorCode, p.ErrorMessage,
		p.RefundedAmount.String(), p.CompletedAt, time.Now().UTC(), p.ID, p.Revision)
	if err != nil {
		return domain.NewInternal(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewConcurrentModification(op)
	}
	p.Revision++
	return nil
}

func (r *PaymentRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	const op = "storage.payment.findExpired"
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = 'PENDING' AND expires_at < $1 LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, domain.NewInternal(op, err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, domain.NewInternal(op, err)
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, payment_id, type, amount::text, currency, status, external_id, created_at, processed_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount string
	err := row.Scan(&t.ID, &t.PaymentID, &t.Type, &amount, &t.Currency, &t.Status, &t.ExternalID, &t.CreatedAt, &t.ProcessedAt)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) Append(ctx context.Context, t *domain.Transaction) error {
	const op = "storage.transaction.append"
	query := `
		INSERT INTO transactions (id, payment_id, type, amount, currency, status, external_id, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.PaymentID, t.Type, t.Amount.String(), t.Currency, t.Status, t.ExternalID, t.CreatedAt, t.ProcessedAt)
	if err != nil {
		return domain.NewInternal(op, err)
	}
	return nil
}

func (r *TransactionRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Transaction, error) {
	const op = "storage.transaction.list"
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE payment_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, paymentID)
	if err != nil {
		return nil, domain.NewInternal(op, err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.NewInternal(op, err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (r *TransactionRepository) FirstByPaymentAndType(ctx context.Context, paymentID uuid.UUID, txType domain.TransactionType) (*domain.Transaction, error) {
	const op = "storage.transaction.first"
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE payment_id = $1 AND type = $2 ORDER BY created_at LIMIT 1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, paymentID, txType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound(op, "transaction")
		}
		return nil, domain.NewInternal(op, err)
	}
	return tx, nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	const op = "storage.transaction.update"
	query := `UPDATE transactions SET status = $1, external_id = $2, processed_at = $3 WHERE id = $4`
	_, err := r.db.Exec(ctx, query, t.Status, t.ExternalID, t.ProcessedAt, t.ID)
	if err != nil {
		return domain.NewInternal(op, err)
	}
	return nil
}
