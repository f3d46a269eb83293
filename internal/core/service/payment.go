package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
	"github.com/NiMv1/payment-service/internal/core/events"
)

// PaymentRepository is the storage port for payments.
type PaymentRepository interface {
	// Create persists a new payment. The idempotency key and order id are
	// unique; a duplicate surfaces as KeyConflict.
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Payment, int, error)
	// Update compares the stored revision to payment.Revision and bumps it on
	// success. A mismatch surfaces as ConcurrentModification.
	Update(ctx context.Context, payment *domain.Payment) error
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error)
}

// TransactionRepository is the storage port for the append-only audit trail.
type TransactionRepository interface {
	Append(ctx context.Context, tx *domain.Transaction) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Transaction, error)
	FirstByPaymentAndType(ctx context.Context, paymentID uuid.UUID, txType domain.TransactionType) (*domain.Transaction, error)
	Update(ctx context.Context, tx *domain.Transaction) error
}

const (
	// DefaultPaymentTTLMinutes applies when a create request carries no TTL.
	DefaultPaymentTTLMinutes = 30
	MinPaymentTTLMinutes     = 1
	MaxPaymentTTLMinutes     = 1440
)

// CreatePaymentSpec is what a creation request must supply.
type CreatePaymentSpec struct {
	OrderID       string
	UserID        string
	MerchantID    string
	Amount        decimal.Decimal
	Currency      domain.Currency
	PaymentMethod domain.PaymentMethod
	Description   string
	Metadata      string
	TTLMinutes    int
}

// PaymentPage is one page of a user's payments.
type PaymentPage struct {
	Items []*domain.Payment
	Total int
	Page  int
	Size  int
}

// PaymentService drives the payment state machine. Mutations use an
// optimistic revision check on the payment row; a lost update surfaces as
// ConcurrentModification and the caller retries the read-modify-write.
type PaymentService struct {
	payments     PaymentRepository
	transactions TransactionRepository
	idempotency  *IdempotencyService
	publisher    events.Publisher
}

func NewPaymentService(payments PaymentRepository, transactions TransactionRepository, idempotency *IdempotencyService, publisher events.Publisher) *PaymentService {
	return &PaymentService{
		payments:     payments,
		transactions: transactions,
		idempotency:  idempotency,
		publisher:    publisher,
	}
}

// Create creates a payment in PENDING, or returns the existing payment
// unchanged when the idempotency key was already processed. Dedup is
// anchored on the payment row's unique key: concurrent requests with the
// same fresh key race on Create and every loser returns the winner's row.
func (s *PaymentService) Create(ctx context.Context, idempotencyKey string, spec CreatePaymentSpec) (*domain.Payment, error) {
	const op = "payment.create"

	if idempotencyKey == "" {
		return nil, domain.NewInvalidRequest(op, "idempotency key is required")
	}
	if !domain.IsPositive(spec.Amount) {
		return nil, domain.NewInvalidAmount(op)
	}
	if !spec.Currency.IsValid() {
		return nil, domain.NewInvalidRequest(op, "unsupported currency: "+string(spec.Currency))
	}
	if !spec.PaymentMethod.IsValid() {
		return nil, domain.NewInvalidRequest(op, "unsupported payment method: "+string(spec.PaymentMethod))
	}
	if spec.OrderID == "" || spec.UserID == "" {
		return nil, domain.NewInvalidRequest(op, "order id and user id are required")
	}
	ttl := spec.TTLMinutes
	if ttl == 0 {
		ttl = DefaultPaymentTTLMinutes
	}
	if ttl < MinPaymentTTLMinutes || ttl > MaxPaymentTTLMinutes {
		return nil, domain.NewInvalidRequest(op, "expiration must be between 1 and 1440 minutes")
	}

	if existing, err := s.payments.GetByIdempotencyKey(ctx, idempotencyKey); err == nil {
		slog.Info("Payment create deduplicated", "idempotency_key", idempotencyKey, "payment_id", existing.ID)
		return existing, nil
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		OrderID:        spec.OrderID,
		UserID:         spec.UserID,
		MerchantID:     spec.MerchantID,
		Amount:         spec.Amount,
		Currency:       spec.Currency,
		PaymentMethod:  spec.PaymentMethod,
		Status:         domain.StatusPending,
		Description:    spec.Description,
		Metadata:       spec.Metadata,
		RefundedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(ttl) * time.Minute),
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		if domain.IsType(err, domain.ErrKeyConflict) {
			// Lost the race to a concurrent request with the same key.
			if winner, ferr := s.payments.GetByIdempotencyKey(ctx, idempotencyKey); ferr == nil {
				return winner, nil
			}
		}
		return nil, err
	}

	if err := s.transactions.Append(ctx, &domain.Transaction{
		ID:        uuid.New(),
		PaymentID: payment.ID,
		Type:      domain.TxPayment,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    domain.StatusPending,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	s.storeIdempotencyResult(ctx, idempotencyKey, payment)
	s.publisher.Publish(events.PaymentCreated(payment))

	slog.Info("Payment created", "payment_id", payment.ID, "order_id", payment.OrderID, "amount", payment.Amount)
	return payment, nil
}

// MarkProcessing parks a PENDING payment while the gateway handles it.
func (s *PaymentService) MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "payment.markProcessing"

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusPending {
		return nil, domain.NewInvalidState(op, "cannot start processing in status "+string(payment.Status))
	}
	payment.Status = domain.StatusProcessing
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// Confirm completes the payment, stamping the completion time and a
// synthetic external transaction id (the gateway is simulated).
func (s *PaymentService) Confirm(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "payment.confirm"

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payment.IsConfirmable() {
		return nil, domain.NewInvalidState(op, "cannot confirm payment in status "+string(payment.Status))
	}

	now := time.Now().UTC()
	payment.Status = domain.StatusCompleted
	payment.CompletedAt = &now
	payment.UpdatedAt = now
	payment.ExternalTransactionID = domain.SyntheticExternalID("TXN")
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	if tx, err := s.transactions.FirstByPaymentAndType(ctx, id, domain.TxPayment); err == nil {
		tx.Status = domain.StatusCompleted
		tx.ProcessedAt = &now
		tx.ExternalID = payment.ExternalTransactionID
		if uerr := s.transactions.Update(ctx, tx); uerr != nil {
			slog.Error("Failed to stamp payment transaction", "payment_id", id, "error", uerr)
		}
	}

	s.publisher.Publish(events.PaymentCompleted(payment))
	slog.Info("Payment confirmed", "payment_id", id, "external_id", payment.ExternalTransactionID)
	return payment, nil
}

// Cancel moves a PENDING/PROCESSING payment to CANCELLED.
func (s *PaymentService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "payment.cancel"

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payment.IsCancellable() {
		return nil, domain.NewInvalidState(op, "cannot cancel payment in status "+string(payment.Status))
	}
	payment.Status = domain.StatusCancelled
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.publisher.Publish(events.PaymentCancelled(payment))
	slog.Info("Payment cancelled", "payment_id", id)
	return payment, nil
}

// Decline rejects a PENDING/PROCESSING payment.
func (s *PaymentService) Decline(ctx context.Context, id uuid.UUID, reason string) (*domain.Payment, error) {
	const op = "payment.decline"

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusPending && payment.Status != domain.StatusProcessing {
		return nil, domain.NewInvalidState(op, "cannot decline payment in status "+string(payment.Status))
	}
	payment.Status = domain.StatusDeclined
	payment.ErrorMessage = reason
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}
	slog.Info("Payment declined", "payment_id", id, "reason", reason)
	return payment, nil
}

// Fail moves any non-terminal payment to FAILED, recording the error.
func (s *PaymentService) Fail(ctx context.Context, id uuid.UUID, code, message string) (*domain.Payment, error) {
	const op = "payment.fail"

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() || payment.Status == domain.StatusCompleted {
		return nil, domain.NewInvalidState(op, "cannot fail payment in status "+string(payment.Status))
	}
	payment.Status = domain.StatusFailed
	payment.ErrorCode = code
	payment.ErrorMessage = message
	payment.UpdatedAt = time.Now().UTC()
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.publisher.Publish(events.PaymentFailed(payment))
	slog.Info("Payment failed", "payment_id", id, "code", code)
	return payment, nil
}

// Refund refunds amount (or, when nil, the full remaining refundable
// balance) of a COMPLETED or PARTIALLY_REFUNDED payment.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*domain.Payment, error) {
	const op = "payment.refund"

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payment.IsRefundable() {
		return nil, domain.NewInvalidState(op, "cannot refund payment in status "+string(payment.Status))
	}

	refundable := payment.RefundableAmount()
	refundAmount := refundable
	if amount != nil {
		refundAmount = *amount
	}
	if !domain.IsPositive(refundAmount) {
		return nil, domain.NewInvalidAmount(op)
	}
	if refundAmount.GreaterThan(refundable) {
		return nil, domain.NewRefundExceeded(op, refundable.String())
	}

	now := time.Now().UTC()
	payment.RefundedAmount = payment.RefundedAmount.Add(refundAmount)
	if payment.RefundedAmount.GreaterThanOrEqual(payment.Amount) {
		payment.Status = domain.StatusRefunded
	} else {
		payment.Status = domain.StatusPartiallyRefunded
	}
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	txType := domain.TxPartialRefund
	if payment.Status == domain.StatusRefunded {
		txType = domain.TxRefund
	}
	if err := s.transactions.Append(ctx, &domain.Transaction{
		ID:          uuid.New(),
		PaymentID:   payment.ID,
		Type:        txType,
		Amount:      refundAmount,
		Currency:    payment.Currency,
		Status:      domain.StatusCompleted,
		ExternalID:  domain.SyntheticExternalID("REF"),
		CreatedAt:   now,
		ProcessedAt: &now,
	}); err != nil {
		return nil, err
	}

	s.publisher.Publish(events.PaymentRefunded(payment, refundAmount))
	slog.Info("Payment refunded", "payment_id", id, "refund_amount", refundAmount,
		"total_refunded", payment.RefundedAmount, "reason", reason)
	return payment, nil
}

func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *PaymentService) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return s.payments.GetByOrderID(ctx, orderID)
}

func (s *PaymentService) Transactions(ctx context.Context, paymentID uuid.UUID) ([]*domain.Transaction, error) {
	return s.transactions.ListByPayment(ctx, paymentID)
}

func (s *PaymentService) ListByUser(ctx context.Context, userID string, page, size int) (*PaymentPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	items, total, err := s.payments.ListByUser(ctx, userID, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	return &PaymentPage{Items: items, Total: total, Page: page, Size: size}, nil
}

// ExpirePending transitions PENDING payments past their expiry to EXPIRED.
// Driven by the background reaper, never in-line with requests. A revision
// conflict means another actor touched the payment first; skip it.
func (s *PaymentService) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.payments.FindExpiredPending(ctx, now, 100)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, payment := range expired {
		payment.Status = domain.StatusExpired
		payment.UpdatedAt = now
		if err := s.payments.Update(ctx, payment); err != nil {
			if domain.IsType(err, domain.ErrConcurrentModification) {
				continue
			}
			return count, err
		}
		count++
		slog.Info("Payment expired", "payment_id", payment.ID)
	}
	return count, nil
}

// storeIdempotencyResult caches the creation response. Failure to cache is
// logged only: the payment row's unique key still guarantees dedup.
func (s *PaymentService) storeIdempotencyResult(ctx context.Context, key string, payment *domain.Payment) {
	body, err := json.Marshal(map[string]string{"paymentId": payment.ID.String()})
	if err != nil {
		return
	}
	if _, err := s.idempotency.Store(ctx, key, payment.ID, http.StatusCreated, body); err != nil {
		slog.Error("Failed to store idempotency record", "key", key, "error", err)
	}
}
