package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
	byKey    map[string]uuid.UUID
	byOrder  map[string]uuid.UUID
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[uuid.UUID]*domain.Payment),
		byKey:    make(map[string]uuid.UUID),
		byOrder:  make(map[string]uuid.UUID),
	}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	const op = "memory.payment.create"
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[payment.IdempotencyKey]; exists {
		return domain.NewKeyConflict(op, "idempotency key already used")
	}
	if _, exists := r.byOrder[payment.OrderID]; exists {
		return domain.NewKeyConflict(op, "order already has a payment")
	}
	cp := *payment
	r.payments[payment.ID] = &cp
	r.byKey[payment.IdempotencyKey] = payment.ID
	r.byOrder[payment.OrderID] = payment.ID
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "memory.payment.get"
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[id]
	if !ok {
		return nil, domain.NewNotFound(op, "payment")
	}
	cp := *payment
	return &cp, nil
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	const op = "memory.payment.getByKey"
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, domain.NewNotFound(op, "payment")
	}
	cp := *r.payments[id]
	return &cp, nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	const op = "memory.payment.getByOrder"
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.NewNotFound(op, "payment")
	}
	cp := *r.payments[id]
	return &cp, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Payment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Payment
	for _, payment := range r.payments {
		if payment.UserID == userID {
			cp := *payment
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*domain.Payment{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	const op = "memory.payment.update"
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payments[payment.ID]
	if !ok {
		return domain.NewNotFound(op, "payment")
	}
	if stored.Revision != payment.Revision {
		return domain.NewConcurrentModification(op)
	}
	payment.Revision++
	cp := *payment
	r.payments[payment.ID] = &cp
	return nil
}

func (r *PaymentRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Payment
	for _, payment := range r.payments {
		if payment.Status == domain.StatusPending && payment.ExpiresAt.Before(now) {
			cp := *payment
			result = append(result, &cp)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

type TransactionRepository struct {
	mu           sync.RWMutex
	transactions []*domain.Transaction
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *tx
	r.transactions = append(r.transactions, &cp)
	return nil
}

func (r *TransactionRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range r.transactions {
		if tx.PaymentID == paymentID {
			cp := *tx
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *TransactionRepository) FirstByPaymentAndType(ctx context.Context, paymentID uuid.UUID, txType domain.TransactionType) (*domain.Transaction, error) {
	const op = "memory.transaction.first"
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tx := range r.transactions {
		if tx.PaymentID == paymentID && tx.Type == txType {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domain.NewNotFound(op, "transaction")
}

func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	const op = "memory.transaction.update"
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, stored := range r.transactions {
		if stored.ID == tx.ID {
			cp := *tx
			r.transactions[i] = &cp
			return nil
		}
	}
	return domain.NewNotFound(op, "transaction")
}
