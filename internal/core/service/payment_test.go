package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NiMv1/payment-service/internal/adapter/memory"
	"github.com/NiMv1/payment-service/internal/core/domain"
	"github.com/NiMv1/payment-service/internal/core/events"
	"github.com/NiMv1/payment-service/internal/core/service"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) ofType(eventType string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

type paymentFixture struct {
	svc       *service.PaymentService
	payments  *memory.PaymentRepository
	publisher *recordingPublisher
}

func newPaymentFixture() *paymentFixture {
	payments := memory.NewPaymentRepository()
	publisher := &recordingPublisher{}
	idem := service.NewIdempotencyService(memory.NewIdempotencyRepository(), time.Hour)
	svc := service.NewPaymentService(payments, memory.NewTransactionRepository(), idem, publisher)
	return &paymentFixture{svc: svc, payments: payments, publisher: publisher}
}

func paymentSpec(orderID string) service.CreatePaymentSpec {
	return service.CreatePaymentSpec{
		OrderID:       orderID,
		UserID:        "u1",
		Amount:        dec("100.00"),
		Currency:      domain.RUB,
		PaymentMethod: domain.MethodCard,
		Description:   "test order",
	}
}

func TestPaymentService_Create(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, payment.Status)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), payment.ExpiresAt, time.Minute)

	txs, err := f.svc.Transactions(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxPayment, txs[0].Type)

	assert.Len(t, f.publisher.ofType(events.TypePaymentCreated), 1)
}

func TestPaymentService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	spec := paymentSpec("order-1")
	spec.Amount = decimal.Zero
	_, err := f.svc.Create(ctx, "K1", spec)
	assert.True(t, domain.IsType(err, domain.ErrInvalidAmount))

	spec = paymentSpec("order-1")
	spec.Currency = "XXX"
	_, err = f.svc.Create(ctx, "K1", spec)
	assert.True(t, domain.IsType(err, domain.ErrInvalidRequest))

	spec = paymentSpec("order-1")
	spec.TTLMinutes = 2000
	_, err = f.svc.Create(ctx, "K1", spec)
	assert.True(t, domain.IsType(err, domain.ErrInvalidRequest))

	_, err = f.svc.Create(ctx, "", paymentSpec("order-1"))
	assert.True(t, domain.IsType(err, domain.ErrInvalidRequest))
}

// Scenario B: creating twice with the same key returns the same payment,
// appends no second transaction record and emits exactly one created event.
func TestPaymentService_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	first, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	second, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	txs, err := f.svc.Transactions(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	assert.Len(t, f.publisher.ofType(events.TypePaymentCreated), 1)
}

// Concurrent creations with the same fresh key: exactly one payment wins,
// every caller gets the winner's id.
func TestPaymentService_ConcurrentCreateSameKey(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	const callers = 20
	ids := make([]uuid.UUID, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
			if assert.NoError(t, err) {
				ids[i] = payment.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestPaymentService_Confirm(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, confirmed.Status)
	assert.NotEmpty(t, confirmed.ExternalTransactionID)
	require.NotNil(t, confirmed.CompletedAt)

	txs, err := f.svc.Transactions(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.StatusCompleted, txs[0].Status)
	assert.Equal(t, confirmed.ExternalTransactionID, txs[0].ExternalID)

	assert.Len(t, f.publisher.ofType(events.TypePaymentCompleted), 1)
}

func TestPaymentService_ConfirmUnknown(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.Confirm(context.Background(), uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

// A completed payment can never be cancelled, and a cancelled payment can
// never be confirmed.
func TestPaymentService_ConfirmCancelMutuallyExclusive(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	completed, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, completed.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, completed.ID)
	assert.True(t, domain.IsType(err, domain.ErrInvalidState))

	cancelled, err := f.svc.Create(ctx, "K2", paymentSpec("order-2"))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, cancelled.ID)
	assert.True(t, domain.IsType(err, domain.ErrInvalidState))

	assert.Len(t, f.publisher.ofType(events.TypePaymentCancelled), 1)
}

func TestPaymentService_MarkProcessing(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	processing, err := f.svc.MarkProcessing(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, processing.Status)

	// Still confirmable and cancellable from PROCESSING.
	_, err = f.svc.Confirm(ctx, payment.ID)
	assert.NoError(t, err)

	_, err = f.svc.MarkProcessing(ctx, payment.ID)
	assert.True(t, domain.IsType(err, domain.ErrInvalidState))
}

// Scenario C: partial refunds accumulate until fully refunded, then any
// further refund is rejected.
func TestPaymentService_RefundAccumulates(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	spec := paymentSpec("order-1")
	spec.Amount = dec("250.00")
	payment, err := f.svc.Create(ctx, "K1", spec)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, payment.ID)
	require.NoError(t, err)

	amount := dec("50.00")
	refunded, err := f.svc.Refund(ctx, payment.ID, &amount, "damaged item")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyRefunded, refunded.Status)
	assert.True(t, refunded.RefundedAmount.Equal(dec("50.00")))

	amount = dec("200.00")
	refunded, err = f.svc.Refund(ctx, payment.ID, &amount, "order cancelled")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, refunded.Status)
	assert.True(t, refunded.RefundedAmount.Equal(dec("250.00")))

	amount = dec("0.01")
	_, err = f.svc.Refund(ctx, payment.ID, &amount, "one more")
	assert.True(t, domain.IsType(err, domain.ErrRefundExceeded))

	refundEvents := f.publisher.ofType(events.TypePaymentRefunded)
	require.Len(t, refundEvents, 2)
	assert.Equal(t, "50", refundEvents[0].Fields["refundAmount"])
	assert.Equal(t, "250", refundEvents[1].Fields["totalRefunded"])
}

// Omitting the amount refunds the full remaining balance.
func TestPaymentService_FullRefundByDefault(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, payment.ID)
	require.NoError(t, err)

	refunded, err := f.svc.Refund(ctx, payment.ID, nil, "full refund")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, refunded.Status)
	assert.True(t, refunded.RefundedAmount.Equal(payment.Amount))

	txs, err := f.svc.Transactions(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxRefund, txs[1].Type)
}

func TestPaymentService_RefundPendingRejected(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, payment.ID, nil, "too early")
	assert.True(t, domain.IsType(err, domain.ErrInvalidState))
}

func TestPaymentService_Fail(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	failed, err := f.svc.Fail(ctx, payment.ID, "GW_TIMEOUT", "gateway timed out")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, "GW_TIMEOUT", failed.ErrorCode)

	_, err = f.svc.Fail(ctx, payment.ID, "AGAIN", "already failed")
	assert.True(t, domain.IsType(err, domain.ErrInvalidState))

	failedEvents := f.publisher.ofType(events.TypePaymentFailed)
	require.Len(t, failedEvents, 1)
	assert.Equal(t, "GW_TIMEOUT", failedEvents[0].Fields["errorCode"])
}

func TestPaymentService_Queries(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	byOrder, err := f.svc.GetByOrderID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, byOrder.ID)

	_, err = f.svc.GetByOrderID(ctx, "order-unknown")
	assert.True(t, domain.IsNotFound(err))

	for i := 0; i < 5; i++ {
		_, err := f.svc.Create(ctx, "K"+string(rune('a'+i)), paymentSpec("order-x"+string(rune('a'+i))))
		require.NoError(t, err)
	}
	page, err := f.svc.ListByUser(ctx, "u1", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Len(t, page.Items, 4)

	page, err = f.svc.ListByUser(ctx, "u1", 2, 4)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

// A lost update is detected by the revision check, not silently absorbed.
func TestPaymentRepository_ConcurrentModification(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	payment, err := f.svc.Create(ctx, "K1", paymentSpec("order-1"))
	require.NoError(t, err)

	stale, err := f.payments.GetByID(ctx, payment.ID)
	require.NoError(t, err)

	// Another actor wins the race.
	_, err = f.svc.Confirm(ctx, payment.ID)
	require.NoError(t, err)

	stale.Status = domain.StatusCancelled
	err = f.payments.Update(ctx, stale)
	assert.True(t, domain.IsType(err, domain.ErrConcurrentModification))
}

func TestPaymentService_ExpirePending(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture()

	spec := paymentSpec("order-1")
	spec.TTLMinutes = 1
	payment, err := f.svc.Create(ctx, "K1", spec)
	require.NoError(t, err)

	// Nothing expires before the deadline.
	count, err := f.svc.ExpirePending(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = f.svc.ExpirePending(ctx, time.Now().UTC().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := f.svc.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, expired.Status)

	// Terminal: neither confirmable nor cancellable anymore.
	_, err = f.svc.Confirm(ctx, payment.ID)
	assert.True(t, domain.IsType(err, domain.ErrInvalidState))
}
