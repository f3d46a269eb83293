package saga

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NiMv1/payment-service/internal/core/domain"
)

// Ledger is the slice of the wallet service the saga needs. Each call
// commits on its own; the saga never asks for two wallets to be locked at
// once.
type Ledger interface {
	Block(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) error
	Deposit(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) (*domain.Wallet, error)
	DebitBlocked(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) error
	Withdraw(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) (*domain.Wallet, error)
	Unblock(ctx context.Context, userID string, currency domain.Currency, amount decimal.Decimal) error
}

type TransferRequest struct {
	FromUserID  string
	ToUserID    string
	Amount      decimal.Decimal
	Currency    domain.Currency
	Description string
}

type TransferResult struct {
	TransferID  uuid.UUID
	FromUserID  string
	ToUserID    string
	Amount      decimal.Decimal
	Currency    domain.Currency
	Status      string
	Description string
	CreatedAt   time.Time
}

// TransferSaga moves money between two wallets in three independently
// committed steps:
//
//  1. block the amount on the source wallet
//  2. credit the destination wallet
//  3. debit the blocked amount on the source wallet
//
// On a failure at step 2 or 3 the committed steps are compensated in
// reverse order. Compensation is best-effort: a failed compensation is
// logged and the journal entry flagged for manual reconciliation, never
// retried automatically. The saga reports TransferFailed for any outcome
// short of full success.
type TransferSaga struct {
	ledger  Ledger
	journal Journal
}

func NewTransferSaga(ledger Ledger, journal Journal) *TransferSaga {
	return &TransferSaga{ledger: ledger, journal: journal}
}

// transferContext tracks which steps have committed, solely to drive
// compensation. Request-local, discarded when the saga terminates.
type transferContext struct {
	transferID uuid.UUID
	request    TransferRequest
	blocked    bool
	credited   bool
}

func (s *TransferSaga) Execute(ctx context.Context, request TransferRequest) (*TransferResult, error) {
	const op = "saga.transfer"

	if !domain.IsPositive(request.Amount) {
		return nil, domain.NewInvalidAmount(op)
	}
	if !request.Currency.IsValid() {
		return nil, domain.NewInvalidRequest(op, "unsupported currency: "+string(request.Currency))
	}
	if request.FromUserID == request.ToUserID {
		return nil, domain.NewInvalidRequest(op, "cannot transfer to the same user")
	}

	tctx := &transferContext{transferID: uuid.New(), request: request}
	logger := slog.With("transfer_id", tctx.transferID,
		"from", request.FromUserID, "to", request.ToUserID, "amount", request.Amount)
	logger.Info("Transfer saga started")

	if err := s.journal.Begin(&JournalEntry{
		TransferID: tctx.transferID,
		FromUserID: request.FromUserID,
		ToUserID:   request.ToUserID,
		Amount:     request.Amount.String(),
		Currency:   string(request.Currency),
	}); err != nil {
		return nil, domain.NewInternal(op, err)
	}

	// Step 1: reserve funds on the source without removing them yet.
	if err := s.ledger.Block(ctx, request.FromUserID, request.Currency, request.Amount); err != nil {
		logger.Error("Saga step 1 (block) failed", "error", err)
		s.finish(tctx)
		return nil, domain.NewTransferFailed(op, err)
	}
	tctx.blocked = true
	s.mark(tctx, StepBlocked)

	// Step 2: make funds available to the destination.
	if _, err := s.ledger.Deposit(ctx, request.ToUserID, request.Currency, request.Amount); err != nil {
		logger.Error("Saga step 2 (credit) failed", "error", err)
		s.compensate(ctx, tctx, logger)
		return nil, domain.NewTransferFailed(op, err)
	}
	tctx.credited = true
	s.mark(tctx, StepCredited)

	// Step 3: finalize the source-side debit, releasing the hold and
	// reducing the balance together.
	if err := s.ledger.DebitBlocked(ctx, request.FromUserID, request.Currency, request.Amount); err != nil {
		logger.Error("Saga step 3 (debit blocked) failed", "error", err)
		s.compensate(ctx, tctx, logger)
		return nil, domain.NewTransferFailed(op, err)
	}
	s.mark(tctx, StepDebited)
	s.finish(tctx)

	logger.Info("Transfer saga completed")
	return &TransferResult{
		TransferID:  tctx.transferID,
		FromUserID:  request.FromUserID,
		ToUserID:    request.ToUserID,
		Amount:      request.Amount,
		Currency:    request.Currency,
		Status:      "COMPLETED",
		Description: request.Description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// compensate undoes committed steps in reverse order. Each compensation is
// attempted independently; a failure leaves the journal entry flagged.
func (s *TransferSaga) compensate(ctx context.Context, tctx *transferContext, logger *slog.Logger) {
	logger.Info("Saga compensation started")
	req := tctx.request
	clean := true

	if tctx.credited {
		logger.Info("Compensation: debit recipient")
		if _, err := s.ledger.Withdraw(ctx, req.ToUserID, req.Currency, req.Amount); err != nil {
			logger.Error("Compensation failed (debit recipient)", "error", err)
			s.flag(tctx, "debit recipient failed: "+err.Error())
			clean = false
		}
	}

	if tctx.blocked {
		logger.Info("Compensation: unblock sender")
		if err := s.ledger.Unblock(ctx, req.FromUserID, req.Currency, req.Amount); err != nil {
			logger.Error("Compensation failed (unblock sender)", "error", err)
			s.flag(tctx, "unblock sender failed: "+err.Error())
			clean = false
		}
	}

	if clean {
		s.finish(tctx)
	}
	logger.Info("Saga compensation finished", "clean", clean)
}

func (s *TransferSaga) mark(tctx *transferContext, step Step) {
	if err := s.journal.MarkStep(tctx.transferID, step); err != nil {
		slog.Error("Failed to journal saga step", "transfer_id", tctx.transferID, "step", step, "error", err)
	}
}

func (s *TransferSaga) flag(tctx *transferContext, reason string) {
	if err := s.journal.Flag(tctx.transferID, reason); err != nil {
		slog.Error("Failed to flag saga journal entry", "transfer_id", tctx.transferID, "error", err)
	}
}

func (s *TransferSaga) finish(tctx *transferContext) {
	if err := s.journal.Complete(tctx.transferID); err != nil {
		slog.Error("Failed to close saga journal entry", "transfer_id", tctx.transferID, "error", err)
	}
}
