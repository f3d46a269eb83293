package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/NiMv1/payment-service/internal/core/service"
)

// Reaper runs the two timer-driven maintenance tasks: expiring PENDING
// payments past their deadline and sweeping stale idempotency records.
// Both tasks are idempotent and safe to run alongside normal traffic.
type Reaper struct {
	payments    *service.PaymentService
	idempotency *service.IdempotencyService
	expireTick  time.Duration
	sweepTick   time.Duration
	stop        chan struct{}
}

func NewReaper(payments *service.PaymentService, idempotency *service.IdempotencyService, expireTick, sweepTick time.Duration) *Reaper {
	return &Reaper{
		payments:    payments,
		idempotency: idempotency,
		expireTick:  expireTick,
		sweepTick:   sweepTick,
		stop:        make(chan struct{}),
	}
}

// Start launches both loops. Stop terminates them.
func (r *Reaper) Start() {
	slog.Info("👷 Reaper started", "expire_every", r.expireTick, "sweep_every", r.sweepTick)
	go r.loop(r.expireTick, r.ExpireOnce)
	go r.loop(r.sweepTick, r.SweepOnce)
}

func (r *Reaper) Stop() {
	close(r.stop)
}

func (r *Reaper) loop(every time.Duration, task func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			task(context.Background())
		case <-r.stop:
			return
		}
	}
}

// ExpireOnce runs a single reaper pass.
func (r *Reaper) ExpireOnce(ctx context.Context) {
	count, err := r.payments.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("Payment expiry pass failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Expired pending payments", "count", count)
	}
}

// SweepOnce runs a single idempotency sweep pass.
func (r *Reaper) SweepOnce(ctx context.Context) {
	if _, err := r.idempotency.SweepExpired(ctx, time.Now().UTC()); err != nil {
		slog.Error("Idempotency sweep failed", "error", err)
	}
}
