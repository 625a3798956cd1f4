package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// StaleLister lists PENDING payments old enough to re-poll.
type StaleLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error)
}

// Reconciler periodically re-polls stale PENDING payments against their
// providers so no payment is dropped in an ambiguous state.
type Reconciler struct {
	store     StaleLister
	svc       Service
	providers map[Method]Provider
	interval  time.Duration
	minAge    time.Duration
	batch     int
	log       *slog.Logger
}

func NewReconciler(store StaleLister, svc Service, providers map[Method]Provider, interval, minAge time.Duration, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:     store,
		svc:       svc,
		providers: providers,
		interval:  interval,
		minAge:    minAge,
		batch:     100,
		log:       log,
	}
}

// Run sweeps until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	stale, err := r.store.ListStalePending(ctx, time.Now().Add(-r.minAge), r.batch)
	if err != nil {
		r.log.Error("list stale payments", "error", err)
		return
	}
	for _, p := range stale {
		if p.ExternalPaymentID == nil {
			continue
		}
		provider, ok := r.providers[p.Method]
		if !ok {
			continue
		}

		var status Status
		backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			st, err := provider.CheckStatus(ctx, *p.ExternalPaymentID)
			if err != nil {
				return retry.RetryableError(err)
			}
			status = st
			return nil
		})
		if err != nil {
			r.log.Warn("provider status poll failed", "payment_id", p.ID, "method", p.Method, "error", err)
			continue
		}
		if !status.Terminal() {
			continue
		}
		if _, err := r.svc.Confirm(ctx, p.ID, status); err != nil {
			r.log.Error("reconcile payment", "payment_id", p.ID, "status", status, "error", err)
		} else {
			r.log.Info("payment reconciled", "payment_id", p.ID, "status", status)
		}
	}
}
