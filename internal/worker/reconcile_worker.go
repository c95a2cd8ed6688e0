package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgettracker/internal/amqp"
	"budgettracker/internal/log"
	"budgettracker/internal/services"
	"budgettracker/internal/storage"
)

type Reconciler interface {
	Reconcile(ctx context.Context, budgetID int64) (storage.Reconciliation, error)
	ReconcileAll(ctx context.Context) (services.ReconcileSummary, error)
}

// ReconcileWorker re-verifies budget totals against their line items, both
// for every ledger event and on a periodic sweep.
type ReconcileWorker struct {
	reconciler Reconciler
	interval   time.Duration
	logger     *log.Logger
}

func NewReconcileWorker(reconciler Reconciler, interval time.Duration, logger *log.Logger) *ReconcileWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerEntry reconciles the budget named by msg. A budget that no
// longer exists was deleted with its user and is acknowledged.
func (w *ReconcileWorker) HandleLedgerEntry(ctx context.Context, msg *amqp.LedgerEntryMessage) error {
	rc, err := w.reconciler.Reconcile(ctx, msg.BudgetID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.InfoContext(ctx, "Budget gone, skipping ledger entry",
			log.FieldBudgetID, msg.BudgetID,
			log.FieldEntryID, msg.EntryID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile budget %d: %w", msg.BudgetID, err)
	}

	w.logger.DebugContext(ctx, "Ledger entry verified",
		log.FieldBudgetID, msg.BudgetID,
		log.FieldEntryID, msg.EntryID,
		log.FieldEntryKind, msg.Kind,
		"repaired", rc.Repaired)
	return nil
}

// Sweep reconciles every budget once.
func (w *ReconcileWorker) Sweep(ctx context.Context) error {
	start := time.Now()
	sum, err := w.reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	w.logger.InfoContext(ctx, "Reconcile sweep completed",
		"checked", sum.Checked,
		"repaired", sum.Repaired,
		"failed", sum.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// RunSweeps sweeps immediately and then every interval until ctx is done.
func (w *ReconcileWorker) RunSweeps(ctx context.Context) error {
	if err := w.Sweep(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sweep failed", log.FieldError, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Sweep loop stopped")
			return nil
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sweep failed", log.FieldError, err)
			}
		}
	}
}
