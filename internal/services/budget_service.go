package services

import (
	"context"
	"fmt"
	"time"

	"budgettracker/internal/amqp"
	"budgettracker/internal/core"
	"budgettracker/internal/log"
	"budgettracker/internal/storage"
)

// LedgerStore is the persistence surface of the budget aggregate.
type LedgerStore interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	RecordEntry(ctx context.Context, e storage.NewEntry) (core.LineItem, error)
	ListBudgetIDs(ctx context.Context) ([]int64, error)
	ReconcileBudget(ctx context.Context, budgetID int64) (storage.Reconciliation, error)
}

// Publisher announces recorded line items. It is optional.
type Publisher interface {
	PublishLedgerEntry(ctx context.Context, msg *amqp.LedgerEntryMessage) error
}

// BudgetService mediates every change to incomes and expenses so a budget's
// running totals always match its line items.
type BudgetService struct {
	store      LedgerStore
	categories *CategoryResolver
	publisher  Publisher
	logger     *log.Logger
	events     *log.StructuredLogger
	now        func() time.Time
}

func NewBudgetService(store LedgerStore, categories *CategoryResolver, publisher Publisher, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBudget)
	return &BudgetService{
		store:      store,
		categories: categories,
		publisher:  publisher,
		logger:     logger,
		events:     log.NewStructuredLogger(logger),
		now:        time.Now,
	}
}

func (s *BudgetService) AddIncome(ctx context.Context, userID int64, amount core.Money, category *string) (core.LineItem, error) {
	return s.AddEntry(ctx, core.EntryRequest{Kind: core.KindIncome, UserID: userID, Amount: amount, Category: category})
}

func (s *BudgetService) AddExpense(ctx context.Context, userID int64, amount core.Money, category *string) (core.LineItem, error) {
	return s.AddEntry(ctx, core.EntryRequest{Kind: core.KindExpense, UserID: userID, Amount: amount, Category: category})
}

// AddEntry validates req, resolves the owner and category, then writes the
// line item and its total update as one unit.
func (s *BudgetService) AddEntry(ctx context.Context, req core.EntryRequest) (core.LineItem, error) {
	if err := req.Validate(); err != nil {
		return core.LineItem{}, err
	}
	label, _ := core.NormalizeCategory(req.Category)

	ok, err := s.store.UserExists(ctx, req.UserID)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("add %s: %w", req.Kind, err)
	}
	if !ok {
		return core.LineItem{}, fmt.Errorf("add %s for user %d: %w", req.Kind, req.UserID, core.ErrUserNotFound)
	}

	entry := storage.NewEntry{
		Kind:   req.Kind,
		UserID: req.UserID,
		Amount: req.Amount,
		Date:   s.now(),
	}
	if label != nil {
		c, err := s.categories.Resolve(ctx, *label)
		if err != nil {
			return core.LineItem{}, err
		}
		entry.Category = &c
	}

	item, err := s.store.RecordEntry(ctx, entry)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("add %s: %w", req.Kind, err)
	}

	s.events.LogEntryRecorded(ctx, string(item.Kind), item.ID, item.BudgetID, req.UserID, item.Amount.Cents)
	s.publish(ctx, req.UserID, item)
	return item, nil
}

func (s *BudgetService) publish(ctx context.Context, userID int64, item core.LineItem) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewLedgerEntryMessage(string(item.Kind), item.ID, item.BudgetID, userID, item.Amount.Cents)
	if err := s.publisher.PublishLedgerEntry(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger entry",
			log.FieldError, err,
			log.FieldEntryID, item.ID,
			log.FieldBudgetID, item.BudgetID)
	}
}

// Reconcile recomputes one budget's totals from its line items.
func (s *BudgetService) Reconcile(ctx context.Context, budgetID int64) (storage.Reconciliation, error) {
	rc, err := s.store.ReconcileBudget(ctx, budgetID)
	if err != nil {
		return rc, fmt.Errorf("reconcile budget %d: %w", budgetID, err)
	}
	if rc.Repaired {
		s.logger.WarnContext(ctx, "Budget totals drifted, repaired",
			log.FieldBudgetID, budgetID,
			log.FieldOperation, log.OpReconcile,
			"stored_income", rc.StoredIncome,
			"stored_expense", rc.StoredExpense,
			"sum_income", rc.SumIncome,
			"sum_expense", rc.SumExpense)
	}
	return rc, nil
}

type ReconcileSummary struct {
	Checked  int
	Repaired int
	Failed   int
}

// ReconcileAll checks every budget. A failing budget is counted and skipped.
func (s *BudgetService) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	var sum ReconcileSummary
	ids, err := s.store.ListBudgetIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("reconcile all: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rc, err := s.Reconcile(ctx, id)
		sum.Checked++
		if err != nil {
			sum.Failed++
			s.logger.ErrorContext(ctx, "Reconcile failed", log.FieldBudgetID, id, log.FieldError, err)
			continue
		}
		if rc.Repaired {
			sum.Repaired++
		}
	}
	return sum, nil
}
