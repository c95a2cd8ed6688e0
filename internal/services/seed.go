package services

import (
	"context"
	"fmt"

	"budgettracker/internal/core"
	"budgettracker/internal/log"
)

type demoEntry struct {
	kind     core.EntryKind
	cents    int64
	category string
}

type demoUser struct {
	user    core.NewUser
	entries []demoEntry
}

var demoUsers = []demoUser{
	{
		user: core.NewUser{Name: "John Doe", Email: "john@example.com", Username: "john", Password: "john123", Role: core.RoleUser},
		entries: []demoEntry{
			{core.KindIncome, 500000, "Salary"},
			{core.KindExpense, 100000, "Rent"},
		},
	},
	{
		user: core.NewUser{Name: "Tim Smith", Email: "tim@example.com", Username: "tim", Password: "tim123", Role: core.RoleUser},
		entries: []demoEntry{
			{core.KindIncome, 150000, "Freelance"},
			{core.KindExpense, 50000, "Groceries"},
		},
	},
	{user: core.NewUser{Name: "Admin", Email: "admin@example.com", Username: "admin", Password: "admin", Role: core.RoleAdmin}},
	{user: core.NewUser{Name: "Manager", Email: "manager@example.com", Username: "manager", Password: "manager", Role: core.RoleManager}},
}

// SeedDemoData populates an empty store with demo accounts and a few entries.
// It does nothing if any user exists.
func SeedDemoData(ctx context.Context, users *UserService, budgets *BudgetService, logger *log.Logger) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSeed)

	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if n > 0 {
		logger.DebugContext(ctx, "Store not empty, skipping demo seed", "users", n)
		return nil
	}

	for _, d := range demoUsers {
		u, err := users.Create(ctx, d.user)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", d.user.Username, err)
		}
		for _, e := range d.entries {
			label := e.category
			if _, err := budgets.AddEntry(ctx, core.EntryRequest{
				Kind:     e.kind,
				UserID:   u.ID,
				Amount:   core.Money{Cents: e.cents},
				Category: &label,
			}); err != nil {
				return fmt.Errorf("seed %s for %s: %w", e.kind, u.Username, err)
			}
		}
	}

	logger.InfoContext(ctx, "Demo data seeded", "users", len(demoUsers))
	return nil
}
