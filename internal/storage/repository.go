package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgettracker/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// DSN builds the connection string used for both the pool and migrations.
// Write transactions take the lock up front so concurrent adds queue on busy_timeout
// instead of failing on lock upgrade.
func DSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx runs fn inside a single write transaction.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListUsers returns every user with budgets, line items and categories attached.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	budgets, err := r.loadBudgets(ctx, 0)
	if err != nil {
		return nil, err
	}
	users := make([]core.User, 0, len(rows))
	for _, row := range rows {
		u := toCoreUser(row)
		u.Budgets = budgetsOrEmpty(budgets[u.ID])
		users = append(users, u)
	}
	return users, nil
}

// GetUser loads one user with its nested budgets.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, notFound(err))
	}
	budgets, err := r.loadBudgets(ctx, id)
	if err != nil {
		return core.User{}, err
	}
	u := toCoreUser(row)
	u.Budgets = budgetsOrEmpty(budgets[id])
	return u, nil
}

// GetUserByUsername returns the bare user row including the password hash.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row, err := r.queries.GetUserByUsername(ctx, username)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", notFound(err))
	}
	return toCoreUser(row), nil
}

func (r *SQLiteRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	_, err := r.queries.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get user %d: %w", id, err)
	}
	return true, nil
}

// CreateUser inserts u. The caller must have hashed the password already.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row, err := r.queries.CreateUser(ctx, CreateUserParams{
		Name:     u.Name,
		Email:    u.Email,
		Username: u.Username,
		Password: u.PasswordHash,
		Role:     string(u.Role),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", userConflict(err))
	}
	created := toCoreUser(row)
	created.Budgets = []core.Budget{}
	return created, nil
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, id int64, upd core.UserUpdate) (core.User, error) {
	_, err := r.queries.UpdateUser(ctx, UpdateUserParams{Name: upd.Name, Email: upd.Email, ID: id})
	if err != nil {
		return core.User{}, fmt.Errorf("update user %d: %w", id, userConflict(notFound(err)))
	}
	return r.GetUser(ctx, id)
}

// DeleteUser removes the user; budgets and line items go with it via cascade.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	n, err := r.queries.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	c, err := r.queries.GetCategoryByName(ctx, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %q: %w", name, notFound(err))
	}
	return core.Category{ID: c.ID, Name: c.Name}, nil
}

// CreateCategory inserts a new category. A duplicate name yields ErrConflict.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	c, err := r.queries.CreateCategory(ctx, name)
	if err != nil {
		if IsUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("create category %q: %w", name, ErrConflict)
		}
		return core.Category{}, fmt.Errorf("create category %q: %w", name, err)
	}
	return core.Category{ID: c.ID, Name: c.Name}, nil
}

func (r *SQLiteRepository) CountCategoriesByName(ctx context.Context, name string) (int64, error) {
	return r.queries.CountCategoriesByName(ctx, name)
}

// NewEntry is a line item ready to be written.
type NewEntry struct {
	Kind     core.EntryKind
	UserID   int64
	Amount   core.Money
	Category *core.Category
	Date     time.Time
}

// RecordEntry finds or creates the user's budget, inserts the line item and
// bumps the matching running total, all in one transaction. An increment that
// would overflow the total fails with core.ErrInvalidAmount and writes nothing.
func (r *SQLiteRepository) RecordEntry(ctx context.Context, e NewEntry) (core.LineItem, error) {
	if err := e.Amount.Validate(); err != nil {
		return core.LineItem{}, err
	}
	var item core.LineItem
	err := r.InTx(ctx, func(q *Queries) error {
		budget, err := q.GetBudgetByUser(ctx, e.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			budget, err = q.CreateBudget(ctx, e.UserID)
		}
		if err != nil {
			return fmt.Errorf("resolve budget for user %d: %w", e.UserID, err)
		}

		params := CreateEntryParams{
			Amount:   e.Amount.Cents,
			Date:     e.Date.UTC().Format(dateLayout),
			BudgetID: budget.ID,
		}
		if e.Category != nil {
			params.CategoryID = sql.NullInt64{Int64: e.Category.ID, Valid: true}
		}

		var id, affected int64
		switch e.Kind {
		case core.KindIncome:
			if id, err = q.CreateIncome(ctx, params); err != nil {
				return fmt.Errorf("insert income: %w", err)
			}
			affected, err = q.AddBudgetIncome(ctx, e.Amount.Cents, budget.ID)
		case core.KindExpense:
			if id, err = q.CreateExpense(ctx, params); err != nil {
				return fmt.Errorf("insert expense: %w", err)
			}
			affected, err = q.AddBudgetExpense(ctx, e.Amount.Cents, budget.ID)
		default:
			return core.ErrInvalidEntryKind
		}
		if err != nil {
			return fmt.Errorf("increment budget %d: %w", budget.ID, err)
		}
		if affected != 1 {
			// The budget row was read above in this transaction, so only the
			// overflow guard can leave it untouched.
			return fmt.Errorf("increment budget %d: total out of range: %w", budget.ID, core.ErrInvalidAmount)
		}

		item = core.LineItem{
			ID:         id,
			Kind:       e.Kind,
			Amount:     e.Amount,
			Date:       e.Date.UTC(),
			BudgetID:   budget.ID,
			Categories: []core.Category{},
		}
		if e.Category != nil {
			item.Categories = append(item.Categories, *e.Category)
		}
		return nil
	})
	if err != nil {
		return core.LineItem{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := r.queries.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, notFound(err))
	}
	return core.Budget{
		ID:            b.ID,
		UserID:        b.UserID,
		TotalIncome:   core.Money{Cents: b.Income},
		TotalExpenses: core.Money{Cents: b.Expense},
	}, nil
}

func (r *SQLiteRepository) ListBudgetIDs(ctx context.Context) ([]int64, error) {
	ids, err := r.queries.ListBudgetIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budget ids: %w", err)
	}
	return ids, nil
}

// Reconciliation compares the stored running totals of a budget with the
// sums of its line items.
type Reconciliation struct {
	BudgetID      int64
	StoredIncome  int64
	StoredExpense int64
	SumIncome     int64
	SumExpense    int64
	Repaired      bool
}

func (rc Reconciliation) Drifted() bool {
	return rc.StoredIncome != rc.SumIncome || rc.StoredExpense != rc.SumExpense
}

// ReconcileBudget recomputes the totals of one budget and rewrites them if
// they drifted from the line items.
func (r *SQLiteRepository) ReconcileBudget(ctx context.Context, budgetID int64) (Reconciliation, error) {
	rc := Reconciliation{BudgetID: budgetID}
	err := r.InTx(ctx, func(q *Queries) error {
		b, err := q.GetBudget(ctx, budgetID)
		if err != nil {
			return fmt.Errorf("get budget %d: %w", budgetID, notFound(err))
		}
		rc.StoredIncome, rc.StoredExpense = b.Income, b.Expense

		if rc.SumIncome, err = q.SumIncomes(ctx, budgetID); err != nil {
			return fmt.Errorf("sum incomes: %w", err)
		}
		if rc.SumExpense, err = q.SumExpenses(ctx, budgetID); err != nil {
			return fmt.Errorf("sum expenses: %w", err)
		}
		if !rc.Drifted() {
			return nil
		}
		if err := q.SetBudgetTotals(ctx, SetBudgetTotalsParams{
			Income:  rc.SumIncome,
			Expense: rc.SumExpense,
			ID:      budgetID,
		}); err != nil {
			return fmt.Errorf("set budget totals: %w", err)
		}
		rc.Repaired = true
		return nil
	})
	return rc, err
}

// SetBudgetTotals overwrites the running totals directly.
func (r *SQLiteRepository) SetBudgetTotals(ctx context.Context, budgetID int64, income, expense core.Money) error {
	return r.queries.SetBudgetTotals(ctx, SetBudgetTotalsParams{Income: income.Cents, Expense: expense.Cents, ID: budgetID})
}

// loadBudgets groups budgets by owner. userID 0 loads all of them.
func (r *SQLiteRepository) loadBudgets(ctx context.Context, userID int64) (map[int64][]core.Budget, error) {
	budgets, err := r.queries.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	incomes, err := r.queries.ListIncomes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	expenses, err := r.queries.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	byBudget := make(map[int64]*core.Budget, len(budgets))
	order := make([]int64, 0, len(budgets))
	for _, b := range budgets {
		byBudget[b.ID] = &core.Budget{
			ID:            b.ID,
			UserID:        b.UserID,
			TotalIncome:   core.Money{Cents: b.Income},
			TotalExpenses: core.Money{Cents: b.Expense},
			Incomes:       []core.LineItem{},
			Expenses:      []core.LineItem{},
		}
		order = append(order, b.ID)
	}
	for _, e := range incomes {
		if b, ok := byBudget[e.BudgetID]; ok {
			b.Incomes = append(b.Incomes, toLineItem(e, core.KindIncome))
		}
	}
	for _, e := range expenses {
		if b, ok := byBudget[e.BudgetID]; ok {
			b.Expenses = append(b.Expenses, toLineItem(e, core.KindExpense))
		}
	}

	out := make(map[int64][]core.Budget)
	for _, id := range order {
		b := byBudget[id]
		out[b.UserID] = append(out[b.UserID], *b)
	}
	return out, nil
}

func toCoreUser(u User) core.User {
	return core.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.Password,
		Role:         core.Role(u.Role),
	}
}

func toLineItem(e Entry, kind core.EntryKind) core.LineItem {
	item := core.LineItem{
		ID:         e.ID,
		Kind:       kind,
		Amount:     core.Money{Cents: e.Amount},
		Date:       parseDate(e.Date),
		BudgetID:   e.BudgetID,
		Categories: []core.Category{},
	}
	if e.CategoryID.Valid {
		item.Categories = append(item.Categories, core.Category{ID: e.CategoryID.Int64, Name: e.CategoryName.String})
	}
	return item
}

func parseDate(s string) time.Time {
	for _, layout := range []string{dateLayout, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func budgetsOrEmpty(b []core.Budget) []core.Budget {
	if b == nil {
		return []core.Budget{}
	}
	return b
}

func userConflict(err error) error {
	if !IsUniqueViolation(err) {
		return err
	}
	switch uniqueColumn(err) {
	case "users.email":
		return core.ErrDuplicateEmail
	case "users.username":
		return core.ErrDuplicateUsername
	default:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
}
