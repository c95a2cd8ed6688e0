package storage

import (
	"context"
	"database/sql"
)

const createUser = `-- name: CreateUser :one
INSERT INTO users (name, email, username, password, role)
VALUES (?, ?, ?, ?, ?)
RETURNING id, name, email, username, password, role
`

type CreateUserParams struct {
	Name     string
	Email    string
	Username string
	Password string
	Role     string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Name,
		arg.Email,
		arg.Username,
		arg.Password,
		arg.Role,
	)
	return scanUser(row)
}

const getUser = `-- name: GetUser :one
SELECT id, name, email, username, password, role FROM users WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

const getUserByUsername = `-- name: GetUserByUsername :one
SELECT id, name, email, username, password, role FROM users WHERE username = ?
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

const listUsers = `-- name: ListUsers :many
SELECT id, name, email, username, password, role FROM users ORDER BY id
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.Name, &i.Email, &i.Username, &i.Password, &i.Role); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateUser = `-- name: UpdateUser :one
UPDATE users SET name = ?, email = ? WHERE id = ?
RETURNING id, name, email, username, password, role
`

type UpdateUserParams struct {
	Name  string
	Email string
	ID    int64
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, updateUser, arg.Name, arg.Email, arg.ID))
}

const deleteUser = `-- name: DeleteUser :execrows
DELETE FROM users WHERE id = ?
`

func (q *Queries) DeleteUser(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countUsers = `-- name: CountUsers :one
SELECT COUNT(*) FROM users
`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&count)
	return count, err
}

func scanUser(row *sql.Row) (User, error) {
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Username, &i.Password, &i.Role)
	return i, err
}

const getBudgetByUser = `-- name: GetBudgetByUser :one
SELECT id, income, expense, user_id FROM budgets WHERE user_id = ? ORDER BY id LIMIT 1
`

func (q *Queries) GetBudgetByUser(ctx context.Context, userID int64) (Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, getBudgetByUser, userID))
}

const getBudget = `-- name: GetBudget :one
SELECT id, income, expense, user_id FROM budgets WHERE id = ?
`

func (q *Queries) GetBudget(ctx context.Context, id int64) (Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, getBudget, id))
}

const createBudget = `-- name: CreateBudget :one
INSERT INTO budgets (income, expense, user_id) VALUES (0, 0, ?)
RETURNING id, income, expense, user_id
`

func (q *Queries) CreateBudget(ctx context.Context, userID int64) (Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, createBudget, userID))
}

// userID 0 lists budgets of every user.
const listBudgets = `-- name: ListBudgets :many
SELECT id, income, expense, user_id FROM budgets
WHERE ?1 = 0 OR user_id = ?1
ORDER BY id
`

func (q *Queries) ListBudgets(ctx context.Context, userID int64) ([]Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Budget
	for rows.Next() {
		var i Budget
		if err := rows.Scan(&i.ID, &i.Income, &i.Expense, &i.UserID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listBudgetIDs = `-- name: ListBudgetIDs :many
SELECT id FROM budgets ORDER BY id
`

func (q *Queries) ListBudgetIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const addBudgetIncome = `-- name: AddBudgetIncome :execrows
UPDATE budgets SET income = income + ?1
WHERE id = ?2 AND income <= 9223372036854775807 - ?1
`

func (q *Queries) AddBudgetIncome(ctx context.Context, amount, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, addBudgetIncome, amount, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const addBudgetExpense = `-- name: AddBudgetExpense :execrows
UPDATE budgets SET expense = expense + ?1
WHERE id = ?2 AND expense <= 9223372036854775807 - ?1
`

func (q *Queries) AddBudgetExpense(ctx context.Context, amount, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, addBudgetExpense, amount, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setBudgetTotals = `-- name: SetBudgetTotals :exec
UPDATE budgets SET income = ?, expense = ? WHERE id = ?
`

type SetBudgetTotalsParams struct {
	Income  int64
	Expense int64
	ID      int64
}

func (q *Queries) SetBudgetTotals(ctx context.Context, arg SetBudgetTotalsParams) error {
	_, err := q.db.ExecContext(ctx, setBudgetTotals, arg.Income, arg.Expense, arg.ID)
	return err
}

func scanBudget(row *sql.Row) (Budget, error) {
	var i Budget
	err := row.Scan(&i.ID, &i.Income, &i.Expense, &i.UserID)
	return i, err
}

const getCategoryByName = `-- name: GetCategoryByName :one
SELECT id, name FROM categories WHERE name = ?
`

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, getCategoryByName, name).Scan(&i.ID, &i.Name)
	return i, err
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name) VALUES (?) RETURNING id, name
`

func (q *Queries) CreateCategory(ctx context.Context, name string) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, createCategory, name).Scan(&i.ID, &i.Name)
	return i, err
}

const countCategoriesByName = `-- name: CountCategoriesByName :one
SELECT COUNT(*) FROM categories WHERE name = ?
`

func (q *Queries) CountCategoriesByName(ctx context.Context, name string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCategoriesByName, name).Scan(&count)
	return count, err
}

type CreateEntryParams struct {
	Amount     int64
	Date       string
	BudgetID   int64
	CategoryID sql.NullInt64
}

const createIncome = `-- name: CreateIncome :one
INSERT INTO incomes (amount, date, budget_id, category_id) VALUES (?, ?, ?, ?)
RETURNING id
`

func (q *Queries) CreateIncome(ctx context.Context, arg CreateEntryParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createIncome, arg.Amount, arg.Date, arg.BudgetID, arg.CategoryID).Scan(&id)
	return id, err
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (amount, date, budget_id, category_id) VALUES (?, ?, ?, ?)
RETURNING id
`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateEntryParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createExpense, arg.Amount, arg.Date, arg.BudgetID, arg.CategoryID).Scan(&id)
	return id, err
}

// userID 0 lists entries of every user.
const listIncomes = `-- name: ListIncomes :many
SELECT i.id, i.amount, i.date, i.budget_id, c.id, c.name
FROM incomes i
JOIN budgets b ON b.id = i.budget_id
LEFT JOIN categories c ON c.id = i.category_id
WHERE ?1 = 0 OR b.user_id = ?1
ORDER BY i.id
`

func (q *Queries) ListIncomes(ctx context.Context, userID int64) ([]Entry, error) {
	return q.listEntries(ctx, listIncomes, userID)
}

const listExpenses = `-- name: ListExpenses :many
SELECT e.id, e.amount, e.date, e.budget_id, c.id, c.name
FROM expenses e
JOIN budgets b ON b.id = e.budget_id
LEFT JOIN categories c ON c.id = e.category_id
WHERE ?1 = 0 OR b.user_id = ?1
ORDER BY e.id
`

func (q *Queries) ListExpenses(ctx context.Context, userID int64) ([]Entry, error) {
	return q.listEntries(ctx, listExpenses, userID)
}

func (q *Queries) listEntries(ctx context.Context, query string, userID int64) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Entry
	for rows.Next() {
		var i Entry
		if err := rows.Scan(&i.ID, &i.Amount, &i.Date, &i.BudgetID, &i.CategoryID, &i.CategoryName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumIncomes = `-- name: SumIncomes :one
SELECT COALESCE(SUM(amount), 0) FROM incomes WHERE budget_id = ?
`

func (q *Queries) SumIncomes(ctx context.Context, budgetID int64) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumIncomes, budgetID).Scan(&total)
	return total, err
}

const sumExpenses = `-- name: SumExpenses :one
SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE budget_id = ?
`

func (q *Queries) SumExpenses(ctx context.Context, budgetID int64) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumExpenses, budgetID).Scan(&total)
	return total, err
}
