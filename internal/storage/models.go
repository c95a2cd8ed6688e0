package storage

import "database/sql"

type User struct {
	ID       int64
	Name     string
	Email    string
	Username string
	Password string
	Role     string
}

type Budget struct {
	ID      int64
	Income  int64
	Expense int64
	UserID  int64
}

type Category struct {
	ID   int64
	Name string
}

// Entry is a row of either incomes or expenses joined with its category.
type Entry struct {
	ID           int64
	Amount       int64
	Date         string
	BudgetID     int64
	CategoryID   sql.NullInt64
	CategoryName sql.NullString
}
