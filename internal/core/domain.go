package core

import (
	"net/mail"
	"strings"
	"time"
)

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

const (
	KindIncome  EntryKind = "income"
	KindExpense EntryKind = "expense"
)

type (
	Role string

	// EntryKind selects which side of a budget a line item belongs to.
	EntryKind string

	User struct {
		ID           int64    `json:"id"`
		Name         string   `json:"name"`
		Email        string   `json:"email"`
		Username     string   `json:"username"`
		PasswordHash string   `json:"-"`
		Role         Role     `json:"role"`
		Budgets      []Budget `json:"budgets"`
	}

	Budget struct {
		ID            int64      `json:"id"`
		UserID        int64      `json:"userId"`
		TotalIncome   Money      `json:"totalIncome"`
		TotalExpenses Money      `json:"totalExpenses"`
		Incomes       []LineItem `json:"incomes"`
		Expenses      []LineItem `json:"expenses"`
	}

	// LineItem is a single income or expense row owned by a budget.
	LineItem struct {
		ID         int64      `json:"id"`
		Kind       EntryKind  `json:"-"`
		Amount     Money      `json:"amount"`
		Date       time.Time  `json:"date"`
		BudgetID   int64      `json:"budgetId"`
		Categories []Category `json:"categories"`
	}

	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// NewUser carries everything needed to register an account. Password is plaintext
	// and only lives until it is hashed.
	NewUser struct {
		Name     string
		Email    string
		Username string
		Password string
		Role     Role
	}

	// UserUpdate names exactly the fields an update may touch.
	UserUpdate struct {
		Name  string
		Email string
	}

	// EntryRequest asks the budget aggregate to record one line item.
	// A nil Category means the entry is uncategorised.
	EntryRequest struct {
		Kind     EntryKind
		UserID   int64
		Amount   Money
		Category *string
	}

	// Identity is what a successful credential check yields.
	Identity struct {
		UserID   int64
		Username string
		Name     string
		Role     Role
	}
)

// ParseRole maps free text onto a Role; empty input defaults to RoleUser.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RoleUser, nil
	}
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleManager:
		return true
	default:
		return false
	}
}

func (k EntryKind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

func (u NewUser) Validate() error {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Username) == "" ||
		strings.TrimSpace(u.Email) == "" || u.Password == "" {
		return ErrMissingFields
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(u.Username) > 64 || len(u.Name) > 200 || len(u.Password) > MaxPasswordBytes {
		return ErrFieldTooLong
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

func (u UserUpdate) Validate() error {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		return ErrMissingFields
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(u.Name) > 200 {
		return ErrFieldTooLong
	}
	return nil
}

// NormalizeCategory trims a provided label. A label that is present but blank
// is rejected; an absent label stays absent.
func NormalizeCategory(label *string) (*string, error) {
	if label == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*label)
	if trimmed == "" {
		return nil, ErrInvalidCategory
	}
	if len(trimmed) > 100 {
		return nil, ErrInvalidCategory
	}
	return &trimmed, nil
}

func (e EntryRequest) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidEntryKind
	}
	if e.UserID <= 0 {
		return ErrInvalidUserID
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if _, err := NormalizeCategory(e.Category); err != nil {
		return err
	}
	return nil
}
