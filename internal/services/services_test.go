package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgettracker/internal/amqp"
	"budgettracker/internal/auth"
	"budgettracker/internal/core"
	"budgettracker/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerEntryMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerEntry(_ context.Context, msg *amqp.LedgerEntryMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type fixture struct {
	repo      *storage.SQLiteRepository
	users     *UserService
	budgets   *BudgetService
	resolver  *CategoryResolver
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	pub := &recordingPublisher{}
	resolver := NewCategoryResolver(repo, nil)
	return &fixture{
		repo:      repo,
		users:     NewUserService(repo, auth.NewIssuer(testSecret, 0), UserServiceConfig{BcryptCost: bcrypt.MinCost, AllowSignup: true}, nil),
		budgets:   NewBudgetService(repo, resolver, pub, nil),
		resolver:  resolver,
		publisher: pub,
	}
}

func (f *fixture) createUser(t *testing.T, username string) core.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), core.NewUser{
		Name: "User " + username, Email: username + "@example.com", Username: username, Password: username + "123", Role: core.RoleUser,
	})
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }

func TestUserService_PasswordIsHashed(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "john")

	stored, err := f.repo.GetUserByUsername(context.Background(), "john")
	require.NoError(t, err)
	assert.NotEqual(t, "john123", stored.PasswordHash)
	assert.True(t, auth.IsHash(stored.PasswordHash))
	assert.Equal(t, u.ID, stored.ID)
}

func TestUserService_VerifyFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "john")
	ctx := context.Background()

	id, err := f.users.Verify(ctx, "john", "john123")
	require.NoError(t, err)
	assert.Equal(t, "john", id.Username)

	_, errUnknown := f.users.Verify(ctx, "nobody", "john123")
	_, errWrong := f.users.Verify(ctx, "john", "wrong")
	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.Equal(t, errUnknown, errWrong)
	assert.ErrorIs(t, errUnknown, core.ErrInvalidCredentials)
}

func TestUserService_Login(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "john")

	res, err := f.users.Login(context.Background(), "john", "john123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.ID)
	assert.Equal(t, "User john", res.FullName)
	assert.Equal(t, core.RoleUser, res.Role)
	assert.NotEmpty(t, res.Token)

	_, err = f.users.Login(context.Background(), "john", "nope")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestUserService_SignupForcesUserRole(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.Signup(context.Background(), core.NewUser{
		Name: "Eve", Email: "eve@example.com", Username: "eve", Password: "pw", Role: core.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, core.RoleUser, u.Role)
}

func TestUserService_SignupDisabled(t *testing.T) {
	f := newFixture(t)
	f.users.config.AllowSignup = false
	_, err := f.users.Signup(context.Background(), core.NewUser{
		Name: "Eve", Email: "eve@example.com", Username: "eve", Password: "pw",
	})
	assert.ErrorIs(t, err, core.ErrSignupDisabled)
}

func TestUserService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, core.NewUser{Name: "A", Username: "a", Password: "x", Role: core.RoleUser})
	assert.ErrorIs(t, err, core.ErrMissingFields)

	f.createUser(t, "john")
	_, err = f.users.Create(ctx, core.NewUser{Name: "J", Email: "john@example.com", Username: "j2", Password: "x", Role: core.RoleUser})
	assert.ErrorIs(t, err, core.ErrDuplicateEmail)
}

func TestUserService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "john")

	_, err := f.users.Update(ctx, u.ID, core.UserUpdate{Name: "", Email: "x@example.com"})
	assert.ErrorIs(t, err, core.ErrMissingFields)

	_, err = f.users.Update(ctx, 999, core.UserUpdate{Name: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, core.ErrUserNotFound)

	updated, err := f.users.Update(ctx, u.ID, core.UserUpdate{Name: "Johnny", Email: "johnny@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", updated.Name)

	require.NoError(t, f.users.Delete(ctx, u.ID))
	_, err = f.users.Get(ctx, u.ID)
	assert.ErrorIs(t, err, core.ErrUserNotFound)
	assert.ErrorIs(t, f.users.Delete(ctx, u.ID), core.ErrUserNotFound)
}

func TestBudgetService_AddIncomeIncreasesTotalByAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "john")

	_, err := f.budgets.AddIncome(ctx, u.ID, core.Money{Cents: 1000}, strPtr("Salary"))
	require.NoError(t, err)

	before, err := f.users.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, before.Budgets, 1)

	item, err := f.budgets.AddIncome(ctx, u.ID, core.Money{Cents: 50000}, strPtr("Salary"))
	require.NoError(t, err)

	after, err := f.users.Get(ctx, u.ID)
	require.NoError(t, err)
	b := after.Budgets[0]
	assert.Equal(t, before.Budgets[0].TotalIncome.Cents+50000, b.TotalIncome.Cents)
	assert.Len(t, b.Incomes, len(before.Budgets[0].Incomes)+1)
	last := b.Incomes[len(b.Incomes)-1]
	assert.Equal(t, item.ID, last.ID)
	require.Len(t, last.Categories, 1)
	assert.Equal(t, "Salary", last.Categories[0].Name)
	assert.Equal(t, b.Incomes[0].Categories[0].ID, last.Categories[0].ID)

	n, err := f.repo.CountCategoriesByName(ctx, "Salary")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBudgetService_AddExpenseWithoutCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "john")

	item, err := f.budgets.AddExpense(ctx, u.ID, core.Money{Cents: 1250}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.KindExpense, item.Kind)
	assert.Empty(t, item.Categories)

	got, err := f.users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), got.Budgets[0].TotalExpenses.Cents)
	assert.Equal(t, int64(0), got.Budgets[0].TotalIncome.Cents)
}

func TestBudgetService_RejectsBeforePersisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "john")

	tests := []struct {
		name     string
		userID   int64
		amount   core.Money
		category *string
		want     error
	}{
		{"zero amount", u.ID, core.Money{}, strPtr("Salary"), core.ErrInvalidAmount},
		{"negative amount", u.ID, core.Money{Cents: -5}, strPtr("Salary"), core.ErrInvalidAmount},
		{"blank category", u.ID, core.Money{Cents: 100}, strPtr("   "), core.ErrInvalidCategory},
		{"unknown user", 999, core.Money{Cents: 100}, strPtr("Salary"), core.ErrUserNotFound},
		{"non-positive user id", -1, core.Money{Cents: 100}, strPtr("Salary"), core.ErrInvalidUserID},
		{"amount over limit", u.ID, core.Money{Cents: core.MaxAmountCents + 1}, strPtr("Salary"), core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.budgets.AddIncome(ctx, tt.userID, tt.amount, tt.category)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	ids, err := f.repo.ListBudgetIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.publisher.msgs)
}

func TestBudgetService_PublishesAndToleratesPublishFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "john")
	f.publisher.err = errors.New("broker down")

	item, err := f.budgets.AddIncome(ctx, u.ID, core.Money{Cents: 700}, strPtr("Freelance"))
	require.NoError(t, err)

	require.Len(t, f.publisher.msgs, 1)
	msg := f.publisher.msgs[0]
	assert.Equal(t, "income", msg.Kind)
	assert.Equal(t, item.ID, msg.EntryID)
	assert.Equal(t, item.BudgetID, msg.BudgetID)
	assert.Equal(t, u.ID, msg.UserID)
	assert.Equal(t, int64(700), msg.AmountCents)
}

func TestBudgetService_NilPublisher(t *testing.T) {
	f := newFixture(t)
	svc := NewBudgetService(f.repo, f.resolver, nil, nil)
	u := f.createUser(t, "john")

	_, err := svc.AddExpense(context.Background(), u.ID, core.Money{Cents: 1}, nil)
	assert.NoError(t, err)
}

func TestBudgetService_UsesClockForDate(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	f.budgets.now = func() time.Time { return fixed }
	u := f.createUser(t, "john")

	item, err := f.budgets.AddIncome(context.Background(), u.ID, core.Money{Cents: 100}, nil)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(item.Date))
}

func TestBudgetService_ReconcileAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.createUser(t, "john")
	tim := f.createUser(t, "tim")

	a, err := f.budgets.AddIncome(ctx, john.ID, core.Money{Cents: 900}, nil)
	require.NoError(t, err)
	_, err = f.budgets.AddExpense(ctx, tim.ID, core.Money{Cents: 300}, nil)
	require.NoError(t, err)

	require.NoError(t, f.repo.SetBudgetTotals(ctx, a.BudgetID, core.Money{Cents: 5}, core.Money{}))

	sum, err := f.budgets.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileSummary{Checked: 2, Repaired: 1}, sum)

	b, err := f.repo.GetBudget(ctx, a.BudgetID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), b.TotalIncome.Cents)
}

func TestCategoryResolver_SameLabelSameID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.resolver.Resolve(ctx, "Groceries")
	require.NoError(t, err)
	b, err := f.resolver.Resolve(ctx, "  Groceries ")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	c, err := f.resolver.Resolve(ctx, "groceries")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)

	_, err = f.resolver.Resolve(ctx, " ")
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
}

func TestCategoryResolver_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 16
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.resolver.Resolve(ctx, "Rent")
			assert.NoError(t, err)
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	n, err := f.repo.CountCategoriesByName(ctx, "Rent")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// slowStore holds the lookup until released and fails it if its context was cancelled.
type slowStore struct {
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	close(s.entered)
	<-s.release
	if err := ctx.Err(); err != nil {
		return core.Category{}, err
	}
	return core.Category{ID: 3, Name: name}, nil
}

func (s *slowStore) CreateCategory(context.Context, string) (core.Category, error) {
	return core.Category{}, errors.New("unexpected create")
}

func TestCategoryResolver_SharedLookupOutlivesCallerCancellation(t *testing.T) {
	store := &slowStore{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewCategoryResolver(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		c   core.Category
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := r.Resolve(ctx, "Rent")
		done <- result{c, err}
	}()

	<-store.entered
	cancel()
	close(store.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, int64(3), res.c.ID)
}

// racingStore reports the category missing on the first read and loses the
// insert race, as if another process created it in between.
type racingStore struct {
	reads   int
	creates int
}

func (s *racingStore) GetCategoryByName(_ context.Context, name string) (core.Category, error) {
	s.reads++
	if s.reads == 1 {
		return core.Category{}, storage.ErrNotFound
	}
	return core.Category{ID: 7, Name: name}, nil
}

func (s *racingStore) CreateCategory(_ context.Context, _ string) (core.Category, error) {
	s.creates++
	return core.Category{}, storage.ErrConflict
}

func TestCategoryResolver_ConflictRereads(t *testing.T) {
	store := &racingStore{}
	r := NewCategoryResolver(store, nil)

	c, err := r.Resolve(context.Background(), "Salary")
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, 2, store.reads)
	assert.Equal(t, 1, store.creates)

	again, err := r.Resolve(context.Background(), "Salary")
	require.NoError(t, err)
	assert.Equal(t, c, again)
	assert.Equal(t, 2, store.reads, "resolved categories are memoized")
}

func TestSeedDemoData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, SeedDemoData(ctx, f.users, f.budgets, nil))
	require.NoError(t, SeedDemoData(ctx, f.users, f.budgets, nil))

	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	john, err := f.users.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "john", john.Username)
	require.Len(t, john.Budgets, 1)
	assert.Equal(t, int64(500000), john.Budgets[0].TotalIncome.Cents)
	assert.Equal(t, int64(100000), john.Budgets[0].TotalExpenses.Cents)

	_, err = f.users.Login(ctx, "john", "john123")
	assert.NoError(t, err)
}
