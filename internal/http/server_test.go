package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgettracker/internal/auth"
	"budgettracker/internal/services"
	"budgettracker/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	issuer := auth.NewIssuer(testSecret, 0)
	users := services.NewUserService(repo, issuer, services.UserServiceConfig{BcryptCost: bcrypt.MinCost, AllowSignup: true}, nil)
	budgets := services.NewBudgetService(repo, services.NewCategoryResolver(repo, nil), nil, nil)
	require.NoError(t, services.SeedDemoData(context.Background(), users, budgets, nil))

	srv := NewServer(Config{Addr: ":0", CORSOrigin: "http://localhost:3000", LoginRateLimit: 100}, Deps{
		Users:   users,
		Budgets: budgets,
		Tokens:  issuer,
		DB:      repo,
	})
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func login(t *testing.T, srv *Server, username, password string) string {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/users/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tok, _ := decode(t, rr)["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestPublicRoutes(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/status", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Back-end is running...", decode(t, rr)["message"])

	for _, path := range []string{"/healthz", "/readyz", "/api-docs", "/api-docs/routes"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr = do(t, srv, http.MethodGet, "/api-docsX", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/users/login", "", `{"username":"john","password":"john123"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "john", body["username"])
	assert.Equal(t, "John Doe", body["fullname"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = do(t, srv, http.MethodPost, "/users/login", "", `{"username":"john","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, StatusUnauthorized, decode(t, rr)["status"])

	rr = do(t, srv, http.MethodPost, "/users/login", "", `{"username":"nobody","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, http.MethodPost, "/users/login", "", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/users", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, StatusUnauthorized, decode(t, rr)["status"])

	rr = do(t, srv, http.MethodGet, "/users", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok := login(t, srv, "john", "john123")
	rr = do(t, srv, http.MethodGet, "/users", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	assert.Len(t, users, 4)
	for _, u := range users {
		assert.NotContains(t, u, "password")
		assert.NotContains(t, u, "PasswordHash")
	}
}

func TestRecordIncomeUpdatesBudget(t *testing.T) {
	srv := newTestServer(t)
	tok := login(t, srv, "john", "john123")

	rr := do(t, srv, http.MethodPost, "/users/income", tok, `{"userId":1,"amount":500,"description":"Salary"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	item := decode(t, rr)
	assert.EqualValues(t, 500, item["amount"])
	cats := item["categories"].([]any)
	require.Len(t, cats, 1)
	assert.Equal(t, "Salary", cats[0].(map[string]any)["name"])

	rr = do(t, srv, http.MethodGet, "/users/1", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	budgets := decode(t, rr)["budgets"].([]any)
	require.Len(t, budgets, 1)
	b := budgets[0].(map[string]any)
	assert.EqualValues(t, 5500, b["totalIncome"])
	assert.EqualValues(t, 1000, b["totalExpenses"])
	assert.Len(t, b["incomes"], 2)

	rr = do(t, srv, http.MethodPost, "/users/expense", tok, `{"userId":1,"amount":"12.50"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Empty(t, decode(t, rr)["categories"])
}

func TestRecordEntryRejections(t *testing.T) {
	srv := newTestServer(t)
	tok := login(t, srv, "john", "john123")

	cases := []struct {
		name string
		body string
		code int
	}{
		{"unknown user", `{"userId":999,"amount":10,"description":"X"}`, http.StatusNotFound},
		{"zero amount", `{"userId":1,"amount":0,"description":"X"}`, http.StatusBadRequest},
		{"negative amount", `{"userId":1,"amount":-5}`, http.StatusBadRequest},
		{"missing amount", `{"userId":1}`, http.StatusBadRequest},
		{"missing user", `{"amount":10}`, http.StatusBadRequest},
		{"non-numeric user", `{"userId":"abc","amount":10}`, http.StatusBadRequest},
		{"zero user", `{"userId":0,"amount":10}`, http.StatusBadRequest},
		{"amount over limit", `{"userId":1,"amount":90000000000000000}`, http.StatusBadRequest},
		{"non-ascii digit", `{"userId":1,"amount":"1.٣"}`, http.StatusBadRequest},
		{"blank category", `{"userId":1,"amount":10,"description":"  "}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/users/income", tok, tc.body)
			assert.Equal(t, tc.code, rr.Code, rr.Body.String())
			assert.Equal(t, StatusDomainError, decode(t, rr)["status"])
		})
	}

	rr := do(t, srv, http.MethodGet, "/users/1", tok, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	b := decode(t, rr)["budgets"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 5000, b["totalIncome"], "rejected entries leave the totals alone")
}

func TestRoleGates(t *testing.T) {
	srv := newTestServer(t)
	user := login(t, srv, "john", "john123")
	manager := login(t, srv, "manager", "manager")
	admin := login(t, srv, "admin", "admin")

	rr := do(t, srv, http.MethodPut, "/users/2", user, `{"name":"Tim","email":"tim2@example.com"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, StatusForbidden, decode(t, rr)["status"])

	rr = do(t, srv, http.MethodPut, "/users/2", manager, `{"name":"Tim","email":"tim2@example.com"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, srv, http.MethodPut, "/users/2", admin, `{"name":"Timothy","email":"tim2@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Timothy", decode(t, rr)["name"])

	rr = do(t, srv, http.MethodDelete, "/users/2", user, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/users/2", manager, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "User deleted successfully", decode(t, rr)["message"])

	rr = do(t, srv, http.MethodGet, "/users/2", admin, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, StatusDomainError, decode(t, rr)["status"])

	rr = do(t, srv, http.MethodDelete, "/users/2", admin, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateUser(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv, "admin", "admin")

	body := `{"name":"Ann","email":"ann@example.com","username":"ann","password":"secret","role":"manager"}`
	rr := do(t, srv, http.MethodPut, "/users", admin, body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "manager", decode(t, rr)["role"])

	rr = do(t, srv, http.MethodPut, "/users", admin, body)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	env := decode(t, rr)
	assert.Equal(t, StatusApplicationError, env["status"])
	assert.Contains(t, env["message"], "already")

	rr = do(t, srv, http.MethodPut, "/users", admin, `{"name":"Bob","email":"bob@example.com","username":"bob","password":"x","role":"root"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	login(t, srv, "ann", "secret")
}

func TestSignup(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/users/signup", "", `{"name":"Eve","email":"eve@example.com","username":"eve","password":"pw","role":"admin"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "user", decode(t, rr)["role"])
}

func TestSignupPasswordHandling(t *testing.T) {
	srv := newTestServer(t)

	long := strings.Repeat("x", 80)
	rr := do(t, srv, http.MethodPost, "/users/signup", "", `{"name":"Eve","email":"eve@example.com","username":"eve","password":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Equal(t, StatusDomainError, decode(t, rr)["status"])

	rr = do(t, srv, http.MethodPost, "/users/signup", "", `{"name":"Sam","email":"sam@example.com","username":"sam","password":"  secret  "}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/users/login", "", `{"username":"sam","password":"secret"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "password is compared as sent")
	login(t, srv, "sam", "  secret  ")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginRateLimited(t *testing.T) {
	srv := newTestServer(t)
	limited := NewServer(Config{LoginRateLimit: 2}, Deps{Users: srv.users, Budgets: srv.budgets, Tokens: auth.NewIssuer(testSecret, 0)})
	t.Cleanup(func() { limited.limiter.Stop() })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, limited, http.MethodPost, "/users/login", "", `{"username":"john","password":"bad"}`).Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}
