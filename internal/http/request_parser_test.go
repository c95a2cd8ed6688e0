package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(req)
	require.NoError(t, p.Parse())
	return p
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(t, "application/json", `{"userId": 7, "amount": 12.345678901234567, "description": "  Rent\u0007 ", "note": null}`)

	assert.True(t, p.IsJSON())
	id, ok := p.GetInt64("userId")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "12.345678901234567", p.Get("amount"), "numbers keep their literal text")
	assert.Equal(t, "Rent", p.Get("description"))

	_, present := p.Lookup("note")
	assert.False(t, present, "null counts as absent")
	_, present = p.Lookup("missing")
	assert.False(t, present)
}

func TestRequestBodyParser_JSONWithoutContentType(t *testing.T) {
	p := newParser(t, "", `{"username":"john"}`)
	assert.Equal(t, "john", p.Get("username"))
}

func TestRequestBodyParser_RawKeepsValueAsSent(t *testing.T) {
	p := newParser(t, "application/json", `{"password":"  pa\u0007ss  "}`)
	raw, ok := p.Raw("password")
	assert.True(t, ok)
	assert.Equal(t, "  pa\ass  ", raw)
	assert.Equal(t, "pass", p.Get("password"))

	f := newParser(t, "application/x-www-form-urlencoded", "password=+x+")
	raw, _ = f.Raw("password")
	assert.Equal(t, " x ", raw)
}

func TestRequestBodyParser_Form(t *testing.T) {
	p := newParser(t, "application/x-www-form-urlencoded", "username=john&password=john123&userId=abc")

	assert.False(t, p.IsJSON())
	assert.Equal(t, "john", p.Get("username"))
	assert.Equal(t, "john123", p.Get("password"))
	_, ok := p.GetInt64("userId")
	assert.False(t, ok)
}

func TestRequestBodyParser_GetInt64RejectsNonPositive(t *testing.T) {
	p := newParser(t, "application/json", `{"a": 0, "b": -3, "c": 1.5, "d": "42"}`)
	for _, key := range []string{"a", "b", "c"} {
		_, ok := p.GetInt64(key)
		assert.False(t, ok, key)
	}
	n, ok := p.GetInt64("d")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
}

func TestRequestBodyParser_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":`))
	req.Header.Set("Content-Type", "application/json")
	p := NewRequestBodyParser(req)

	err := p.Parse()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMalformedBody))
	assert.Equal(t, err, p.Parse(), "parse result is cached")
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := `{"x":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := NewRequestBodyParser(req).Parse()
	assert.ErrorIs(t, err, errMalformedBody)
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	p := newParser(t, "application/json", "")
	_, ok := p.Lookup("anything")
	assert.False(t, ok)
}

func TestPathID(t *testing.T) {
	mux := http.NewServeMux()
	var got int64
	var gotErr error
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = PathID(r, "id")
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/12", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(12), got)

	for _, path := range []string{"/users/abc", "/users/0", "/users/-4"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		assert.Error(t, gotErr, path)
	}
}
