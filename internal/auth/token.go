package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"budgettracker/internal/core"
)

// DefaultTokenTTL is the validity window of an issued token.
const DefaultTokenTTL = 8 * time.Hour

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and expiry.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired wraps ErrTokenInvalid so callers can tell expiry apart.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
)

// Claims is the payload carried by every bearer token.
type Claims struct {
	Username string    `json:"username"`
	Role     core.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SignedToken is a compact JWS plus the timestamps encoded in it.
type SignedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 tokens with a symmetric key.
type Issuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type IssuerOption func(*Issuer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret string, ttl time.Duration, opts ...IssuerOption) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	i := &Issuer{
		key:    []byte(secret),
		ttl:    ttl,
		issuer: "budgettracker",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue signs a token for username valid for the configured TTL.
func (i *Issuer) Issue(username string, role core.Role) (SignedToken, error) {
	issuedAt := i.now().Truncate(time.Second)
	return i.sign(username, role, issuedAt, issuedAt.Add(i.ttl))
}

func (i *Issuer) sign(username string, role core.Role, issuedAt, expiresAt time.Time) (SignedToken, error) {
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return SignedToken{Value: value, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Username == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
