package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgettracker/internal/auth"
	"budgettracker/internal/core"
	"budgettracker/internal/log"
	"budgettracker/internal/storage"
)

// UserStore is the persistence surface UserService needs.
type UserStore interface {
	ListUsers(ctx context.Context) ([]core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	UpdateUser(ctx context.Context, id int64, upd core.UserUpdate) (core.User, error)
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int64, error)
}

type TokenIssuer interface {
	Issue(username string, role core.Role) (auth.SignedToken, error)
}

type UserServiceConfig struct {
	BcryptCost  int
	AllowSignup bool
}

// UserService owns user records: administration, signup and the credential check behind login.
type UserService struct {
	store  UserStore
	tokens TokenIssuer
	config UserServiceConfig
	logger *log.Logger
}

func NewUserService(store UserStore, tokens TokenIssuer, config UserServiceConfig, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.Discard()
	}
	return &UserService{
		store:  store,
		tokens: tokens,
		config: config,
		logger: logger.WithComponent(log.ComponentUser),
	}
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	FullName  string    `json:"fullname"`
	Role      core.Role `json:"role"`
	ExpiresAt time.Time `json:"-"`
}

func (s *UserService) List(ctx context.Context) ([]core.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (core.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return core.User{}, mapUserErr(err)
	}
	return u, nil
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.store.CountUsers(ctx)
}

// Create validates nu, hashes its password and stores it with the requested role.
func (s *UserService) Create(ctx context.Context, nu core.NewUser) (core.User, error) {
	if err := nu.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(nu.Password, s.config.BcryptCost)
	if err != nil {
		return core.User{}, err
	}

	u, err := s.store.CreateUser(ctx, core.User{
		Name:         nu.Name,
		Email:        nu.Email,
		Username:     nu.Username,
		PasswordHash: hash,
		Role:         nu.Role,
	})
	if err != nil {
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "User created",
		log.FieldUserID, u.ID,
		log.FieldUsername, u.Username,
		log.FieldRole, string(u.Role))
	return u, nil
}

// Signup is self-service registration; the role is always RoleUser.
func (s *UserService) Signup(ctx context.Context, nu core.NewUser) (core.User, error) {
	if !s.config.AllowSignup {
		return core.User{}, core.ErrSignupDisabled
	}
	nu.Role = core.RoleUser
	return s.Create(ctx, nu)
}

func (s *UserService) Update(ctx context.Context, id int64, upd core.UserUpdate) (core.User, error) {
	if err := upd.Validate(); err != nil {
		return core.User{}, err
	}
	u, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return core.User{}, mapUserErr(err)
	}
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return mapUserErr(err)
	}
	s.logger.InfoContext(ctx, "User deleted", log.FieldUserID, id)
	return nil
}

// Verify checks a username/password pair. An unknown user and a wrong
// password both yield core.ErrInvalidCredentials.
func (s *UserService) Verify(ctx context.Context, username, password string) (core.Identity, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		auth.BurnPasswordCheck(password)
		return core.Identity{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.Identity{}, fmt.Errorf("verify credentials: %w", err)
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return core.Identity{}, core.ErrInvalidCredentials
	}
	return core.Identity{UserID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}, nil
}

func (s *UserService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	id, err := s.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			s.logger.WarnContext(ctx, "Login rejected", log.FieldUsername, username)
		}
		return LoginResult{}, err
	}

	tok, err := s.tokens.Issue(id.Username, id.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "Login succeeded", log.FieldUserID, id.UserID, log.FieldUsername, id.Username)
	return LoginResult{
		ID:        id.UserID,
		Username:  id.Username,
		Token:     tok.Value,
		FullName:  id.Name,
		Role:      id.Role,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", core.ErrUserNotFound, err)
	}
	return err
}
