package http

import (
	"net/http"

	"budgettracker/internal/core"
	"budgettracker/internal/log"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}
	username := p.Get("username")
	password, _ := p.Raw("password")
	if username == "" || password == "" {
		writeError(w, r, log.OpLogin, core.ErrMissingFields)
		return
	}

	res, err := s.users.Login(r.Context(), username, password)
	if err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	nu, err := parseNewUser(r)
	if err != nil {
		writeError(w, r, log.OpSignup, err)
		return
	}
	u, err := s.users.Signup(r.Context(), nu)
	if err != nil {
		writeError(w, r, log.OpSignup, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(u).Write(w)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(users).Write(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

// handleCreateUser registers an account with an explicit role.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	nu, err := parseNewUser(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	u, err := s.users.Create(r.Context(), nu)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User created by administrator",
		log.FieldUserID, u.ID,
		log.FieldUsername, u.Username,
		log.FieldRole, u.Role)
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	u, err := s.users.Update(r.Context(), id, core.UserUpdate{
		Name:  p.Get("name"),
		Email: p.Get("email"),
	})
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("User deleted successfully").Write(w)
}

func parseNewUser(r *http.Request) (core.NewUser, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.NewUser{}, err
	}
	role, err := core.ParseRole(p.Get("role"))
	password, _ := p.Raw("password")
	if err != nil {
		return core.NewUser{}, err
	}
	return core.NewUser{
		Name:     p.Get("name"),
		Email:    p.Get("email"),
		Username: p.Get("username"),
		Password: password,
		Role:     role,
	}, nil
}
