// Package auth handles operator logins, sessions and user accounts.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"safemaint-backend/config"
	"safemaint-backend/internal/model"
	"safemaint-backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already in use")
	ErrInvalidUser        = errors.New("invalid user")
)

// Service authenticates users against the users table and, as a fallback,
// the bootstrap administrator from the configuration.
type Service struct {
	cfg      config.AuthConfig
	users    *store.Repository[model.User]
	sessions SessionStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the auth service.
func NewService(cfg config.AuthConfig, users *store.Repository[model.User], sessions SessionStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}
}

// SeedAdmin creates the bootstrap administrator when the users table is
// empty. The users table keeps it even if the backend has no users.
func (s *Service) SeedAdmin(ctx context.Context) error {
	if s.cfg.AdminPassword == "" || len(s.users.List()) > 0 {
		return nil
	}
	_, err := s.SaveUser(ctx, UserInput{
		Username: s.cfg.AdminUsername,
		Name:     s.cfg.AdminName,
		Password: s.cfg.AdminPassword,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("bootstrap administrator seeded", zap.String("username", s.cfg.AdminUsername))
	return nil
}

// Login checks the credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	var sess Session
	if u, ok := s.findByUsername(username); ok {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			s.logger.Info("login rejected", zap.String("username", username))
			return Session{}, ErrInvalidCredentials
		}
		sess = Session{UserID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
	} else if s.isBootstrapAdmin(username, password) {
		sess = Session{UserID: "admin", Username: s.cfg.AdminUsername, Name: s.cfg.AdminName, Role: model.RoleAdmin}
	} else {
		s.logger.Info("login rejected", zap.String("username", username))
		return Session{}, ErrInvalidCredentials
	}

	now := s.now()
	sess.Token = uuid.NewString()
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.cfg.SessionTTL)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	s.logger.Info("user logged in", zap.String("username", sess.Username), zap.String("role", string(sess.Role)))
	return sess, nil
}

func (s *Service) isBootstrapAdmin(username, password string) bool {
	if s.cfg.AdminPassword == "" || !strings.EqualFold(username, s.cfg.AdminUsername) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1
}

// Authenticate returns the session bound to token.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}
	return s.sessions.Lookup(ctx, token)
}

// Logout revokes the session.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// UserInput creates or updates an account. An empty Password on update
// keeps the current one.
type UserInput struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// SaveUser creates or updates an account and returns it without its
// password hash.
func (s *Service) SaveUser(ctx context.Context, in UserInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return model.User{}, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	switch in.Role {
	case "":
		in.Role = model.RoleOperator
	case model.RoleAdmin, model.RoleSupervisor, model.RoleOperator:
	default:
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, in.Role)
	}
	if other, ok := s.findByUsername(in.Username); ok && other.ID != in.ID {
		return model.User{}, ErrUsernameTaken
	}

	u := model.User{ID: in.ID, CreatedAt: s.now()}
	if in.ID != "" {
		if existing, err := s.users.Get(in.ID); err == nil {
			u = existing
		}
	} else {
		u.ID = uuid.NewString()
	}
	u.Username = in.Username
	u.Name = in.Name
	u.Role = in.Role

	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return model.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	if u.PasswordHash == "" {
		return model.User{}, fmt.Errorf("%w: password is required", ErrInvalidUser)
	}

	if err := s.users.Save(ctx, u); err != nil {
		return model.User{}, err
	}
	return Redact(u), nil
}

// ListUsers returns every account without password hashes.
func (s *Service) ListUsers() []model.User {
	users := s.users.List()
	for i := range users {
		users[i] = Redact(users[i])
	}
	return users
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.users.Get(id); err != nil {
		return err
	}
	_, err := s.users.Delete(ctx, id)
	return err
}

func (s *Service) findByUsername(username string) (model.User, bool) {
	for _, u := range s.users.List() {
		if strings.EqualFold(u.Username, username) {
			return u, true
		}
	}
	return model.User{}, false
}

// Redact clears the password hash.
func Redact(u model.User) model.User {
	u.PasswordHash = ""
	return u
}
