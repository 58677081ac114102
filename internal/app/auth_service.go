package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ragdesk/internal/model"
	"ragdesk/internal/pkg/jwtutil"
	"ragdesk/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

const minPasswordLength = 8

type AuthService struct {
	userRepo      *repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

type LoginInput struct {
	Username string
	Password string
}

type CreateUserInput struct {
	Username string
	Password string
	IsAdmin  bool
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(userRepo *repository.UserRepository, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) CreateUser(input CreateUserInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || len(password) < minPasswordLength {
		return nil, ErrInvalidInput
	}

	existing, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}
	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      input.IsAdmin,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureAdmin creates the admin account on first start. An existing user of
// that name is promoted to admin but keeps its password.
func (s *AuthService) EnsureAdmin(username, password string) (*model.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, false, nil
	}
	existing, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if !existing.IsAdmin {
			existing.IsAdmin = true
			if err := s.userRepo.Update(existing); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}
	user, err := s.CreateUser(CreateUserInput{Username: username, Password: password, IsAdmin: true})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.userRepo.GetByID(id)
}
