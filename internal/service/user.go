package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"threadboard/internal/model"
	"threadboard/internal/repository"
)

// UserService handles business logic for user operations
type UserService struct {
	repo repository.UserRepository
	log  *zap.Logger
}

func NewUserService(repo repository.UserRepository, log *zap.Logger) *UserService {
	return &UserService{
		repo: repo,
		log:  log.Named("user"),
	}
}

// Register creates a new user account.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	email := strings.TrimSpace(req.Email)
	nickname, nicknameLen := cleanText(req.Nickname)

	switch {
	case email == "" || len(email) > model.MaxEmailLength:
		return nil, fmt.Errorf("%w: email must be 1-%d characters", model.ErrInvalidRegistration, model.MaxEmailLength)
	case !validEmail(email):
		return nil, fmt.Errorf("%w: malformed email", model.ErrInvalidRegistration)
	case nicknameLen == 0 || nicknameLen > model.MaxNicknameLength:
		return nil, fmt.Errorf("%w: nickname must be 1-%d characters", model.ErrInvalidRegistration, model.MaxNicknameLength)
	case utf8.RuneCountInString(req.Password) < model.MinPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrInvalidRegistration, model.MinPasswordLength)
	}

	// Check if email already exists
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailExists
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:          email,
		Nickname:       nickname,
		PasswordHashed: string(hashedPassword),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if err == model.ErrEmailExists {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login authenticates a user with email and password. An unknown email is
// reported as ErrUserNotFound, a wrong password as ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password))
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
