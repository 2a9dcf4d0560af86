package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"threadboard/internal/model"
)

// =============================================================================
// MOCK REPOSITORY
// =============================================================================

type mockUserRepository struct {
	createFn        func(ctx context.Context, user *model.User) error
	getByIDFn       func(ctx context.Context, id int64) (*model.User, error)
	getByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	existsByEmailFn func(ctx context.Context, email string) (bool, error)

	// Track calls for assertions
	createCalls []*model.User
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFn != nil {
		return m.existsByEmailFn(ctx, email)
	}
	return false, nil
}

// =============================================================================
// REGISTER TESTS
// =============================================================================

func TestUserService_Register_Success(t *testing.T) {
	mockRepo := &mockUserRepository{
		createFn: func(ctx context.Context, user *model.User) error {
			user.ID = 1
			return nil
		},
	}
	svc := NewUserService(mockRepo, zap.NewNop())

	req := &model.RegisterRequest{
		Email:    "ann@test.io",
		Nickname: "ann",
		Password: "securepassword",
	}

	user, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if user.ID != 1 || user.Email != req.Email || user.Nickname != req.Nickname {
		t.Errorf("user = %+v, want id 1 with request fields", user)
	}

	// Verify password was hashed
	if user.PasswordHashed == req.Password {
		t.Error("password should be hashed, not stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		t.Error("password hash should be valid bcrypt hash")
	}

	if user.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	if len(mockRepo.createCalls) != 1 {
		t.Errorf("Create called %d times, want 1", len(mockRepo.createCalls))
	}
}

func TestUserService_Register_EmailExists(t *testing.T) {
	mockRepo := &mockUserRepository{
		existsByEmailFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
	}
	svc := NewUserService(mockRepo, zap.NewNop())

	user, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "ann@test.io",
		Nickname: "ann",
		Password: "password123",
	})

	if !errors.Is(err, model.ErrEmailExists) {
		t.Errorf("error = %v, want %v", err, model.ErrEmailExists)
	}
	if user != nil {
		t.Error("user should be nil when registration fails")
	}
	if len(mockRepo.createCalls) != 0 {
		t.Error("Create should not be called when email exists")
	}
}

func TestUserService_Register_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{"empty email", model.RegisterRequest{Email: "", Nickname: "ann", Password: "password123"}},
		{"malformed email", model.RegisterRequest{Email: "not-an-email", Nickname: "ann", Password: "password123"}},
		{"long email", model.RegisterRequest{Email: strings.Repeat("a", 25) + "@test.io", Nickname: "ann", Password: "password123"}},
		{"empty nickname", model.RegisterRequest{Email: "ann@test.io", Nickname: " ", Password: "password123"}},
		{"long nickname", model.RegisterRequest{Email: "ann@test.io", Nickname: "annabellelee", Password: "password123"}},
		{"short password", model.RegisterRequest{Email: "ann@test.io", Nickname: "ann", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mockUserRepository{}
			svc := NewUserService(mockRepo, zap.NewNop())

			_, err := svc.Register(context.Background(), &tt.req)

			if !errors.Is(err, model.ErrInvalidRegistration) {
				t.Errorf("error = %v, want %v", err, model.ErrInvalidRegistration)
			}
			if len(mockRepo.createCalls) != 0 {
				t.Error("Create should not be called for invalid input")
			}
		})
	}
}

func TestUserService_Register_CheckEmailError(t *testing.T) {
	dbError := errors.New("database connection failed")
	mockRepo := &mockUserRepository{
		existsByEmailFn: func(ctx context.Context, email string) (bool, error) {
			return false, dbError
		},
	}
	svc := NewUserService(mockRepo, zap.NewNop())

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "ann@test.io",
		Nickname: "ann",
		Password: "password123",
	})

	if !errors.Is(err, dbError) {
		t.Errorf("error should wrap original database error, got %v", err)
	}
}

func TestUserService_Register_CreateRace(t *testing.T) {
	mockRepo := &mockUserRepository{
		createFn: func(ctx context.Context, user *model.User) error {
			return model.ErrEmailExists
		},
	}
	svc := NewUserService(mockRepo, zap.NewNop())

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "ann@test.io",
		Nickname: "ann",
		Password: "password123",
	})

	if !errors.Is(err, model.ErrEmailExists) {
		t.Errorf("error = %v, want %v", err, model.ErrEmailExists)
	}
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestUserService_Login(t *testing.T) {
	validPassword := "correctpassword"
	validHash, _ := bcrypt.GenerateFromPassword([]byte(validPassword), bcrypt.MinCost)

	testUser := &model.User{
		ID:             1,
		Email:          "ann@test.io",
		PasswordHashed: string(validHash),
	}

	tests := []struct {
		name       string
		password   string
		getByEmail func(ctx context.Context, email string) (*model.User, error)
		wantErr    error
	}{
		{
			name:     "successful login",
			password: validPassword,
			getByEmail: func(ctx context.Context, email string) (*model.User, error) {
				return testUser, nil
			},
		},
		{
			name:     "user not found",
			password: "anypassword",
			getByEmail: func(ctx context.Context, email string) (*model.User, error) {
				return nil, model.ErrUserNotFound
			},
			wantErr: model.ErrUserNotFound,
		},
		{
			name:     "wrong password",
			password: "wrongpassword",
			getByEmail: func(ctx context.Context, email string) (*model.User, error) {
				return testUser, nil
			},
			wantErr: model.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewUserService(&mockUserRepository{getByEmailFn: tt.getByEmail}, zap.NewNop())

			user, err := svc.Login(context.Background(), &model.LoginRequest{
				Email:    " ann@test.io ",
				Password: tt.password,
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				if user != nil {
					t.Error("expected nil user")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.ID != testUser.ID {
				t.Errorf("user id = %d, want %d", user.ID, testUser.ID)
			}
		})
	}
}
