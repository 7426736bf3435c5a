package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
	"dryfruits/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	args := m.Called(phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

var errNoUser = fmt.Errorf("user: %w", repositories.ErrNotFound)

func TestAuthService_RegisterUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "test_jwt_secret")

	req := services.RegisterRequest{Name: "Asha", Phone: "9876543210", Email: "asha@example.com", Password: "password123"}

	mockRepo.On("GetByPhone", req.Phone).Return(nil, errNoUser).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()
	user, err := authService.RegisterUser(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEqual(t, req.Password, user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)))
	mockRepo.AssertExpectations(t)

	// phone already registered
	mockRepo.On("GetByPhone", req.Phone).Return(&models.User{ID: "1"}, nil).Once()
	_, err = authService.RegisterUser(ctx, req)
	assert.ErrorIs(t, err, services.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "phone '9876543210' already registered")
	mockRepo.AssertExpectations(t)

	// validation
	_, err = authService.RegisterUser(ctx, services.RegisterRequest{Name: "A", Phone: "abc", Password: "password123"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = authService.RegisterUser(ctx, services.RegisterRequest{Name: "A", Phone: "9876543210", Password: "123"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestAuthService_LoginUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	testJWTSecret := "test_jwt_secret"
	authService := services.NewAuthService(mockRepo, testJWTSecret)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Name:     "Asha",
		Phone:    "9876543210",
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
	}

	mockRepo.On("GetByPhone", user.Phone).Return(user, nil).Once()
	token, loggedIn, err := authService.LoginUser(ctx, "9876543210", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user, loggedIn)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, models.RoleAdmin, claims["role"])
	mockRepo.AssertExpectations(t)

	// wrong password
	mockRepo.On("GetByPhone", user.Phone).Return(user, nil).Once()
	_, _, err = authService.LoginUser(ctx, "9876543210", "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// unknown phone gives the same answer
	mockRepo.On("GetByPhone", "0000000").Return(nil, errNoUser).Once()
	_, _, err = authService.LoginUser(ctx, "0000000", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	testJWTSecret := "test_jwt_secret"
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"role":    models.RoleCustomer,
		"exp":     jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte(testJWTSecret))

	claims, err := authService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", claims["user_id"])

	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorContains(t, err, "invalid token")

	otherSecret, _ := token.SignedString([]byte("other"))
	_, err = authService.ValidateToken(otherSecret)
	assert.ErrorContains(t, err, "invalid token")

	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredTokenString)
	assert.ErrorContains(t, err, "invalid token")
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	authService := services.NewAuthService(repositories.NewGORMUserRepository(openTestDB(t)), "secret")

	require.NoError(t, authService.EnsureAdmin(ctx, "9000000001", "admin-pass"))
	require.NoError(t, authService.EnsureAdmin(ctx, "9000000001", "admin-pass"))
	require.NoError(t, authService.EnsureAdmin(ctx, "", ""))

	_, user, err := authService.LoginUser(ctx, "9000000001", "admin-pass")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
}
