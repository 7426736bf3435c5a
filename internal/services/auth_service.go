package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest carries a new account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,numeric,min=7,max=20"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest carries phone/password credentials.
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
	}
}

// RegisterUser creates a customer account. The phone number must not be
// registered yet.
func (s *AuthService) RegisterUser(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.createUser(ctx, req, models.RoleCustomer)
}

func (s *AuthService) createUser(ctx context.Context, req RegisterRequest, role string) (*models.User, error) {
	phone := strings.TrimSpace(req.Phone)
	if _, err := s.userRepo.GetByPhone(ctx, phone); err == nil {
		return nil, fmt.Errorf("phone '%s' already registered: %w", phone, ErrAlreadyExists)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, storeErr(err, "failed to look up phone %s", phone)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Phone:    phone,
		Email:    strings.TrimSpace(req.Email),
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, storeErr(err, "failed to register user")
	}
	return user, nil
}

// LoginUser authenticates by phone and returns a signed JWT.
func (s *AuthService) LoginUser(ctx context.Context, phone, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByPhone(ctx, strings.TrimSpace(phone))
	if errors.Is(err, repositories.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, storeErr(err, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     now.Add(s.tokenDurat).Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, user, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// EnsureAdmin creates the bootstrap admin account unless the phone number
// is already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, phone, password string) error {
	if phone == "" || password == "" {
		return nil
	}
	_, err := s.createUser(ctx, RegisterRequest{Name: "Administrator", Phone: phone, Password: password}, models.RoleAdmin)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("Admin account %s created", phone)
	return nil
}
