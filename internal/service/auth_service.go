package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Wizard2999/el-super-cafe-backend/internal/config"
	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
)

var errBadCredentials = errors.New("credenciales invalidas")

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	// PinLogin is the shared-device quick switch: the register stays
	// unlocked and operators swap with their 4-digit PIN.
	PinLogin(ctx context.Context, req dto.PinLoginRequest) (*dto.LoginResponse, error)
}

type authService struct {
	users repository.UserRepository
	cfg   *config.Config
}

func NewAuthService(users repository.UserRepository, cfg *config.Config) AuthService {
	return &authService{users: users, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}
	return s.issue(user)
}

func (s *authService) PinLogin(ctx context.Context, req dto.PinLoginRequest) (*dto.LoginResponse, error) {
	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, errBadCredentials
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil || !user.IsActive {
		return nil, errBadCredentials
	}
	if user.PinCode == nil || *user.PinCode != req.Pin {
		return nil, errBadCredentials
	}
	return s.issue(user)
}

func (s *authService) issue(user *model.User) (*dto.LoginResponse, error) {
	expiry := time.Duration(s.cfg.JWTExpirationHours) * time.Hour
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"name":     user.Name,
		"role":     user.Role,
		"exp":      time.Now().Add(expiry).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: signed,
		User: dto.UserResponse{
			ID:       user.ID.String(),
			Name:     user.Name,
			Username: user.Username,
			Role:     user.Role,
		},
	}, nil
}
