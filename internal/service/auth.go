package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"threadboard/internal/config"
	"threadboard/internal/model"
)

// AuthService issues and verifies stateless HS256 tokens. The subject claim
// carries the user id and "typ" tells access and refresh tokens apart.
type AuthService struct {
	config *config.Config
	now    func() time.Time
}

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		config: cfg,
		now:    time.Now,
	}
}

// GenerateTokenPair issues an access token and a refresh token for userID.
func (s *AuthService) GenerateTokenPair(userID int64) (*model.TokenPair, error) {
	accessToken, err := s.sign(userID, model.TokenTypeAccess, s.config.AccessTokenMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.sign(userID, model.TokenTypeRefresh, s.config.RefreshTokenMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *AuthService) Refresh(refreshToken string) (*model.TokenPair, int64, error) {
	userID, err := s.ParseToken(refreshToken, model.TokenTypeRefresh)
	if err != nil {
		return nil, 0, err
	}

	accessToken, err := s.sign(userID, model.TokenTypeAccess, s.config.AccessTokenMaxAge)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &model.TokenPair{
		AccessToken: accessToken,
		ExpiresIn:   s.config.AccessTokenMaxAge,
	}, userID, nil
}

// ParseToken validates a token of the given type and returns its user id.
func (s *AuthService) ParseToken(tokenString, tokenType string) (int64, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, model.ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Type != tokenType {
		return 0, model.ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, model.ErrTokenInvalid
	}
	return userID, nil
}

func (s *AuthService) sign(userID int64, tokenType string, maxAge int) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(maxAge) * time.Second)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}
