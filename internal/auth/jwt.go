package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"soomhub/market/internal/utils"
)

// TokenType separates short lived access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const issuer = "soomhub"

var ErrWrongTokenType = errors.New("wrong token type")

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID    string    `json:"user_id"`
	IsAdmin   bool      `json:"is_admin"`
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// ParsedUserID returns the subject as a SixID.
func (c *Claims) ParsedUserID() (utils.SixID, error) {
	return utils.ParseSixID(c.UserID)
}

// TokenPair is what login and refresh hand back to clients.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// GenerateJWT signs a token of the given type. Every token gets a unique id (jti) so it can be revoked.
func GenerateJWT(userID utils.SixID, isAdmin bool, tokenType TokenType, secretKey string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID:    userID.String(),
		IsAdmin:   isAdmin,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, expiresAt, nil
}

// GenerateTokenPair issues a fresh access and refresh token for a user.
func GenerateTokenPair(userID utils.SixID, isAdmin bool, secretKey string, accessTTL, refreshTTL time.Duration) (*TokenPair, error) {
	access, accessExp, err := GenerateJWT(userID, isAdmin, TokenAccess, secretKey, accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := GenerateJWT(userID, isAdmin, TokenRefresh, secretKey, refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ValidateJWT verifies signature, expiry, issuer and token type, and returns the claims.
func ValidateJWT(tokenString, secretKey string, want TokenType) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid JWT")
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.TokenType, want)
	}
	if claims.ID == "" {
		return nil, errors.New("token has no id")
	}
	return claims, nil
}
