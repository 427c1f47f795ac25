package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"soomhub/market/internal/auth"
	"soomhub/market/internal/cache"
	"soomhub/market/internal/config"
	"soomhub/market/internal/models"
)

// ErrInvalidToken covers malformed, expired, revoked and wrong-type tokens.
var ErrInvalidToken = errors.New("invalid or revoked token")

// IAuthService issues and revokes token pairs.
type IAuthService interface {
	Login(ctx context.Context, email, password string) (*auth.TokenPair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, access *auth.Claims, refreshToken string) error
	Authorize(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type authService struct {
	users    IUserService
	denylist cache.TokenDenylist
	cfg      *config.Config
}

func NewAuthService(users IUserService, denylist cache.TokenDenylist, cfg *config.Config) IAuthService {
	return &authService{users: users, denylist: denylist, cfg: cfg}
}

func (s *authService) issue(user *models.User) (*auth.TokenPair, error) {
	return auth.GenerateTokenPair(user.ID, user.IsAdmin, s.cfg.JwtSecret, s.cfg.JwtTTL, s.cfg.JwtRefreshTTL)
}

func (s *authService) Login(ctx context.Context, email, password string) (*auth.TokenPair, *models.User, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh rotates the pair: the presented refresh token is revoked and cannot be reused.
// The admin flag is re-read from the user record.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.validate(ctx, refreshToken, auth.TokenRefresh)
	if err != nil {
		return nil, err
	}
	userID, err := claims.ParsedUserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Logout revokes the access token and, when given and valid, the refresh token of the same user.
func (s *authService) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	if err := s.denylist.Revoke(ctx, access.ID, access.ExpiresAt.Time); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	refresh, err := auth.ValidateJWT(refreshToken, s.cfg.JwtSecret, auth.TokenRefresh)
	if err != nil {
		log.Printf("Warning: logout for user %s carried an unusable refresh token: %v", access.UserID, err)
		return nil
	}
	if refresh.UserID != access.UserID {
		return fmt.Errorf("%w: refresh token belongs to another user", ErrForbidden)
	}
	return s.denylist.Revoke(ctx, refresh.ID, refresh.ExpiresAt.Time)
}

// Authorize validates an access token for the auth middleware.
func (s *authService) Authorize(ctx context.Context, accessToken string) (*auth.Claims, error) {
	return s.validate(ctx, accessToken, auth.TokenAccess)
}

func (s *authService) validate(ctx context.Context, token string, want auth.TokenType) (*auth.Claims, error) {
	claims, err := auth.ValidateJWT(token, s.cfg.JwtSecret, want)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
