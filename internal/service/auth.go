package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/gitpoints/internal/auth"
	"github.com/sakif/gitpoints/internal/model"
	"github.com/sakif/gitpoints/internal/repository"
)

// AuthService turns a completed GitHub login into a user record and a
// session token.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (store)
//	                               ↘ TokenService (JWT)
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	now    func() time.Time
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		now:    time.Now,
		logger: logger.With(slog.String("component", "auth")),
	}
}

// LoginResult is what the callback handler needs to finish the redirect.
type LoginResult struct {
	Username     string
	SessionToken string
}

// Login upserts the record for identity and issues a session token.
//
// WHY UPSERT?
// The first login creates the record with every counter at zero. Later
// logins refresh only id, displayName, avatarUrl, accessToken and lastLogin,
// so points and check-ins earned in between survive.
func (s *AuthService) Login(ctx context.Context, identity *auth.Identity) (*LoginResult, error) {
	if identity == nil || identity.Login == "" {
		return nil, fmt.Errorf("service/auth: identity must have a login")
	}

	displayName := identity.Name
	if displayName == "" {
		displayName = identity.Login
	}

	profile := model.LoginProfile{
		ID:          identity.ID,
		Username:    identity.Login,
		DisplayName: displayName,
		AvatarURL:   identity.AvatarURL,
		AccessToken: identity.AccessToken,
		LoginAt:     s.now().UTC(),
	}
	if err := s.users.UpsertProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("service/auth: upserting %s: %w", identity.Login, err)
	}

	token, err := s.tokens.Generate(identity.Login)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %s: %w", identity.Login, err)
	}

	s.logger.Info("user logged in via GitHub",
		slog.String("username", identity.Login),
		slog.String("githubID", identity.ID),
	)
	return &LoginResult{Username: identity.Login, SessionToken: token}, nil
}
