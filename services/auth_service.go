package services

import (
	"chat-fanout/auth"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"chat-fanout/repositories"
	"context"
	"fmt"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Token, error)
	Login(ctx context.Context, req auth.LoginRequest) (Token, error)
}

// TokenIssuer signs gateway tokens.
type TokenIssuer interface {
	Issue(userID domain.UserID) (string, error)
}

type Token string

type AuthService struct {
	users  repositories.IUserRepository
	tokens TokenIssuer
}

func NewAuthService(users repositories.IUserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register validates the request before any hashing, stores the new user
// and returns its first token.
func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Token, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return "", err
	}
	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}
	user, err := s.users.CreateUser(ctx, domain.UserID(req.UserID), req.Username, hashed)
	if err != nil {
		return "", err
	}
	return s.issue(user.ID)
}

// Login answers the same error for an unknown user and a wrong password.
func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Token, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return "", err
	}
	hash, err := s.users.Credentials(ctx, domain.UserID(req.UserID))
	if err != nil || hash == "" {
		return "", errors.ErrInvalidCredentials
	}
	match, err := auth.ComparePassword(req.Password, hash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}
	return s.issue(domain.UserID(req.UserID))
}

func (s *AuthService) issue(userID domain.UserID) (Token, error) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
