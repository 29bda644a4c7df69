package auth

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "Correct-Horse-42!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong-password", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword(password, "plain")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"alice", "Alice", "ComplexPass123!"}, false},
		{"Missing user id", RegisterRequest{"", "Alice", "ComplexPass123!"}, true},
		{"User id with separator", RegisterRequest{"user:alice", "Alice", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"alice", "Alice", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"alice", "Alice", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"alice", "Alice", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"alice", "Alice", "nouppercase123!"}, true},
		{"Password too long", RegisterRequest{"alice", "Alice", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrValidation)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	verifier := NewTokenVerifier("test-secret", "chat-fanout", time.Hour)

	token, err := verifier.Issue("alice")
	req.NoError(err)

	userID, err := verifier.Authenticate(context.Background(), token)
	req.NoError(err)
	req.Equal(domain.UserID("alice"), userID)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	issued := NewTokenVerifier("test-secret", "chat-fanout", time.Hour)
	token, err := issued.Issue("alice")
	require.NoError(t, err)

	expired := NewTokenVerifier("test-secret", "chat-fanout", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name     string
		verifier *TokenVerifier
		token    string
	}{
		{"garbage", issued, "not-a-token"},
		{"other secret", NewTokenVerifier("other-secret", "chat-fanout", time.Hour), token},
		{"other issuer", NewTokenVerifier("test-secret", "someone-else", time.Hour), token},
		{"expired", expired, token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := tt.verifier.Authenticate(context.Background(), tt.token)
			req.ErrorIs(err, errors.ErrUnauthenticated)
		})
	}
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
