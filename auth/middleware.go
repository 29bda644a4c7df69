package auth

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Middleware authenticates every request and stores the identity in its context.
// Browsers cannot set headers on a websocket upgrade, so a "token" query
// parameter is accepted as well.
func Middleware(log *slog.Logger, authenticator contract.IAuthenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			http.Error(w, "authorization token is missing", http.StatusUnauthorized)
			return
		}
		userID, err := authenticator.Authenticate(r.Context(), token)
		if err != nil {
			log.Debug("Rejected token", "remote_addr", r.RemoteAddr, "error", err)
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func WithUserID(ctx context.Context, userID domain.UserID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func UserIDFrom(ctx context.Context) (domain.UserID, bool) {
	userID, ok := ctx.Value(UserIDKey).(domain.UserID)
	return userID, ok && userID != ""
}
