package websocket

import (
	"chat-fanout/auth"
	"chat-fanout/contract"
	"chat-fanout/errors"
	"chat-fanout/services"
	"encoding/json"
	"log/slog"
	"net/http"
)

const maxAccountBodySize = 4 * 1024

type tokenResponse struct {
	Token string `json:"token"`
}

// NewRouter mounts the authenticated websocket endpoint next to the account
// endpoints issuing its tokens.
func NewRouter(log *slog.Logger, gateway *Gateway, accounts services.IAuthService,
	authenticator contract.IAuthenticator) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", auth.Middleware(log, authenticator, gateway))
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if !decodeBody(w, r, &req) {
			return
		}
		token, err := accounts.Register(r.Context(), req)
		writeToken(log, w, token, err)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		token, err := accounts.Login(r.Context(), req)
		writeToken(log, w, token, err)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAccountBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorPayload{Code: errors.CodeValidation, Message: "malformed request body"})
		return false
	}
	return true
}

func writeToken(log *slog.Logger, w http.ResponseWriter, token services.Token, err error) {
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			log.Error("Account request failed", "error", err)
			writeJSON(w, status, ErrorPayload{Code: errors.CodeInternal, Message: "internal error"})
			return
		}
		writeJSON(w, status, errorPayload(err))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
