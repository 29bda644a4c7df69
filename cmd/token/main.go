package main

import (
	"chat-fanout/auth"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"chat-fanout/internal"
	"chat-fanout/repositories"
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/mama165/sdk-go/logs"
)

// token creates the user if needed and prints a gateway token for it.
func main() {
	userID := flag.String("user", "", "User id")
	username := flag.String("name", "", "Display name, defaults to the user id")
	flag.Parse()

	config, err := internal.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if !domain.ValidIdentifier(*userID) {
		log.Fatalf("Invalid user id %q", *userID)
	}
	if *username == "" {
		*username = *userID
	}

	store, err := repositories.Open(config.BadgerFilepath, logs.GetLoggerFromString(config.LogLevel), nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	_, err = store.Users.CreateUser(context.Background(), domain.UserID(*userID), *username, "")
	switch {
	case errors.Is(err, errors.ErrUserAlreadyExists):
	case err != nil:
		log.Fatalf("Cannot create user: %v", err)
	}

	token, err := auth.NewTokenVerifier(config.JWTSecret, config.TokenIssuer, config.TokenDuration).
		Issue(domain.UserID(*userID))
	if err != nil {
		log.Fatalf("Cannot issue token: %v", err)
	}
	fmt.Println(token)
}
