package main

import (
	"chat-fanout/auth"
	"chat-fanout/infrastructure/health"
	"chat-fanout/infrastructure/websocket"
	"chat-fanout/internal"
	"chat-fanout/moderation"
	"chat-fanout/repositories"
	"chat-fanout/runtime"
	"chat-fanout/runtime/workers"
	"chat-fanout/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes give a meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every deferred cleanup ahead of os.Exit.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.Load(os.Args[1:]...)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	filter, err := loadFilter(log, config)
	if err != nil {
		return exitConfig, err
	}

	// 2. Database (BadgerDB)
	store, err := repositories.Open(config.BadgerFilepath, log, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		if err := store.Close(); err != nil {
			log.Error("BadgerDB close failed", "error", err)
		}
	}()

	// 3. Engine & services
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	engine := runtime.NewEngine(log, store, supervisor, runtime.Config{
		PersistTimeout:   config.PersistTimeout,
		DeliveryTimeout:  config.DeliveryTimeout,
		MaxContentLength: config.MaxContentLength,
		LivenessTimeout:  config.LivenessTimeout,
		ReapInterval:     config.ReapInterval,
		HealthInterval:   config.HealthInterval,
	})
	if filter != nil {
		engine.WithFilter(filter)
	}

	tokens := auth.NewTokenVerifier(config.JWTSecret, config.TokenIssuer, config.TokenDuration)
	gateway := websocket.NewGateway(log, engine,
		services.NewChatService(store.Messages, store.Groups, store.Users),
		services.NewGroupService(log, store.Groups, engine),
		websocket.Config{
			SendBufferSize: config.SendBufferSize,
			WriteWait:      config.WriteWait,
			PongWait:       config.PongWait,
			PingPeriod:     config.PingPeriod,
			MaxFrameSize:   config.MaxFrameSize,
			AllowedOrigins: config.Origins(),
		})
	router := websocket.NewRouter(log, gateway, services.NewAuthService(store.Users, tokens), tokens)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 5. Health endpoint, registered before the engine starts its workers
	if config.HealthPort > 0 {
		healthServer := health.NewServer(log)
		engine.Health().OnReport(healthServer.Report)
		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.Host, config.HealthPort))
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on health port %d: %w", config.HealthPort, err)
		}
		go func() {
			if err := healthServer.Serve(listener); err != nil {
				errChan <- fmt.Errorf("health server error: %w", err)
			}
		}()
		defer healthServer.Stop()
	}

	engine.Start(ctx)
	defer engine.Stop()

	// 6. HTTP & websocket server
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Starting gateway", "address", server.Addr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup. Hijacked websockets are closed by engine.Stop.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Gateway shutdown incomplete", "error", err)
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

func loadFilter(log *slog.Logger, config internal.Config) (*moderation.Filter, error) {
	if config.CensoredWordsFile == "" {
		log.Info("No censored words configured, moderation disabled")
		return nil, nil
	}
	words, err := moderation.LoadWords(config.CensoredWordsFile)
	if err != nil {
		return nil, err
	}
	mask, err := config.CensorRune()
	if err != nil {
		return nil, err
	}
	filter, err := moderation.NewFilter(words, mask)
	if err != nil {
		return nil, fmt.Errorf("moderation filter: %w", err)
	}
	log.Info("Moderation enabled", "words", len(words))
	return filter, nil
}
