package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/library-service/cmd/api/auth"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/database"
	libraryhttp "github.com/library-service/cmd/api/http"
	"github.com/library-service/cmd/api/inmemory"
	"github.com/library-service/cmd/api/notifications"
	"github.com/library-service/cmd/api/transaction"
	"github.com/library-service/cmd/api/user"

	"github.com/golang-migrate/migrate/v4"

	_ "github.com/lib/pq"
)

func main() {
	err := run()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	requestTimeout, err := durationFromEnv("HTTP_REQUEST_TIMEOUT", 5*time.Second)
	if err != nil {
		return err
	}

	notificationsTimeout, err := durationFromEnv("NOTIFICATIONS_TIMEOUT", 2*time.Second)
	if err != nil {
		return err
	}
	enableNotifications := os.Getenv("NOTIFICATIONS_ENABLED") == "true"
	notificationsBaseURL := os.Getenv("NOTIFICATIONS_BASE_URL")
	ntfy := notifications.NewNtfy(enableNotifications, notificationsBaseURL, &http.Client{})

	tokenSecret := os.Getenv("ACCESS_TOKEN_SECRET")
	if tokenSecret == "" {
		return errors.New("getting token secret from env: ACCESS_TOKEN_SECRET must be set")
	}
	tokenExpiry, err := durationFromEnv("ACCESS_TOKEN_EXPIRY", 30*time.Minute)
	if err != nil {
		return err
	}
	accessGate := auth.NewAuth(tokenSecret, tokenExpiry)

	//choose the storage backend:
	var bookRepo book.Repository
	var txRepo transaction.Repository
	var userRepo user.Repository

	connStr := os.Getenv("DATABASE_URL")
	if connStr != "" {
		dbObject, err := database.ConnectDb(connStr)
		if err != nil {
			return fmt.Errorf("connecting with db: %w", err)
		}
		defer dbObject.Close()

		store := database.NewStore(dbObject)
		path := os.Getenv("DATABASE_MIGRATIONS_PATH")
		err = database.MigrationUp(store, path)
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrating: %w", err)
		}

		bookRepo, txRepo, userRepo = store, store, store
	} else {
		log.Println("DATABASE_URL not set, using the in-memory store")
		memStore, err := inmemory.NewInMemoryStore()
		if err != nil {
			return fmt.Errorf("creating in-memory store: %w", err)
		}

		bookRepo, txRepo, userRepo = memStore, memStore, memStore
	}

	bookService := book.NewService(bookRepo, ntfy, notificationsTimeout)
	userService := user.NewService(userRepo)
	txService := transaction.NewService(txRepo, userRepo, ntfy, notificationsTimeout)

	gate := libraryhttp.NewGate(accessGate, userService)
	bookHandler := libraryhttp.NewBookHandler(bookService, gate, requestTimeout)
	txHandler := libraryhttp.NewTransactionHandler(txService, gate, requestTimeout)
	authHandler := libraryhttp.NewAuthHandler(userService, accessGate, gate, requestTimeout)

	port := 8080
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("getting http port from env: %w", err)
		}
	}

	//create and init http server:
	server := libraryhttp.NewServer(libraryhttp.ServerConfig{Port: port}, bookHandler, txHandler, authHandler)

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Println(fmt.Errorf("unexpected http server error: %w", err))
		}
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	ctx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	log.Println("Graceful shutdown complete.")
	return nil
}

/* Reads a duration from an env var written with a unit suffix, like seconds. */
func durationFromEnv(name string, fallback time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(name)
	if valueStr == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("getting %s from env: %w", name, err)
	}
	return value, nil
}
