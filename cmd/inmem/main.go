// Command inmem runs the authentication service without a database,
// backed by in-memory stores with notices written to the log. This is
// useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without database setup
//
// Note: All data is lost when the server stops. For production, use
// cmd/authd with PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/authflow"
	authapi "github.com/voyatra/auth-service/pkg/authflow/api"
	"github.com/voyatra/auth-service/pkg/loginattempt"
	"github.com/voyatra/auth-service/pkg/notice"
	"github.com/voyatra/auth-service/pkg/otp"
	"github.com/voyatra/auth-service/pkg/password"
	"github.com/voyatra/auth-service/pkg/sessions"
	"github.com/voyatra/auth-service/pkg/tokens"
)

const (
	jwtSecret = "inmem-dev-secret-change-in-production"
	issuer    = "auth-service-dev"
	port      = 4000
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting In-Memory Auth Service (no database required)")
	slog.Info(strings.Repeat("=", 60))

	notificationManager, err := notice.NewConsoleNotificationManager()
	if err != nil {
		slog.Error("Failed initialize notification manager", "err", err)
		os.Exit(-1)
	}

	store := account.NewInMemStore()
	seedDemoAccount(store)

	minter := tokens.NewMinter(jwtSecret, issuer, issuer, 0)
	authService := authflow.NewService(&authflow.ServiceDependencies{
		Store:         store,
		Attempts:      loginattempt.NewService(loginattempt.NewInMemRepository(), notificationManager),
		OTP:           otp.NewService(otp.NewInMemRepository(), notificationManager),
		Sessions:      sessions.NewService(sessions.NewInMemRepository(), minter),
		PolicyChecker: password.NewDefaultPolicyChecker(nil),
	})

	jwtAuth := jwtauth.New("HS256", []byte(jwtSecret), nil)
	handler := authapi.NewHandler(authService, jwtAuth)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Mount("/auth", handler.Routes())

	slog.Info(strings.Repeat("=", 60))
	slog.Info("In-Memory Auth Service Ready")
	slog.Info("")
	slog.Info("Test credentials:")
	slog.Info("  Email:    demo@example.com")
	slog.Info("  Password: Demo123!pass")
	slog.Info("")
	slog.Info("API Endpoints:")
	slog.Info("  POST /auth/register          - Register")
	slog.Info("  POST /auth/login             - Login")
	slog.Info("  POST /auth/token/refresh     - Refresh access token")
	slog.Info("  POST /auth/logout            - Logout")
	slog.Info("  GET  /auth/sessions          - List sessions (auth required)")
	slog.Info(strings.Repeat("=", 60))

	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}

func seedDemoAccount(store *account.InMemStore) {
	hash, err := password.Hash("Demo123!pass")
	if err != nil {
		slog.Error("Failed hashing demo password", "err", err)
		return
	}

	demo, err := store.Create(context.Background(), account.Identity{
		ID:           uuid.New(),
		Email:        "demo@example.com",
		Name:         "Demo User",
		PasswordHash: hash,
		Role:         "user",
		IsVerified:   true,
		IsActive:     true,
	})
	if err != nil {
		slog.Error("Failed seeding demo account", "err", err)
		return
	}
	slog.Info("Created demo account", "id", demo.ID, "email", demo.Email)
}
