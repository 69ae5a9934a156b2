package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/authflow"
	authapi "github.com/voyatra/auth-service/pkg/authflow/api"
	"github.com/voyatra/auth-service/pkg/config"
	"github.com/voyatra/auth-service/pkg/loginattempt"
	"github.com/voyatra/auth-service/pkg/notice"
	"github.com/voyatra/auth-service/pkg/otp"
	"github.com/voyatra/auth-service/pkg/password"
	"github.com/voyatra/auth-service/pkg/ratelimit"
	"github.com/voyatra/auth-service/pkg/sessions"
	"github.com/voyatra/auth-service/pkg/tokens"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed reading configuration", "err", err)
		os.Exit(-1)
	}

	lockoutDuration, err := cfg.Security.ParseLockoutDuration()
	if err != nil {
		slog.Error("Failed to parse lockout duration", "err", err)
		os.Exit(-1)
	}
	sessionTTL, err := cfg.Security.ParseSessionTTL()
	if err != nil {
		slog.Error("Failed to parse session TTL", "err", err)
		os.Exit(-1)
	}
	otpTTL, err := cfg.Security.ParseOTPTTL()
	if err != nil {
		slog.Error("Failed to parse OTP TTL", "err", err)
		os.Exit(-1)
	}
	attemptRetention, err := cfg.Security.ParseAttemptRetention()
	if err != nil {
		slog.Error("Failed to parse attempt retention", "err", err)
		os.Exit(-1)
	}
	sweepInterval, err := cfg.Security.ParseSweepInterval()
	if err != nil {
		slog.Error("Failed to parse sweep interval", "err", err)
		os.Exit(-1)
	}
	accessTokenExpiry, err := cfg.Jwt.ParseAccessTokenExpiry()
	if err != nil {
		slog.Error("Failed to parse access token expiry", "err", err)
		os.Exit(-1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "port", cfg.Database.Port, "user", cfg.Database.User, "schema", cfg.Database.Schema)
		os.Exit(-1)
	}
	defer pool.Close()

	notificationManager, err := notice.NewNotificationManager(cfg.Email.ToSMTPConfig())
	if err != nil {
		slog.Error("Failed initialize notification manager", "err", err)
		os.Exit(-1)
	}

	attemptService := loginattempt.NewService(
		loginattempt.NewPostgresRepository(pool),
		notificationManager,
		loginattempt.WithRetention(attemptRetention),
	)

	otpService := otp.NewService(
		otp.NewPostgresRepository(pool),
		notificationManager,
		otp.WithTTL(otpTTL),
	)

	minter := tokens.NewMinter(cfg.Jwt.Secret, cfg.Jwt.Issuer, cfg.Jwt.Audience, accessTokenExpiry)
	sessionService := sessions.NewService(
		sessions.NewPostgresRepository(pool),
		minter,
		sessions.WithTTL(sessionTTL),
	)

	policyChecker := password.NewDefaultPolicyChecker(&password.Policy{
		MinLength:          cfg.Password.MinLength,
		RequireUppercase:   cfg.Password.RequireUppercase,
		RequireLowercase:   cfg.Password.RequireLowercase,
		RequireDigit:       cfg.Password.RequireDigit,
		RequireSpecialChar: cfg.Password.RequireSpecial,
	})

	authService := authflow.NewService(
		&authflow.ServiceDependencies{
			Store:         account.NewPostgresStore(pool),
			Attempts:      attemptService,
			OTP:           otpService,
			Sessions:      sessionService,
			PolicyChecker: policyChecker,
		},
		authflow.WithLockPolicy(cfg.Security.MaxFailedAttempts, lockoutDuration),
		authflow.WithTOTPIssuer(cfg.Jwt.Issuer),
	)
	slog.Info("Authentication service created", "maxFailedAttempts", cfg.Security.MaxFailedAttempts, "lockoutDuration", lockoutDuration)

	jwtAuth := jwtauth.New("HS256", []byte(cfg.Jwt.Secret), nil)
	handler := authapi.NewHandler(authService, jwtAuth)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(createRateLimitMiddleware().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Mount("/auth", handler.Routes())

	ctx := context.Background()
	sessionService.StartSweeper(ctx, sweepInterval)
	otpService.StartSweeper(ctx, sweepInterval)
	attemptService.StartSweeper(ctx, sweepInterval)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting server", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}

// createRateLimitMiddleware keeps abuse-prone endpoints on tight
// token-bucket budgets while the rest of the API shares the global and
// per-IP limits.
func createRateLimitMiddleware() *ratelimit.Middleware {
	cfg := ratelimit.DefaultConfig()
	cfg.EndpointLimits["POST /auth/login"] = ratelimit.EndpointLimit{
		Capacity:   10,
		RefillRate: 10.0 / 60.0, // 10 per minute
	}
	cfg.EndpointLimits["POST /auth/register"] = ratelimit.EndpointLimit{
		Capacity:   5,
		RefillRate: 5.0 / 300.0, // 5 per 5 minutes
	}
	cfg.EndpointLimits["POST /auth/password/forgot"] = ratelimit.EndpointLimit{
		Capacity:   3,
		RefillRate: 3.0 / 3600.0, // 3 per hour
	}
	cfg.EndpointLimits["POST /auth/verify-2fa"] = ratelimit.EndpointLimit{
		Capacity:   10,
		RefillRate: 10.0 / 60.0,
	}
	cfg.BucketTTL = 1 * time.Hour
	return ratelimit.NewMiddleware(cfg)
}
