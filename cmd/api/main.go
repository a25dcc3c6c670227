package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"academy/internal/auth"
	"academy/internal/authz"
	"academy/internal/cache"
	"academy/internal/db"
	"academy/internal/domain/registrations"
	"academy/internal/domain/storage"
	"academy/internal/jobs"
	"academy/internal/provisioning"
	"academy/internal/ratelimiter"
	"academy/internal/realtime"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

// loadConfig reads an optional .env file and then the environment.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return config{}, fmt.Errorf("loading .env file: %w", err)
	}

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return config{}, err
	}
	if cfg.Auth.Token.Secret == "" {
		return config{}, fmt.Errorf("AUTH_TOKEN_SECRET must be set")
	}
	return cfg, nil
}

var version = "1.0.0"

//	@title			Academy API
//	@description	Course registrations, reviews and the admin back office.

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Database
	pool, err := db.New(cfg.DB.Addr, cfg.DB.MaxConns, cfg.DB.MaxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	refs, err := registrations.NewReferenceGenerator(cfg.ReferenceSalt)
	if err != nil {
		logger.Fatal(err)
	}
	store := storage.NewContainer(pool, refs)

	// Redis backs the realtime feed and the job queue
	rdb, err := cache.New(context.Background(), cfg.Redis.Addr)
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr})
	defer queue.Close()

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.Auth.Token.Secret,
		cfg.Auth.Token.Iss,
		cfg.Auth.Token.Iss,
		cfg.Auth.Token.Exp,
	)
	checker := authz.NewRoleChecker(store.AccessControl)

	provisioner := provisioning.NewService(provisioning.Config{
		Identities:        store.Identities,
		Roles:             store.AccessControl,
		Authenticator:     jwtAuthenticator,
		Checker:           checker,
		Logger:            logger.Named("provisioning"),
		BootstrapEmail:    cfg.Bootstrap.Email,
		BootstrapPassword: cfg.Bootstrap.Password,
	})

	if cfg.Bootstrap.OnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		res, err := provisioner.BootstrapInitialAdmin(ctx)
		cancel()
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infow("bootstrap checked", "already_setup", res.AlreadySetup, "email", res.Email)
	}

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         store,
		authenticator: jwtAuthenticator,
		authz:         checker,
		provisioner:   provisioner,
		broker:        realtime.NewBroker(rdb, "academy:"),
		queue:         queue,
		rateLimiter: ratelimiter.NewFixedWindowLimiter(
			cfg.RateLimiter.RequestsPerTimeFrame,
			cfg.RateLimiter.TimeFrame,
		),
	}

	// Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		return pool.Stat().TotalConns()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
