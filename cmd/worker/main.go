package main

import (
	"fmt"
	"log"
	"os"

	"academy/internal/jobs"
	"academy/internal/mailer"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Concurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`

	SMTP struct {
		Host     string `envconfig:"HOST"`
		Port     int    `envconfig:"PORT" default:"587"`
		Username string `envconfig:"USERNAME"`
		Password string `envconfig:"PASSWORD"`
	} `envconfig:"SMTP"`

	MailFrom     string `envconfig:"MAIL_FROM" default:"no-reply@academy.local"`
	MailNotifyTo string `envconfig:"MAIL_NOTIFY_TO" required:"true"`
}

func newLogger() *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stdout), zapcore.InfoLevel)
	return zap.New(core).Sugar().Named("worker")
}

// The worker drains the registration notification queue and mails staff.
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading .env file: %v", err)
	}

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger()
	defer logger.Sync()

	smtp, err := mailer.NewSMTPClient(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.MailFrom)
	if err != nil {
		logger.Fatal(fmt.Errorf("mailer: %w", err))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	srv, mux := jobs.NewServer(redisOpts, cfg.Concurrency, jobs.NewNotifyHandler(smtp, cfg.MailNotifyTo, logger))

	logger.Infow("worker has started", "redis", cfg.RedisAddr, "concurrency", cfg.Concurrency)
	// Run blocks until SIGTERM or SIGINT and then drains in-flight tasks.
	if err := srv.Run(mux); err != nil {
		logger.Fatal(err)
	}
}
