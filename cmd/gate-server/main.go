// Command gate-server runs the Afromart account pages.
//
// Usage:
//
//	gate-server                 serve HTTP on HTTP_ADDR
//	gate-server provision ...   create an already-active account
//
// Without REDIS_URL an in-process Redis is started, without DATABASE_URL
// accounts live in memory, and without SMTP_HOST mail is printed to
// stdout. PRODUCTION=true refuses all three fallbacks and also requires
// PUBLIC_BASE_URL, so emailed links never take the request's Host.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/afromart/gate"
	"github.com/afromart/gate/internal/logging"
	"github.com/afromart/gate/internal/notify"
	"github.com/afromart/gate/mail"
	"github.com/afromart/gate/metrics/export/prometheus"
	"github.com/afromart/gate/storage/memory"
	"github.com/afromart/gate/storage/postgres"
	"github.com/afromart/gate/web"
)

func main() {
	pe, err := loadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logging.New(os.Stdout, pe.LogFormat, pe.LogLevel)

	if len(os.Args) > 1 && os.Args[1] == "provision" {
		if err := provision(pe, log, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "provision: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(pe, log); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

// deps holds the backing services and how to release them.
type deps struct {
	redis   redis.UniversalClient
	users   gate.UserStore
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDeps(ctx context.Context, pe processEnv, log logging.Logger) (*deps, error) {
	d := &deps{}

	if pe.RedisURL == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		d.closers = append(d.closers, mr.Close)
		d.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		log.Warn(ctx, "REDIS_URL not set, using in-process redis", "addr", mr.Addr())
	} else {
		opts, err := redis.ParseURL(pe.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		d.redis = redis.NewClient(opts)
	}
	client := d.redis
	d.closers = append(d.closers, func() { _ = client.Close() })

	if pe.DatabaseURL == "" {
		d.users = memory.New()
		log.Warn(ctx, "DATABASE_URL not set, accounts are kept in memory")
		return d, nil
	}

	db, err := postgres.Open(ctx, pe.DatabaseURL)
	if err != nil {
		d.close()
		return nil, err
	}
	d.closers = append(d.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		d.close()
		return nil, err
	}
	d.users = postgres.New(db)
	return d, nil
}

func mailSender(pe processEnv, log logging.Logger) mail.Sender {
	if pe.SMTPHost == "" {
		log.Warn(context.Background(), "SMTP_HOST not set, printing mail to stdout")
		return mail.NewConsoleSender(os.Stdout)
	}
	return mail.NewSMTPSender(pe.smtpConfig())
}

func buildEngine(pe processEnv, d *deps, notifier gate.Notifier, log logging.Logger) (*gate.Engine, error) {
	cfg, err := pe.engineConfig()
	if err != nil {
		return nil, err
	}
	return gate.New().
		WithConfig(cfg).
		WithRedis(d.redis).
		WithUserStore(d.users).
		WithNotifier(notifier).
		WithLogger(log).
		Build()
}

func serve(pe processEnv, log *logging.SlogLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := openDeps(ctx, pe, log)
	if err != nil {
		return err
	}
	defer d.close()

	dispatcher := notify.New(notify.Config{
		Workers:   pe.MailWorkers,
		QueueSize: pe.MailQueueSize,
	}, mailSender(pe, log), log)

	engine, err := buildEngine(pe, d, dispatcher, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	site, err := web.New(engine, "/gate", log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Mount("/gate", site.Routes())
	r.Get("/healthz", healthz(engine))
	r.Method(http.MethodGet, "/metrics", prometheus.New(engine).Handler())

	srv := &http.Server{
		Addr:              pe.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Slog().Handler(), slog.LevelError),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", pe.HTTPAddr, "production", pe.Production)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), pe.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "http shutdown", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), pe.MailDrainTimeout)
	defer cancelDrain()
	if err := dispatcher.Close(drainCtx); err != nil {
		log.Warn(drainCtx, "mail queue not drained", "error", err, "dropped", dispatcher.Dropped())
	}
	return nil
}

func healthz(engine *gate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := engine.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	}
}
