package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/gatekeeper-id/gatekeeper/authn"
	"github.com/gatekeeper-id/gatekeeper/authn/verifiers"
	clientsqliterepo "github.com/gatekeeper-id/gatekeeper/clients/sqliterepo"
	"github.com/gatekeeper-id/gatekeeper/internal/config"
	ledgersqliterepo "github.com/gatekeeper-id/gatekeeper/ledger/sqliterepo"
	"github.com/gatekeeper-id/gatekeeper/server"
	"github.com/gatekeeper-id/gatekeeper/sessions"
	"github.com/gatekeeper-id/gatekeeper/sessions/filestore"
	"github.com/gatekeeper-id/gatekeeper/storage/sqlitedb"
	usersqliterepo "github.com/gatekeeper-id/gatekeeper/users/sqliterepo"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)
	displayAppname(cfg.AppName)

	// The relational store must be reachable before the listener binds.
	log.Info().Str("path", cfg.DatabasePath).Msg("[startup] connecting to relational store")
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("relational store unreachable: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Recover persisted sessions before accepting traffic.
	log.Info().Str("dir", cfg.SessionDir).Msg("[startup] loading session save files")
	sessionStore, err := filestore.Open(cfg.SessionDir, cfg.Flow(),
		filestore.WithTTL(cfg.SessionTTL),
		filestore.WithSweepInterval(cfg.SweepInterval),
	)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() { _ = sessionStore.Close() }()

	userRepo := usersqliterepo.New(db)

	registry := authn.NewRegistry()
	registry.Register(sessions.StepPrimary, verifiers.NewPassword(userRepo))
	registry.Register(sessions.StepOTP, verifiers.NewCode(verifiers.NewMemoryIssuer()))

	authenticator, err := authn.New(sessionStore, cfg.Flow(), registry)
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	srv, err := server.New(cfg, server.Repos{
		Sessions: sessionStore,
		Users:    userRepo,
		Clients:  clientsqliterepo.New(db),
		Ledger:   ledgersqliterepo.New(db),
	}, authenticator)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	listener, err := listen(cfg)
	if err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}

	httpServer := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("[startup] listening")
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("serve failed")
		}
	}()

	waitForStopSignal()
	return shutdown(httpServer)
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Dev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// openDatabase opens the store with a bounded retry so transient
// startup races (e.g. a mounted volume appearing) don't kill the
// process immediately, but persistent unavailability stays fatal.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var db *sql.DB
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var openErr error
		db, openErr = sqlitedb.Open(cfg.DatabasePath)
		if openErr != nil {
			log.Warn().Err(openErr).Msg("[startup] relational store not ready, retrying")
			return retry.RetryableError(openErr)
		}
		return nil
	})
	return db, err
}

// listen binds a tcp address or a unix socket. Stale socket paths are
// removed before binding; mode bits and ownership are applied after.
func listen(cfg *config.Config) (net.Listener, error) {
	if !cfg.UnixSocket() {
		return net.Listen("tcp", cfg.Listen)
	}
	if _, err := os.Stat(cfg.Listen); err == nil {
		log.Info().Str("path", cfg.Listen).Msg("[startup] removing stale socket")
		if err := os.Remove(cfg.Listen); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	listener, err := net.Listen("unix", cfg.Listen)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.SocketFileMode()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	if err := os.Chmod(cfg.Listen, mode); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}
	if cfg.SocketUID >= 0 || cfg.SocketGID >= 0 {
		if err := os.Chown(cfg.Listen, cfg.SocketUID, cfg.SocketGID); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("set socket ownership: %w", err)
		}
	}
	return listener, nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
