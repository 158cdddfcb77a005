package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/noteskeeper/internal/config"
	"github.com/and161185/noteskeeper/internal/crypto"
	"github.com/and161185/noteskeeper/internal/files"
	"github.com/and161185/noteskeeper/internal/gateway"
	"github.com/and161185/noteskeeper/internal/limiter"
	"github.com/and161185/noteskeeper/internal/migrate"
	"github.com/and161185/noteskeeper/internal/repository/postgres"
	grpcserver "github.com/and161185/noteskeeper/internal/server/grpc"
	httpserver "github.com/and161185/noteskeeper/internal/server/http"
	"github.com/and161185/noteskeeper/internal/service"
	"github.com/and161185/noteskeeper/internal/session"
	"github.com/and161185/noteskeeper/internal/upload"
)

func newServeCmd(fv *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and the ops gRPC endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fv.addr, "addr", "", "HTTP listen address")
	f.StringVar(&fv.opsAddr, "ops-addr", "", "ops gRPC listen address; empty disables it")
	f.StringVar(&fv.secret, "secret", "", "master secret for cookies and sealed tokens")
	f.BoolVar(&fv.dev, "dev", false, "enable gRPC reflection and gin debug mode")
	f.StringVar(&fv.interpreter, "interpreter", "", "backend interpreter")
	f.StringVar(&fv.script, "script", "", "backend script")
	f.DurationVar(&fv.timeout, "timeout", 0, "per-command timeout")
	f.StringVar(&fv.filesRoot, "files-root", "", "attachment root directory")
	f.Int64Var(&fv.maxUpload, "max-upload", 0, "per-file upload limit in bytes")
	return cmd
}

// purger drops stale rows or entries; run periodically by sweep.
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

type purgeFunc func(ctx context.Context) (int64, error)

func (f purgeFunc) Purge(ctx context.Context) (int64, error) { return f(ctx) }

// serve wires every component and blocks until ctx is cancelled or a listener fails.
func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("ops_addr", cfg.OpsAddr),
	)
	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	cookieKey, err := crypto.DeriveKey([]byte(cfg.Secret), crypto.PurposeCookie)
	if err != nil {
		return err
	}

	cmdLog, closeCmdLog, err := gateway.NewCommandLog(cfg.Gateway.LogPath)
	if err != nil {
		return fmt.Errorf("command log: %w", err)
	}
	defer func() { _ = closeCmdLog() }()

	gw := gateway.New(gateway.Config{
		Interpreter: cfg.Gateway.Interpreter,
		Script:      cfg.Gateway.Script,
		WorkDir:     cfg.Gateway.WorkDir,
		Env:         cfg.Gateway.Env,
		Timeout:     cfg.Gateway.Timeout,
		MaxOutput:   cfg.Gateway.MaxOutput,
	}, logger, cmdLog)
	if err := gw.Check(); err != nil {
		logger.Warn("backend not reachable yet", zap.Error(err))
	}

	var (
		store   session.Store
		lim     limiter.Limiter
		purgers []purger
	)
	if cfg.DatabaseDSN != "" {
		if _, err := migrate.Up(ctx, cfg.DatabaseDSN, logger); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		sealKey, err := crypto.DeriveKey([]byte(cfg.Secret), crypto.PurposeSeal)
		if err != nil {
			return err
		}
		repo := postgres.NewSessionRepo(db, sealKey)
		pg := limiter.NewPG(db.Pool, cfg.Limiter.Window, cfg.Limiter.MaxFails, cfg.Limiter.BlockFor)
		store, lim = repo, pg
		purgers = append(purgers, purgeFunc(repo.DeleteExpired), pg)
	} else {
		mem := session.NewMemStore(cfg.Session.JanitorEvery)
		defer mem.Close()
		ml := limiter.NewMemory(cfg.Limiter.Window, cfg.Limiter.MaxFails, cfg.Limiter.BlockFor)
		store, lim = mem, ml
		purgers = append(purgers, ml)
	}

	web, err := httpserver.New(httpserver.Deps{
		Sessions: session.NewManager(store, session.NewCodec(cookieKey), session.Options{
			TTL:        cfg.Session.TTL,
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.CookieSecure,
		}),
		Auth:    service.NewAuthService(gw, lim, logger),
		Notes:   service.NewNoteService(gw),
		Tasks:   service.NewTaskService(gw, logger),
		Files:   files.NewStore(cfg.Files.Root),
		Uploads: upload.NewSpooler(cfg.Upload.MaxSize, cfg.Upload.TempDir),
		Log:     logger,
	})
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Gateway.Timeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var ops *grpcserver.Ops
	if cfg.OpsAddr != "" {
		lis, err := net.Listen("tcp", cfg.OpsAddr)
		if err != nil {
			_ = httpSrv.Close()
			return fmt.Errorf("ops listen: %w", err)
		}
		ops = grpcserver.NewOps(gw, 10*time.Second, cfg.Dev, logger)
		go func() {
			logger.Info("ops listening", zap.String("addr", cfg.OpsAddr))
			if err := ops.Serve(lis); err != nil {
				errCh <- fmt.Errorf("ops: %w", err)
			}
		}()
	}

	sweepDone := make(chan struct{})
	sweepCtx, stopSweep := context.WithCancel(ctx)
	go func() {
		defer close(sweepDone)
		sweep(sweepCtx, cfg.Session.JanitorEvery, logger, purgers...)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if ops != nil {
		ops.Shutdown(5 * time.Second)
		ops.Wait()
	}
	stopSweep()
	<-sweepDone

	logger.Info("shutdown complete")
	return runErr
}

// sweep runs every purger each interval until ctx is done.
func sweep(ctx context.Context, every time.Duration, log *zap.Logger, ps ...purger) {
	if every <= 0 || len(ps) == 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, p := range ps {
				n, err := p.Purge(ctx)
				if err != nil {
					log.Warn("purge failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Debug("purged", zap.Int64("rows", n))
				}
			}
		}
	}
}
