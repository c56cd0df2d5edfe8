package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"refresh-notify/internal/config"
	"refresh-notify/internal/infrastructure/hub"
	"refresh-notify/internal/infrastructure/logger"
	"refresh-notify/internal/infrastructure/server"
	"refresh-notify/internal/notification"
)

func main() {
	ctx := context.Background()
	sctx := WithSignal(ctx)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.NewLogrusLogger(logger.NewDefaultConfig())
		fallback.Fatalf("failed to load configuration: %v", err)
	}

	lCfg := logger.NewDefaultConfig()
	lCfg.Level = logger.ParseLevel(cfg.LogLevel)
	lCfg.Format = cfg.LogFormat
	lCfg.Output = cfg.LogOutput
	lCfg.FilePath = cfg.LogFilePath
	log := logger.NewLogrusLogger(lCfg)

	clock := clockwork.NewRealClock()
	hubInstance := hub.New(hub.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		WriteTimeout:      cfg.StreamWriteTimeout,
	}, clock, log)

	// Start the hub before wiring the router so streams are accepted the
	// moment the server listens.
	if err := hubInstance.Start(ctx); err != nil {
		log.Errorf("failed to start hub: %v", err)
		return
	}

	dispatcher := hub.NewDispatcher(hubInstance, clock, log)
	notifier := notification.NewNotifier(dispatcher, log)

	router := InitRouter(hubInstance, notifier, log)
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, router)
	app := newApplication(log, httpSrv, hubInstance)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

type Application struct {
	logger  logger.Logger
	httpSrv server.Server
	hub     *hub.Hub
}

func newApplication(
	log logger.Logger,
	httpSrv *server.HTTPServer,
	hubInstance *hub.Hub,
) *Application {
	return &Application{
		logger:  log.WithField("app", "refresh-notify"),
		httpSrv: httpSrv,
		hub:     hubInstance,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg := errgroup.Group{}

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()

		gracefulCtx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()

		// Stop the hub first so every stream is torn down before the
		// server stops accepting.
		if err := app.hub.Stop(gracefulCtx); err != nil {
			app.logger.Errorf("failed to stop hub: %v", err)
		}

		return app.httpSrv.Stop(gracefulCtx)
	})

	return eg.Wait()
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
