package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Agora/internal/usecase"
	"Agora/pkg/config"
	xhttp "Agora/pkg/http"
	pkgkafka "Agora/pkg/kafka"
	applogger "Agora/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Closer releases an infrastructure client once everything using it stopped.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg          *config.Config
	logger       *applogger.Logger
	httpServer   *xhttp.Server
	consumer     *pkgkafka.Consumer
	checkpointer *usecase.Checkpointer
	closers      []Closer
}

// New creates the application. consumer may be nil when Kafka intake is off.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	checkpointer *usecase.Checkpointer,
	closers ...Closer,
) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &App{
		cfg:          cfg,
		logger:       logger,
		httpServer:   httpServer,
		consumer:     consumer,
		checkpointer: checkpointer,
		closers:      closers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	defer a.close()

	if err := a.checkpointer.Restore(ctx); err != nil {
		return err
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}

	// checkpoints outlive the serving context so the final save sees the
	// last request and the last consumed message
	cpCtx, stopCheckpoints := context.WithCancel(context.WithoutCancel(ctx))
	defer stopCheckpoints()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.httpServer.ListenAndServe)
	g.Go(func() error { return a.checkpointer.Run(cpCtx) })
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		a.shutdown()
		stopCheckpoints()
		return nil
	})

	a.logger.Info("agora started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("kafka", a.consumer != nil),
		applogger.String("state", a.cfg.State.Backend),
	)
	return g.Wait()
}

// shutdown stops intake: HTTP first, then the consumer drains its queues.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
}

func (a *App) close() {
	a.logger.RemoveCollector()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
