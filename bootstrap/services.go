package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/najoast/lproc/config"
	"github.com/najoast/lproc/core"
	"github.com/najoast/lproc/logging"
	"github.com/najoast/lproc/process"
)

// Service and container names.
const (
	ServiceLogger        = "logger"
	ServiceCoordinator   = "coordinator"
	ServiceSupervisor    = "supervisor"
	ServiceConfigWatcher = "config-watcher"
)

// LoggerService builds the application logger from the log section.
type LoggerService struct {
	app *DefaultApplication
}

func (s *LoggerService) Name() string { return ServiceLogger }

func (s *LoggerService) Start(ctx context.Context) error {
	app := s.app
	if app.logger == nil {
		logger, err := logging.New(app.config)
		if err != nil {
			return err
		}
		app.logger = logger
		app.ownsLogger = true
	}
	app.lifecycleManager.SetLogger(app.logger.Named("lifecycle"))
	return app.container.RegisterInstance(ServiceLogger, app.logger)
}

func (s *LoggerService) Stop(ctx context.Context) error {
	app := s.app
	app.container.Remove(ServiceLogger)
	app.lifecycleManager.SetLogger(zap.NewNop())
	if !app.ownsLogger {
		return nil
	}
	// Sync on a terminal reports EINVAL; nothing is lost
	_ = app.logger.Close()
	app.logger = nil
	app.ownsLogger = false
	return nil
}

func (s *LoggerService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.logger == nil {
		return HealthStatus{State: HealthStopped}, nil
	}
	return HealthStatus{
		State: HealthHealthy,
		Data:  map[string]interface{}{"level": s.app.logger.Level().String()},
	}, nil
}

// CoordinatorService owns the rendezvous coordinator shared by every
// process.
type CoordinatorService struct {
	app *DefaultApplication
}

func (s *CoordinatorService) Name() string { return ServiceCoordinator }

func (s *CoordinatorService) Start(ctx context.Context) error {
	app := s.app
	logger, err := ResolveAs[*logging.Logger](app.container, ServiceLogger)
	if err != nil {
		return err
	}
	coordinator := core.NewCoordinator(core.CoordinatorOptions{
		NamePrefix: app.config.Proc.NamePrefix,
		Logger:     logger.Named("coordinator"),
	})
	if err := app.container.RegisterInstance(ServiceCoordinator, coordinator); err != nil {
		return err
	}
	app.coordinator = coordinator
	return nil
}

func (s *CoordinatorService) Stop(ctx context.Context) error {
	s.app.container.Remove(ServiceCoordinator)
	stats := s.app.coordinator.Stats()
	s.app.logger.Debug("coordinator stopped",
		zap.Uint64("exchanges", stats.Exchanges),
		zap.Int("live", stats.Live))
	return nil
}

func (s *CoordinatorService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.coordinator == nil {
		return HealthStatus{State: HealthStopped}, nil
	}
	stats := s.app.coordinator.Stats()
	return HealthStatus{
		State: HealthHealthy,
		Data: map[string]interface{}{
			"exchanges":        stats.Exchanges,
			"parked_senders":   stats.ParkedSenders,
			"parked_receivers": stats.ParkedReceivers,
			"live":             stats.Live,
		},
	}, nil
}

// SupervisorService owns the process supervisor. Stopping it interrupts
// every blocked process and waits for them to end.
type SupervisorService struct {
	app *DefaultApplication
}

func (s *SupervisorService) Name() string { return ServiceSupervisor }

func (s *SupervisorService) Start(ctx context.Context) error {
	app := s.app
	logger, err := ResolveAs[*logging.Logger](app.container, ServiceLogger)
	if err != nil {
		return err
	}
	coordinator, err := ResolveAs[*core.Coordinator](app.container, ServiceCoordinator)
	if err != nil {
		return err
	}

	cfg := app.config
	sup := process.NewSupervisor(coordinator, process.Options{
		MaxProcs:        cfg.Proc.MaxProcs,
		LockOSThread:    cfg.Proc.LockOSThread,
		DefaultDeadline: cfg.Coordinator.DefaultDeadline.Std(),
		Output:          app.output,
		Logger:          logger.Named("process"),
	})
	if err := app.container.RegisterInstance(ServiceSupervisor, sup); err != nil {
		sup.Close()
		return err
	}
	app.supervisor = sup
	return nil
}

func (s *SupervisorService) Stop(ctx context.Context) error {
	s.app.container.Remove(ServiceSupervisor)
	sup := s.app.supervisor
	sup.Close()
	if err := sup.Wait(ctx); err != nil {
		return fmt.Errorf("%d processes still running: %w", sup.Live(), err)
	}
	return nil
}

func (s *SupervisorService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.supervisor == nil {
		return HealthStatus{State: HealthStopped}, nil
	}
	return HealthStatus{
		State: HealthHealthy,
		Data:  map[string]interface{}{"live": s.app.supervisor.Live()},
	}, nil
}

// ConfigWatcherService reloads the config file on change and applies
// the log level. Other settings are read once at start.
type ConfigWatcherService struct {
	app  *DefaultApplication
	file string

	mu       sync.Mutex
	provider *config.FileProvider
	cancel   context.CancelFunc
}

func (s *ConfigWatcherService) Name() string { return ServiceConfigWatcher }

func (s *ConfigWatcherService) Start(ctx context.Context) error {
	appLogger, err := ResolveAs[*logging.Logger](s.app.container, ServiceLogger)
	if err != nil {
		return err
	}
	logger := appLogger.Named("config")
	provider, err := config.NewFileProvider(s.file, s.app.loader, logger)
	if err != nil {
		return err
	}

	// The start ctx ends when Start returns; the watch lives until Stop
	watchCtx, cancel := context.WithCancel(context.Background())
	err = provider.Watch(watchCtx, func(oldConfig, newConfig *config.Config) {
		appLogger.OnConfigChange(oldConfig, newConfig)
		if oldConfig.Proc != newConfig.Proc || oldConfig.Coordinator != newConfig.Coordinator {
			logger.Warn("proc and coordinator changes apply on restart")
		}
	})
	if err != nil {
		cancel()
		provider.Close()
		return err
	}

	s.mu.Lock()
	s.provider, s.cancel = provider, cancel
	s.mu.Unlock()
	return nil
}

func (s *ConfigWatcherService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return nil
	}
	s.cancel()
	err := s.provider.Close()
	s.provider, s.cancel = nil, nil
	return err
}

func (s *ConfigWatcherService) Health(ctx context.Context) (HealthStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return HealthStatus{State: HealthStopped}, nil
	}
	return HealthStatus{State: HealthHealthy, Data: map[string]interface{}{"file": s.file}}, nil
}
