package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/najoast/lproc/config"
	"github.com/najoast/lproc/core"
	"github.com/najoast/lproc/logging"
	"github.com/najoast/lproc/process"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's ctx has no
// deadline
const DefaultShutdownTimeout = 30 * time.Second

var _ Application = (*DefaultApplication)(nil)

// DefaultApplication implements the Application interface
type DefaultApplication struct {
	config *config.Config
	loader *config.Loader
	output io.Writer

	container        Container
	lifecycleManager *DefaultLifecycleManager

	// Set by the core services while they run
	logger      *logging.Logger
	ownsLogger  bool
	coordinator *core.Coordinator
	supervisor  *process.Supervisor

	mutex   sync.RWMutex
	running bool
}

// NewApplication creates an application with the default configuration
// and the logger, coordinator and supervisor services registered.
func NewApplication() *DefaultApplication {
	app := &DefaultApplication{
		config:           config.DefaultConfig(),
		loader:           config.NewLoader(),
		output:           os.Stdout,
		container:        NewContainer(),
		lifecycleManager: NewLifecycleManager(nil),
	}
	app.registerCoreServices()
	return app
}

// Configure replaces the configuration after validating it
func (app *DefaultApplication) Configure(cfg *config.Config) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.running {
		return fmt.Errorf("cannot configure application while running")
	}
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return &ApplicationError{Operation: "configure", Err: err}
	}

	app.config = cfg
	return nil
}

// Config returns the active configuration
func (app *DefaultApplication) Config() *config.Config {
	app.mutex.RLock()
	defer app.mutex.RUnlock()
	return app.config
}

// Run starts the services and blocks until ctx ends or the process
// receives SIGINT or SIGTERM, then shuts down.
func (app *DefaultApplication) Run(ctx context.Context) error {
	if err := app.start(ctx); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	app.logger.Info("shutting down", zap.Error(sigCtx.Err()))
	return app.Shutdown(context.Background())
}

// RunProgram starts the services, runs text as the main process and then
// shuts down. Cancelling ctx or a shutdown signal interrupts every
// process. Processes still blocked after main returns are interrupted by
// the shutdown.
func (app *DefaultApplication) RunProgram(ctx context.Context, text string) error {
	if err := app.start(ctx); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	cancelled := context.AfterFunc(sigCtx, app.supervisor.Close)

	runErr := app.supervisor.RunMain(text)
	cancelled()

	return errors.Join(runErr, app.Shutdown(context.Background()))
}

func (app *DefaultApplication) start(ctx context.Context) error {
	app.mutex.Lock()
	if app.running {
		app.mutex.Unlock()
		return fmt.Errorf("application is already running")
	}
	app.running = true
	app.mutex.Unlock()

	if err := app.lifecycleManager.Start(ctx); err != nil {
		app.mutex.Lock()
		app.running = false
		app.mutex.Unlock()
		return fmt.Errorf("failed to start services: %w", err)
	}

	app.logger.Debug("application started",
		zap.String("environment", string(app.config.App.Environment)),
		zap.Strings("services", app.lifecycleManager.Services()))
	return nil
}

// Shutdown stops the services in reverse start order
func (app *DefaultApplication) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	if !app.running {
		app.mutex.Unlock()
		return nil
	}
	app.running = false
	app.mutex.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	if err := app.lifecycleManager.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop services: %w", err)
	}
	return nil
}

// Container returns the dependency injection container
func (app *DefaultApplication) Container() Container {
	return app.container
}

// LifecycleManager returns the lifecycle manager
func (app *DefaultApplication) LifecycleManager() LifecycleManager {
	return app.lifecycleManager
}

// Logger returns the running logger, nil before start
func (app *DefaultApplication) Logger() *logging.Logger {
	return app.logger
}

// Coordinator returns the running coordinator, nil before start
func (app *DefaultApplication) Coordinator() *core.Coordinator {
	return app.coordinator
}

// Supervisor returns the running supervisor, nil before start
func (app *DefaultApplication) Supervisor() *process.Supervisor {
	return app.supervisor
}

func (app *DefaultApplication) registerCoreServices() {
	lm := app.lifecycleManager
	lm.Register(ServiceLogger, &LoggerService{app: app})
	lm.Register(ServiceCoordinator, &CoordinatorService{app: app}, ServiceLogger)
	lm.Register(ServiceSupervisor, &SupervisorService{app: app}, ServiceCoordinator)
}

// ApplicationBuilder helps build and configure applications
type ApplicationBuilder struct {
	app        *DefaultApplication
	config     *config.Config
	configFile string
	watch      bool
	errs       []error
}

// NewApplicationBuilder creates a new application builder
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{app: NewApplication()}
}

// WithConfig sets the configuration; it wins over WithConfigFile
func (b *ApplicationBuilder) WithConfig(cfg *config.Config) *ApplicationBuilder {
	b.config = cfg
	return b
}

// WithConfigFile loads the configuration from filename at Build. An
// empty filename searches the loader's paths.
func (b *ApplicationBuilder) WithConfigFile(filename string) *ApplicationBuilder {
	b.configFile = filename
	return b
}

// WithLoader replaces the configuration loader
func (b *ApplicationBuilder) WithLoader(loader *config.Loader) *ApplicationBuilder {
	b.app.loader = loader
	return b
}

// WithWatch reloads the config file on change. Without WithConfigFile it
// watches the file the loader finds in its search paths.
func (b *ApplicationBuilder) WithWatch(watch bool) *ApplicationBuilder {
	b.watch = watch
	return b
}

// WithOutput sends print output somewhere other than stdout
func (b *ApplicationBuilder) WithOutput(w io.Writer) *ApplicationBuilder {
	b.app.output = w
	return b
}

// WithLogger uses logger instead of one built from the log section. The
// caller keeps ownership and closes it.
func (b *ApplicationBuilder) WithLogger(logger *logging.Logger) *ApplicationBuilder {
	b.app.logger = logger
	return b
}

// WithService registers an extra service
func (b *ApplicationBuilder) WithService(name string, service Service, deps ...string) *ApplicationBuilder {
	if err := b.app.lifecycleManager.Register(name, service, deps...); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// WithServiceFactory registers a service factory
func (b *ApplicationBuilder) WithServiceFactory(name string, factory ServiceFactory) *ApplicationBuilder {
	if err := b.app.container.Register(name, factory); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build builds the configured application
func (b *ApplicationBuilder) Build() (*DefaultApplication, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	cfg := b.config
	if cfg == nil {
		var err error
		cfg, err = b.app.loader.Load(b.configFile)
		if err != nil {
			return nil, &ApplicationError{Operation: "load config", Err: err}
		}
	}
	if err := b.app.Configure(cfg); err != nil {
		return nil, err
	}

	if b.watch {
		file := b.configFile
		if file == "" {
			found, err := b.app.loader.FindConfigFile()
			if err != nil {
				return nil, fmt.Errorf("%w: watching needs a config file: %w", config.ErrConfigWatchError, err)
			}
			file = found
		}
		err := b.app.lifecycleManager.Register(ServiceConfigWatcher,
			&ConfigWatcherService{app: b.app, file: file}, ServiceLogger)
		if err != nil {
			return nil, err
		}
	}
	return b.app, nil
}
