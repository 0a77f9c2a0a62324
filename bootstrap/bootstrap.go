// Package bootstrap wires stores, services, and the HTTP server from a
// loaded configuration, and owns startup and graceful shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/adapters/auth"
	"github.com/stencilcms/stencil/adapters/clock"
	"github.com/stencilcms/stencil/adapters/email"
	"github.com/stencilcms/stencil/adapters/hasher"
	"github.com/stencilcms/stencil/adapters/idgen"
	"github.com/stencilcms/stencil/adapters/memory"
	"github.com/stencilcms/stencil/adapters/metrics"
	"github.com/stencilcms/stencil/adapters/sqlite"
	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/config"
	"github.com/stencilcms/stencil/core/events"
	"github.com/stencilcms/stencil/fields"
	"github.com/stencilcms/stencil/ports"
	"github.com/stencilcms/stencil/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB // nil with the memory driver
	Bus        *events.Bus
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	Schemas   *app.SchemaService
	Fields    *app.FieldService
	Documents *app.DocumentService
	Users     *app.UserService
	Webhooks  *app.WebhookService
}

// stores is the persistence layer behind the services, built per
// configured driver.
type stores struct {
	schemas   ports.SchemaStore
	fieldDefs ports.FieldStore
	documents ports.DocumentStore
	revisions ports.RevisionStore
	users     ports.UserStore
	roles     ports.RoleStore
	webhooks  ports.WebhookStore
	calls     ports.WebhookCallStore
	lifecycle ports.FieldLifecycle
}

// NewWithHotReload loads the config file at path, starts the
// application, and watches the file (and SIGHUP) for reloads.
// Reloadable settings take effect without a restart; the rest need one.
func NewWithHotReload(path string) (*App, error) {
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	holder, err := config.NewHolder(path, bootLogger)
	if err != nil {
		return nil, err
	}

	a, err := New(holder)
	if err != nil {
		return nil, err
	}

	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()
	return a, nil
}

// NewFromConfig starts the application from an already-loaded
// configuration, for environment-only deployments. Hot reload is not
// available.
func NewFromConfig(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)
	return New(config.NewStaticHolder(cfg, logger))
}

// New creates and initializes the application from a config holder.
func New(holder *config.Holder) (*App, error) {
	cfg := *holder.Get()
	logger := setupLogger(cfg.Logging)

	logger.Info().Msg("initializing stencil")

	a := &App{
		Logger: logger,
		Config: holder,
		Bus:    events.NewBus(logger),
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	st, err := a.buildStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("init stores: %w", err)
	}

	a.buildServices(cfg, st)

	if err := a.ensureAdmin(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	if err := a.initHTTPServer(cfg); err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}

	holder.OnChange(func(c *config.Config) {
		if level, err := zerolog.ParseLevel(c.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})

	return a, nil
}

func (a *App) buildStores(cfg config.Config) (stores, error) {
	switch cfg.Database.Driver {
	case "memory":
		fieldDefs := memory.NewFieldStore()
		documents := memory.NewDocumentStore()
		revisions := memory.NewRevisionStore()
		a.Logger.Info().Msg("using in-memory stores; data is not persisted")
		return stores{
			schemas:   memory.NewSchemaStore(fieldDefs),
			fieldDefs: fieldDefs,
			documents: documents,
			revisions: revisions,
			users:     memory.NewUserStore(),
			roles:     memory.NewRoleStore(),
			webhooks:  memory.NewWebhookStore(),
			calls:     memory.NewWebhookCallStore(),
			lifecycle: memory.NewFieldLifecycle(fieldDefs, documents, revisions, clock.Real{}, idgen.UUID{}),
		}, nil

	default: // sqlite, validated at config load
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return stores{}, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")
		return stores{
			schemas:   sqlite.NewSchemaStore(db),
			fieldDefs: sqlite.NewFieldStore(db),
			documents: sqlite.NewDocumentStore(db),
			revisions: sqlite.NewRevisionStore(db),
			users:     sqlite.NewUserStore(db),
			roles:     sqlite.NewRoleStore(db),
			webhooks:  sqlite.NewWebhookStore(db),
			calls:     sqlite.NewWebhookCallStore(db),
			lifecycle: sqlite.NewFieldLifecycle(db, clock.Real{}),
		}, nil
	}
}

func (a *App) buildServices(cfg config.Config, st stores) {
	clk := clock.Real{}
	ids := idgen.UUID{}
	registry := fields.Builtin()
	registry.Freeze()

	var observe func(string)
	if a.Metrics != nil {
		observe = func(outcome string) {
			a.Metrics.WebhookDispatches.WithLabelValues(outcome).Inc()
		}
	}
	a.Webhooks = app.NewWebhookServiceWithOptions(st.webhooks, st.calls, clk, ids, a.Logger, app.WebhookOptions{
		Timeout:         cfg.Webhooks.Timeout,
		MaxResponseSize: cfg.Webhooks.MaxResponseSize,
		Observe:         observe,
	})

	a.Schemas = app.NewSchemaService(st.schemas, st.fieldDefs, st.documents, st.revisions, st.lifecycle, a.Bus, a.Webhooks, clk, ids, a.Logger)
	a.Fields = app.NewFieldService(st.schemas, st.fieldDefs, st.lifecycle, registry, a.Bus, a.Webhooks, clk, ids, a.Logger)
	a.Documents = app.NewDocumentService(st.documents, st.schemas, st.revisions, registry, a.Webhooks, clk, ids, a.Logger)

	a.Users = app.NewUserServiceWithOptions(
		st.users,
		st.roles,
		hasher.NewBcrypt(0),
		auth.NewTokenService(cfg.Auth.JWTSecret),
		a.buildEmailSender(cfg),
		a.Webhooks,
		clk,
		ids,
		a.Logger,
		app.UserOptions{
			SessionTTL: cfg.Auth.TokenTTL,
			KeyPrefix:  cfg.Auth.KeyPrefix,
		},
	)
}

func (a *App) buildEmailSender(cfg config.Config) ports.EmailSender {
	switch cfg.Email.Provider {
	case "smtp":
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:       cfg.Email.SMTP.Host,
			Port:       cfg.Email.SMTP.Port,
			Username:   cfg.Email.SMTP.Username,
			Password:   cfg.Email.SMTP.Password,
			From:       cfg.Email.SMTP.From,
			FromName:   cfg.Email.SMTP.FromName,
			UseTLS:     cfg.Email.SMTP.UseTLS,
			SkipVerify: cfg.Email.SMTP.SkipVerify,
			Timeout:    cfg.Email.SMTP.Timeout,
		})
		if err != nil {
			a.Logger.Warn().Err(err).Msg("smtp sender unavailable, email disabled")
			return email.NewNoopSender(a.Logger)
		}
		a.Logger.Info().Str("host", cfg.Email.SMTP.Host).Msg("smtp email enabled")
		return sender
	case "mock":
		return email.NewMockSender()
	default:
		return email.NewNoopSender(a.Logger)
	}
}

func (a *App) initHTTPServer(cfg config.Config) error {
	handler, err := web.NewHandler(web.Deps{
		Schemas:      a.Schemas,
		Fields:       a.Fields,
		Documents:    a.Documents,
		Users:        a.Users,
		Webhooks:     a.Webhooks,
		Bus:            a.Bus,
		APIKeyHeader:   cfg.Auth.Header,
		DefaultPerPage: cfg.Content.DefaultPerPage,
		MaxPerPage:     cfg.Content.MaxPerPage,
		Metrics:        a.Metrics,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         a.Logger,
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
	return nil
}

// Run starts the HTTP server and blocks until a signal or server error.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Webhooks != nil {
		a.Webhooks.Shutdown()
	}

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
