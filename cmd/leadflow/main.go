// Command leadflow runs the marketing agent backend.
//
// Usage:
//
//	leadflow serve --config config.yaml
//	leadflow serve --port 9090
//	leadflow validate --config config.yaml
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/agents"
	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/llms"
	"github.com/leadflowhq/leadflow/pkg/logger"
	"github.com/leadflowhq/leadflow/pkg/observability"
	"github.com/leadflowhq/leadflow/pkg/records"
	"github.com/leadflowhq/leadflow/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the agent server."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text or json)." default:"text"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("leadflow version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	tracerCfg := observability.TracerConfig{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    cfg.Observability.Tracing.Exporter,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: cfg.Observability.Tracing.ServiceName,
	}
	if _, err := observability.InitGlobalTracer(ctx, tracerCfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	metricsHandler, err := observability.InitMetrics(cfg.Observability.Metrics.Enabled)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Both stores share one pool so sqlite does not hit "database is
	// locked" under concurrent turns.
	db, err := openDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	convStore, err := conversation.NewSQLStore(db, cfg.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to create conversation store: %w", err)
	}
	recordStore, err := records.NewSQLStore(db, cfg.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}

	provider := llms.NewOpenAIProvider(&cfg.LLM)

	registry, err := agents.BuildRegistry(cfg, recordStore, convStore, provider)
	if err != nil {
		return fmt.Errorf("failed to build agent registry: %w", err)
	}

	rt := agent.NewRuntime(provider, convStore)

	srv, err := server.New(&cfg.Server, rt, registry, convStore, metricsHandler)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("Starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"model", cfg.LLM.Model,
		"database", cfg.Database.Driver,
		"agents", registry.Names())

	return srv.Run(ctx)
}

// ValidateCmd validates a configuration file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate command")
	}

	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s: configuration is valid\n", cli.Config)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		config.LoadDotEnv()
		slog.Info("No config file given, using defaults")
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, nil
}

func openDatabase(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("leadflow"),
		kong.Description("leadflow - conversational marketing agent backend"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
