package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kilnworks/kiln/internal/config"
	"github.com/kilnworks/kiln/internal/factory"
	"github.com/kilnworks/kiln/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		uri         string
		port        int
		maxRes      int
		bufferSize  int
		archivePath string
		noAdmin     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a kiln resource daemon",
		Long: `Run a factory with the built-in handlers registered and the
introspection endpoint enabled, until interrupted.`,
		Example: `  kiln serve --uri file:///var/lib/assets
  kiln serve --uri http://assets.internal:8080/data --port 9001
  kiln serve --config kiln.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Build configuration with CLI overrides.
			cfg := config.DefaultConfig()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("uri") || cfg.Factory.URI == "" {
				cfg.Factory.URI = uri
			}
			if cmd.Flags().Changed("port") {
				cfg.Admin.Port = port
			}
			if cmd.Flags().Changed("max-resources") {
				cfg.Factory.MaxResources = maxRes
			}
			if cmd.Flags().Changed("buffer-size") {
				cfg.Factory.StreamBufferSize = bufferSize
			}
			if noAdmin {
				cfg.Admin.Enabled = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// 2. Create logger.
			logger, err := buildLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()

			// 3. Assemble factory parameters.
			params := factory.DefaultNewFactoryParams()
			params.MaxResources = cfg.Factory.MaxResources
			params.StreamBufferSize = cfg.Factory.StreamBufferSize
			params.HTTPServerPort = cfg.Admin.Port
			params.Logger = logger
			if cfg.Factory.ReloadSupport {
				params.Flags |= factory.FlagReloadSupport
			}
			if cfg.Admin.Enabled {
				params.Flags |= factory.FlagHTTPServer
			}
			if archivePath != "" {
				blob, err := os.ReadFile(archivePath)
				if err != nil {
					return fmt.Errorf("reading archive %s: %w", archivePath, err)
				}
				params.BuiltinsArchive = blob
			}

			// 4. Create the factory and register the built-in handlers.
			fac, err := factory.New(params, cfg.Factory.URI)
			if err != nil {
				return fmt.Errorf("creating factory: %w", err)
			}
			defer fac.Close()

			if err := handlers.RegisterBuiltins(fac); err != nil {
				return fmt.Errorf("registering handlers: %w", err)
			}

			// Print startup banner.
			banner := color.New(color.FgCyan, color.Bold)
			banner.Println("Kiln Resource Daemon")
			fmt.Printf("   Root URI:   %s\n", cfg.Factory.URI)
			if addr := fac.ServerAddr(); addr != "" {
				fmt.Printf("   Admin:      http://%s\n", addr)
			}
			fmt.Printf("   Factory ID: %s\n", fac.UID())
			fmt.Println()

			// 5. Pump introspection requests until interrupted. The factory
			// is single-owner; this loop is the owning goroutine.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					fac.Update()
				case sig := <-sigCh:
					logger.Info("received shutdown signal", zap.String("signal", sig.String()))
					logger.Info("kiln daemon stopped")
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&uri, "uri", "file:///tmp/kiln", "Factory root URI (file:// or http://)")
	cmd.Flags().IntVar(&port, "port", 8001, "Introspection server port")
	cmd.Flags().IntVar(&maxRes, "max-resources", 1024, "Intern table capacity")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", 4*1024*1024, "Stream buffer size in bytes")
	cmd.Flags().StringVar(&archivePath, "archive", "", "Builtins archive consulted before other transports")
	cmd.Flags().BoolVar(&noAdmin, "no-admin", false, "Disable the introspection server")

	return cmd
}

// buildLogger constructs a zap logger from the log configuration.
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
