package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rulekit/rulekit/pkg/catalog"
	"github.com/rulekit/rulekit/pkg/engine"
	"github.com/rulekit/rulekit/pkg/logger"
	"github.com/rulekit/rulekit/pkg/presenter"
	"github.com/rulekit/rulekit/pkg/server"
)

// ServeConfig holds the flag values for the serve command
type ServeConfig struct {
	Host  string
	Port  int
	Watch bool
}

// NewServeConfig returns the serve command defaults
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:  "127.0.0.1",
		Port:  8315,
		Watch: true,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the activation engine over HTTP",
	Long: `Serve the activation engine over HTTP. Concurrent requests share one
catalog snapshot store; with --watch the catalog hot-reloads on change using
copy-on-write snapshot replacement.`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := NewServeConfig()
		if host, err := cmd.Flags().GetString("host"); err == nil {
			config.Host = host
		}
		if port, err := cmd.Flags().GetInt("port"); err == nil {
			config.Port = port
		}
		if watch, err := cmd.Flags().GetBool("watch"); err == nil {
			config.Watch = watch
		}
		runServe(config)
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to listen on")
	serveCmd.Flags().Bool("watch", defaults.Watch, "Hot-reload the catalog on change")
	viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(config *ServeConfig) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, err := newLoader()
	if err != nil {
		presenter.Error(err, "Failed to configure catalog loader")
		os.Exit(1)
	}

	store, err := catalog.NewStore(ctx, loader)
	if err != nil {
		presenter.Error(err, "Failed to load catalog")
		os.Exit(1)
	}

	policy, err := engine.PolicyFromViper()
	if err != nil {
		presenter.Error(err, "Invalid policy configuration")
		os.Exit(1)
	}

	if config.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.G(ctx).WithError(err).Warn("Catalog watcher stopped")
			}
		}()
	}

	srv, err := server.NewServer(store, policy, &server.Config{
		Host: config.Host,
		Port: config.Port,
	})
	if err != nil {
		presenter.Error(err, "Failed to create server")
		os.Exit(1)
	}

	if err := srv.Start(ctx); err != nil {
		presenter.Error(err, "Server exited with error")
		os.Exit(1)
	}
}
