// show-tracker serves a small JSON API for tracking how many episodes of each
// show have been watched.
//
// Usage:
//
//	show-tracker [--host=0.0.0.0] [--port=8080] [--debug]
//
// Everything else comes from the environment or a YAML file named by
// CONFIG_FILE; see the config package.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stevemurr/show-tracker/config"
	"github.com/stevemurr/show-tracker/handler"
	"github.com/stevemurr/show-tracker/logging"
	"github.com/stevemurr/show-tracker/store"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

// sampleShows is loaded into an empty shows collection at start-up.
var sampleShows = []store.Record{
	{"name": "Game of Thrones", "episodes_seen": 10},
	{"name": "Naruto", "episodes_seen": 220},
	{"name": "Black Mirror", "episodes_seen": 3},
	{"name": "Brooklyn Nine-Nine", "episodes_seen": 100},
	{"name": "Avatar: The Last Airbender", "episodes_seen": 20},
}

func newRootCmd() *cobra.Command {
	var (
		host  string
		port  int
		debug bool
	)
	cmd := &cobra.Command{
		Use:           "show-tracker",
		Short:         "JSON API for tracking watched shows",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(os.LookupEnv)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("debug") {
				cfg.Debug = debug
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "interface to listen on")
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logging.Init(cfg.Debug, cfg.LogFormat)
	log := logging.New("server")

	s, err := store.New(cfg.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("create store (backend=%s): %w", cfg.Backend, err)
	}
	if c, ok := s.(interface{ Close() error }); ok {
		defer c.Close()
	}
	if cfg.Seed {
		n, err := store.Seed(s, handler.Shows, sampleShows)
		if err != nil {
			return fmt.Errorf("seed %s: %w", handler.Shows, err)
		}
		log.Debug("seeded collection", "collection", handler.Shows, "records", n)
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handler.Chain(handler.New(s),
			handler.RequestID,
			handler.Logging,
			handler.Recover,
			handler.CORS(cfg.AllowedOrigins),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("show tracker starting",
			"addr", srv.Addr, "store", cfg.Backend, "data", cfg.DataDir, "debug", cfg.Debug)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
