package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/eslayer/internal/app"
	"github.com/kailas-cloud/eslayer/internal/metrics"
	chiTransport "github.com/kailas-cloud/eslayer/internal/transport/chi"
	healthuc "github.com/kailas-cloud/eslayer/internal/usecase/health"
	"github.com/kailas-cloud/eslayer/internal/version"
)

// withApp wraps a command body that needs the wired data layer.
func (p runParams) withApp(fn func(cmd *cobra.Command, l *loaded, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		l, cleanup, err := p.load(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return fn(cmd, l, args)
	}
}

// withEngine is withApp for commands that talk to the engine; it waits for
// the engine first.
func (p runParams) withEngine(fn func(cmd *cobra.Command, l *loaded, args []string) error) func(*cobra.Command, []string) error {
	return p.withApp(func(cmd *cobra.Command, l *loaded, args []string) error {
		if err := l.Ready(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd, l, args)
	})
}

func newResourcesCmd(p runParams) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List declared resources and the indexes they resolve to",
		Args:  cobra.NoArgs,
		RunE: p.withApp(func(cmd *cobra.Command, l *loaded, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RESOURCE\tSOURCE\tINDEX\tSHARED")
			for _, t := range l.Resources.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", t.Resource, t.Source, t.Index, t.Shared)
			}
			return tw.Flush()
		}),
	}
}

func newResolveCmd(p runParams) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve RESOURCE",
		Short: "Show where a resource's documents live",
		Args:  cobra.ExactArgs(1),
		RunE: p.withApp(func(cmd *cobra.Command, l *loaded, args []string) error {
			t, err := l.Resources.Resolve(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), chiTransport.TargetResponse{
				Resource: t.Resource,
				Source:   t.Source,
				Index:    t.Index,
				Type:     t.Type,
				Shared:   t.Shared,
			})
		}),
	}
}

func newMappingCmd(p runParams) *cobra.Command {
	return &cobra.Command{
		Use:   "mapping RESOURCE",
		Short: "Print the index mapping a resource's schema produces",
		Args:  cobra.ExactArgs(1),
		RunE: p.withApp(func(cmd *cobra.Command, l *loaded, args []string) error {
			raw, err := l.Resources.Mapping(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		}),
	}
}

func newEnsureCmd(p runParams) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure [RESOURCE...]",
		Short: "Create missing indexes, for all resources when none are named",
		RunE: p.withEngine(func(cmd *cobra.Command, l *loaded, args []string) error {
			if err := l.Resources.Ensure(cmd.Context(), args...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ready")
			return nil
		}),
	}
}

func newPutMappingCmd(p runParams) *cobra.Command {
	return &cobra.Command{
		Use:   "put-mapping RESOURCE",
		Short: "Push the declared mapping to the resource's existing index",
		Args:  cobra.ExactArgs(1),
		RunE: p.withEngine(func(cmd *cobra.Command, l *loaded, args []string) error {
			return l.Resources.PutMapping(cmd.Context(), args[0])
		}),
	}
}

func newPutSettingsCmd(p runParams) *cobra.Command {
	return &cobra.Command{
		Use:   "put-settings RESOURCE",
		Short: "Push the declared updatable settings to the resource's index",
		Args:  cobra.ExactArgs(1),
		RunE: p.withEngine(func(cmd *cobra.Command, l *loaded, args []string) error {
			return l.Resources.PutSettings(cmd.Context(), args[0])
		}),
	}
}

func newDropCmd(p runParams) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop RESOURCE",
		Short: "Delete the index of a resource and every document in it",
		Args:  cobra.ExactArgs(1),
		RunE: p.withEngine(func(cmd *cobra.Command, l *loaded, args []string) error {
			t, err := l.Resources.Resolve(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to drop index %s without --yes", t.Index)
			}
			return l.Resources.Drop(cmd.Context(), args[0])
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

func newHealthCmd(p runParams) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check engine connectivity and missing indexes",
		Args:  cobra.NoArgs,
		RunE: p.withApp(func(cmd *cobra.Command, l *loaded, _ []string) error {
			report := l.Health.Check(cmd.Context())
			checks := make(map[string]string, len(report.Checks))
			for k, v := range report.Checks {
				checks[k] = string(v)
			}
			if err := printJSON(cmd.OutOrStdout(), chiTransport.HealthResponse{
				Status:  string(report.Status),
				Checks:  checks,
				Missing: report.Missing,
			}); err != nil {
				return err
			}
			if report.Status == healthuc.Unhealthy {
				return errors.New("engine unreachable")
			}
			return nil
		}),
	}
}

func newServeCmd(p runParams) *cobra.Command {
	var (
		port        int
		initIndexes bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API",
		Args:  cobra.NoArgs,
		RunE: p.withApp(func(cmd *cobra.Command, l *loaded, _ []string) error {
			cfg := l.Config
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			logger := l.Logger

			logger.Info("Starting eslayer admin server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", l.env),
				zap.Int("http_port", cfg.HTTP.Port),
				zap.Strings("engine_urls", cfg.Engine.URLs),
				zap.String("dialect", cfg.Engine.Dialect),
			)

			ctx := cmd.Context()
			if err := l.Ready(ctx); err != nil {
				return err
			}
			logger.Info("Connected to engine")

			if initIndexes {
				if err := l.Resources.Ensure(ctx); err != nil {
					return err
				}
				logger.Info("Indexes initialized")
			}

			metrics.Register()
			srv := newHTTPServer(l.App, cfg.HTTP.Port)
			return serve(ctx, srv, time.Duration(cfg.HTTP.ShutdownSec)*time.Second, logger)
		}),
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port, overrides http.port")
	cmd.Flags().BoolVar(&initIndexes, "init-indexes", false, "Create missing indexes before serving")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eslayer %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

// newHTTPServer builds the admin HTTP server for a.
func newHTTPServer(a *app.App, port int) *http.Server {
	server := chiTransport.NewServer(a.Resources, a.Health, a.Logger)
	cfg := a.Config.HTTP
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      chiTransport.NewRouter(server, a.Config.Auth, a.Logger),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
	}
}

// serve runs srv until ctx is canceled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
