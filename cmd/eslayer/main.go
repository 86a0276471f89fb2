package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/eslayer/internal/app"
	"github.com/kailas-cloud/eslayer/internal/config"
	logpkg "github.com/kailas-cloud/eslayer/internal/logger"
	"github.com/kailas-cloud/eslayer/internal/version"
)

const (
	flagEnv       = "env"
	flagConfigDir = "config-dir"
	flagResources = "resources"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing.
func Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(defaultRunParams())
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runParams carries the dependencies commands are built with.
type runParams struct {
	// transport replaces the engine HTTP transport; nil uses the default.
	transport http.RoundTripper
}

func defaultRunParams() runParams {
	return runParams{}
}

func newRootCmd(p runParams) *cobra.Command {
	root := &cobra.Command{
		Use:          "eslayer",
		Short:        "Elasticsearch data layer for REST resources",
		Long:         "eslayer maps declared REST resources onto Elasticsearch indexes and serves the admin API.",
		Version:      version.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{.Version}}
`)

	flags := root.PersistentFlags()
	flags.String(flagEnv, config.GetEnv(), "Environment name; selects <config-dir>/<env>.yaml")
	flags.String(flagConfigDir, "", "Directory holding the environment config files")
	flags.String(flagResources, "", "Resources file, overrides resources_file")
	config.RegisterFlags(flags)

	root.AddCommand(
		newResourcesCmd(p),
		newResolveCmd(p),
		newMappingCmd(p),
		newEnsureCmd(p),
		newPutMappingCmd(p),
		newPutSettingsCmd(p),
		newDropCmd(p),
		newHealthCmd(p),
		newServeCmd(p),
		newVersionCmd(),
	)
	return root
}

// loaded is a wired data layer plus the logger that goes with it.
type loaded struct {
	*app.App
	env string
}

// load reads configuration and resources named by the command flags and
// wires the data layer. The returned cleanup flushes the logger.
func (p runParams) load(cmd *cobra.Command) (*loaded, func(), error) {
	flags := cmd.Flags()
	env, _ := flags.GetString(flagEnv)
	dir, _ := flags.GetString(flagConfigDir)

	var (
		cfg config.Config
		err error
	)
	if dir != "" {
		cfg, err = config.LoadDir(dir, env)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyOverrides(&cfg, flags); err != nil {
		return nil, nil, err
	}
	if f, _ := flags.GetString(flagResources); f != "" {
		cfg.ResourcesFile = f
	}
	if cfg.ResourcesFile == "" {
		return nil, nil, fmt.Errorf("no resources file configured")
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cleanup := func() { _ = logger.Sync() }

	reg, err := config.LoadResources(cfg.ResourcesFile)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var opts []app.Option
	if p.transport != nil {
		opts = append(opts, app.WithTransport(p.transport))
	}
	a, err := app.New(cfg, reg, logger, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Debug("Configuration loaded",
		zap.String("env", env),
		zap.Strings("engine_urls", cfg.Engine.URLs),
		zap.String("dialect", cfg.Engine.Dialect),
		zap.String("resources_file", cfg.ResourcesFile),
		zap.Int("resources", reg.Len()),
	)
	return &loaded{App: a, env: env}, cleanup, nil
}
