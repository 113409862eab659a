package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/s1natex/todo-api-GO/internal/client"
	"github.com/s1natex/todo-api-GO/internal/config"
	"github.com/s1natex/todo-api-GO/internal/console"
	"github.com/s1natex/todo-api-GO/internal/tasks"
	"github.com/s1natex/todo-api-GO/internal/telemetry"
)

type app struct {
	configFile string
	logLevel   string
	remote     bool

	cfg      config.Config
	logger   *slog.Logger
	shutdown telemetry.ShutdownFunc
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "todo",
		Short:         "Manage a todo list stored locally or behind the todo API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.Background())
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", os.Getenv("TODO_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.remote, "remote", false, "use the HTTP API at api_url instead of the local store")

	root.AddCommand(a.consoleCmd())
	root.AddCommand(a.remoteCmd())
	root.AddCommand(a.listCmd())
	root.AddCommand(a.addCmd())
	root.AddCommand(a.editCmd())
	root.AddCommand(a.doneCmd(true))
	root.AddCommand(a.doneCmd(false))
	root.AddCommand(a.rmCmd())
	root.AddCommand(a.checkCmd())

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())

	a.shutdown, err = telemetry.Setup(cmd.Context(), telemetry.Options{
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "todo-cli",
		Writer:      cmd.ErrOrStderr(),
	})
	return err
}

// backend opens the configured store as a session, or the API client when
// remote is set. The returned func releases the store.
func (a *app) backend(ctx context.Context, remote bool) (console.Backend, func(), error) {
	if remote {
		c, err := client.New(a.cfg.APIURL, nil)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}

	repo, err := tasks.OpenRepository(ctx, a.repoOptions(), a.logger)
	if err != nil {
		return nil, nil, err
	}
	closeRepo := func() {
		if err := repo.Close(); err != nil {
			a.logger.Warn("store_close_error", slog.String("error", err.Error()))
		}
	}

	s, err := console.OpenSession(ctx, repo, nil)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	return s, closeRepo, nil
}

func (a *app) repoOptions() tasks.RepoOptions {
	return tasks.RepoOptions{
		Backend: a.cfg.Store.Backend,
		Path:    a.cfg.Store.Path,
		DSN:     a.cfg.Store.DSN,
	}
}
