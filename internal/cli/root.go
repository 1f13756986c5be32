// Package cli implements the uigen command line studio.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"uistudio/internal/client"
	"uistudio/internal/config"
	"uistudio/internal/pkg/logger"
	"uistudio/internal/studio"
)

var version = "dev"

type rootOptions struct {
	configPath string
	baseURL    string
	tokenFile  string
	verbose    bool
	noAutoSave bool
}

// env is the per-invocation state shared by subcommands.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	api    *client.Client
	tokens tokenFile
	out    io.Writer
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	e := &env{}

	root := &cobra.Command{
		Use:           "uigen",
		Short:         "Generate, preview and export UI components from prompts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(opts, cmd.OutOrStdout())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default configs/config.toml)")
	root.PersistentFlags().StringVar(&opts.baseURL, "url", "", "server base URL")
	root.PersistentFlags().StringVar(&opts.tokenFile, "token-file", "", "where the login token is stored")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&opts.noAutoSave, "no-autosave", false, "only save sessions on explicit flush and exit")

	root.AddCommand(
		newRegisterCommand(e),
		newLoginCommand(e),
		newWhoamiCommand(e),
		newSessionsCommand(e),
		newGenerateCommand(e),
		newPreviewCommand(e),
		newExportCommand(e),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (e *env) init(opts *rootOptions, out io.Writer) error {
	_ = godotenv.Load()
	if opts.configPath != "" {
		if err := os.Setenv("CONFIG_FILE", opts.configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.Client.BaseURL = opts.baseURL
	}
	if opts.tokenFile != "" {
		cfg.Client.TokenFile = opts.tokenFile
	}
	if opts.noAutoSave {
		cfg.Client.AutoSave = false
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level})
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.log = log
	e.out = out
	e.tokens = tokenFile(cfg.Client.TokenFile)
	e.api = client.New(cfg.Client.BaseURL, client.WithLogger(log.Named("client")))
	if token, err := e.tokens.Load(); err == nil && token != "" {
		e.api.SetToken(token)
	}
	return nil
}

func (e *env) requestTimeout() time.Duration {
	return time.Duration(e.cfg.Client.RequestTimeoutSeconds) * time.Second
}

// studio wires a synchronizer and orchestrator on top of the API client.
func (e *env) studio() (*studio.Synchronizer, *studio.Orchestrator, error) {
	policy, err := studio.ParseRecordPolicy(e.cfg.Client.RecordPolicy)
	if err != nil {
		return nil, nil, err
	}
	sync := studio.NewSynchronizer(e.api, studio.Options{
		DisableAutoSave: !e.cfg.Client.AutoSave,
		DebounceWindow:  time.Duration(e.cfg.Client.DebounceMillis) * time.Millisecond,
		RequestTimeout:  e.requestTimeout(),
		Logger:          e.log,
	})
	orch := studio.NewOrchestrator(sync, e.api, studio.OrchestratorOptions{
		Policy:          policy,
		GenerateTimeout: time.Duration(e.cfg.Generation.TimeoutSeconds) * time.Second,
		Logger:          e.log,
	})
	return sync, orch, nil
}

func (e *env) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
