// Package cli implements the resume-screener command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fmuoria/resume-screener/internal/agent"
	"github.com/fmuoria/resume-screener/internal/config"
	"github.com/fmuoria/resume-screener/internal/ingestion"
	"github.com/fmuoria/resume-screener/internal/llm"
	"github.com/fmuoria/resume-screener/internal/logging"
	"github.com/fmuoria/resume-screener/internal/session"
)

// ClientFactory builds the language model client
type ClientFactory func(ctx context.Context, cfg llm.Config, logger *slog.Logger) (llm.Client, error)

type rootOptions struct {
	configPath string
	logLevel   string
	newClient  ClientFactory
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree with the real language model backends
func NewRootCommand() *cobra.Command {
	return newRootCommand(llm.New)
}

func newRootCommand(newClient ClientFactory) *cobra.Command {
	opts := &rootOptions{newClient: newClient}

	root := &cobra.Command{
		Use:   "resume-screener",
		Short: "Screen resumes against a job description with a language model",
		Long: `Resume Screener derives evaluation criteria from a job description,
scores each resume against the weighted criteria and ranks the candidates.

Run "resume-screener serve" for the HTTP API or "resume-screener evaluate"
to screen a folder of resumes from the terminal.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (JSON or YAML, default is the user config path)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(opts),
		newEvaluateCommand(opts),
		newCriteriaCommand(opts),
		newConfigCommand(opts),
		newUploadsCommand(opts),
	)
	return root
}

// loadConfig reads every configuration layer, applies flag overrides and
// validates the result
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := o.loadConfigUnvalidated()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyToEnv()
	return cfg, nil
}

func (o *rootOptions) loadConfigUnvalidated() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// app holds the wired components of one command run
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	agent   *agent.Agent
	files   *ingestion.FileHandler
	closers []func() error
}

type appOptions struct {
	// gmail wires the Gmail handler when credentials are present
	gmail    bool
	logOut   io.Writer
	authCode func(authURL string) (string, error)
}

func (o *rootOptions) newApp(ctx context.Context, cfg *config.Config, ao appOptions) (*app, error) {
	logOpts := cfg.Logging()
	logOpts.Output = ao.logOut
	logger := logging.Setup(logOpts)

	a := &app{cfg: cfg, logger: logger}

	client, err := o.newClient(ctx, cfg.LLM(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	store, err := a.sessionStore(ctx)
	if err != nil {
		_ = client.Close()
		a.Close()
		return nil, err
	}

	a.files = newFileHandler(cfg, logger)

	agentOpts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithMaxCriteria(cfg.MaxCriteria),
		agent.WithMaxGenerated(cfg.MaxGeneratedCriteria),
		agent.WithWorkers(cfg.EvaluationWorkers),
	}
	if ao.gmail {
		gh, err := a.gmailHandler(ctx, ao.authCode)
		if err != nil {
			_ = client.Close()
			a.Close()
			return nil, err
		}
		if gh != nil {
			agentOpts = append(agentOpts, agent.WithGmail(gh))
		}
	}

	a.agent = agent.New(client, store, a.files, agentOpts...)
	a.closers = append(a.closers, a.agent.Close)
	return a, nil
}

func newFileHandler(cfg *config.Config, logger *slog.Logger) *ingestion.FileHandler {
	return ingestion.NewFileHandler(cfg.UploadsDir,
		ingestion.WithMaxSize(cfg.MaxUploadBytes),
		ingestion.WithExtensions(cfg.AllowedExtensions...),
		ingestion.WithLogger(logger),
	)
}

func (a *app) sessionStore(ctx context.Context) (session.Store, error) {
	if a.cfg.SessionBackend != config.SessionRedis {
		return session.NewMemoryStore(a.cfg.SessionTTL), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.closers = append(a.closers, rdb.Close)

	store := session.NewRedisStore(rdb, a.cfg.SessionTTL)
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.RedisAddr, err)
	}
	a.logger.Info("using redis session store", slog.String("addr", a.cfg.RedisAddr))
	return store, nil
}

// gmailHandler returns nil when no Gmail credentials file exists
func (a *app) gmailHandler(ctx context.Context, authCode func(string) (string, error)) (*ingestion.GmailHandler, error) {
	if _, err := os.Stat(a.cfg.GmailCredentialsPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Info("gmail credentials not found, gmail ingestion disabled",
				slog.String("path", a.cfg.GmailCredentialsPath))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read gmail credentials: %w", err)
	}

	gh, err := ingestion.NewGmailHandler(ctx, ingestion.GmailConfig{
		CredentialsPath: a.cfg.GmailCredentialsPath,
		TokenPath:       a.cfg.GmailTokenPath,
		AuthCode:        authCode,
	}, a.files, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gmail handler: %w", err)
	}
	return gh, nil
}

// Close releases everything the app opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("cleanup failed", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}

// promptAuthCode asks for an OAuth code on the terminal
func promptAuthCode(in io.Reader, out io.Writer) func(string) (string, error) {
	return func(authURL string) (string, error) {
		fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)
		var code string
		if _, err := fmt.Fscan(in, &code); err != nil {
			return "", fmt.Errorf("unable to read authorization code: %w", err)
		}
		return code, nil
	}
}
