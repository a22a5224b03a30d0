package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/triage-agenda/internal/agenda"
	"github.com/naka-gawa/triage-agenda/internal/config"
	"github.com/naka-gawa/triage-agenda/internal/gateway"
	"github.com/naka-gawa/triage-agenda/internal/render"
	"github.com/naka-gawa/triage-agenda/internal/usecase"
)

// newLogger discards all logs unless --verbose is set.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// loadConfig reads --config and lets explicit flags override the file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if f := cmd.Flags().Lookup("reports"); f != nil && f.Changed {
		cfg.ReportsDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("templates"); f != nil && f.Changed {
		cfg.TemplatesDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("concurrency"); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt("concurrency")
		cfg.Concurrency = n
	}
	return cfg, nil
}

func loadCatalog(cfg config.Config) (*agenda.Catalog, error) {
	if cfg.ReportsDir != "" {
		return agenda.LoadCatalog(os.DirFS(cfg.ReportsDir))
	}
	return agenda.Builtin()
}

func loadTemplates(cfg config.Config) (*render.Templates, error) {
	if cfg.TemplatesDir != "" {
		return render.Load(os.DirFS(cfg.TemplatesDir))
	}
	return render.New()
}

// app is everything a command needs to produce agendas.
type app struct {
	catalog   *agenda.Catalog
	factory   agenda.QueryFactory
	templates *render.Templates
	logger    *zap.Logger
	cfg       config.Config
}

func newApp(cmd *cobra.Command) (*app, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	templates, err := loadTemplates(cfg)
	if err != nil {
		return nil, err
	}
	githubGateway, err := gateway.NewGitHubGateway(cfg.GitHubToken, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	return &app{
		catalog:   catalog,
		factory:   agenda.GatewayFactory{GW: githubGateway},
		templates: templates,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// newAgenda wires a fresh pipeline; the gate is shared by every fetch of one run.
func (a *app) newAgenda(renderer usecase.Renderer) *usecase.Agenda {
	dispatcher := usecase.NewDispatcher(usecase.NewGate(a.cfg.Concurrency), a.logger)
	meetings := gateway.NewGoogleCalendar(a.cfg.Calendar.APIKey, a.cfg.Calendar.ID, a.logger)
	window := time.Duration(a.cfg.Calendar.WindowDays) * 24 * time.Hour
	return usecase.NewAgenda(dispatcher, meetings, renderer, a.logger, usecase.WithMeetingsWindow(window))
}
