package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
	"github.com/abelbrown/rabbitbrain/internal/brain"
	"github.com/abelbrown/rabbitbrain/internal/config"
	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/metrics"
	"github.com/abelbrown/rabbitbrain/internal/store"
	"github.com/abelbrown/rabbitbrain/internal/xapi"
)

const (
	searchTimeout     = 30 * time.Second
	classifierTimeout = 60 * time.Second
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	userID     string
	jsonOut    bool
}

// app holds what a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	engine  *analysis.Engine
	store   *store.Store
	flags   *globalFlags
}

// loadConfig reads configuration and routes logs.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flags.verbose {
		logging.SetOutput(cmd.ErrOrStderr(), log.DebugLevel)
	} else if err := os.MkdirAll(cfg.DataDir, 0755); err == nil {
		if err := logging.Init(cfg.DataDir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}
	return cfg, nil
}

// openStore opens the history database in the data directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return st, nil
}

// newApp wires the pipeline: instrumented HTTP clients, the X API client,
// the Grok classifier, the engine and the history store.
func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingSearchToken) {
			return nil, &analysis.Error{Code: analysis.CodeUpstream, Message: "X API token not configured", Err: err}
		}
		return nil, err
	}

	m := metrics.New()
	posts := xapi.NewClient(xapi.Config{
		Token:      cfg.SearchAPIToken,
		BaseURL:    cfg.SearchBaseURL,
		PageDelay:  cfg.PageDelay,
		HTTPClient: m.InstrumentClient("x", nil, searchTimeout),
	})
	grok := brain.NewGrokProvider(cfg.ClassifierAPIKey, cfg.ClassifierModelName,
		brain.WithEndpoint(cfg.ClassifierEndpoint),
		brain.WithHTTPClient(m.InstrumentClient("xai", nil, classifierTimeout)),
	)
	engine := analysis.NewEngine(posts, brain.NewClassifier(grok), analysis.WithMetrics(m))

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	logging.Debug("app ready",
		"model", grok.Model(), "classifier", grok.Available(), "db", cfg.DatabasePath())
	return &app{cfg: cfg, metrics: m, engine: engine, store: st, flags: flags}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	logging.Close()
}

// interactive reports whether w is a terminal that can host the spinner.
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
