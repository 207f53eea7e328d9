package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
	"github.com/abelbrown/rabbitbrain/internal/config"
	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/ratelimit"
	"github.com/abelbrown/rabbitbrain/internal/server"
	"github.com/abelbrown/rabbitbrain/internal/store"
	"github.com/abelbrown/rabbitbrain/internal/ui"
)

// defaultUserID owns history written from the command line.
const defaultUserID = "local"

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "rabbitbrain",
		Short:         "rabbitbrain: learn what an X post is about and who to follow",
		Long:          "Analyzes X posts, classifies their learning topic and recommends people, topics and articles to follow.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.rabbitbrain/config.yaml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr at debug level")
	pf.StringVar(&flags.userID, "user-id", defaultUserID, "history owner")
	pf.BoolVar(&flags.jsonOut, "json", false, "print raw JSON instead of formatted output")

	root.AddCommand(
		analyzeCmd(flags),
		discoverCmd(flags),
		shareCmd(flags),
		historyCmd(flags),
		serveCmd(flags),
		configCmd(flags),
	)
	return root
}

// urlArg takes the post URL from --url or the first argument.
func urlArg(cmd *cobra.Command, args []string) string {
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		return v
	}
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// runPipeline runs fn, behind a spinner when stdout is a terminal.
func runPipeline[T any](cmd *cobra.Command, flags *globalFlags, title string, fn func(context.Context) (T, error)) (T, error) {
	out := cmd.OutOrStdout()
	if flags.jsonOut || flags.verbose || !interactive(out) {
		return fn(cmd.Context())
	}
	return ui.RunWithSpinner(cmd.Context(), out, os.Stdin, title, fn)
}

func analyzeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [post-url]",
		Short: "Analyze an X post and recommend who and what to follow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL := urlArg(cmd, args)
			if strings.TrimSpace(rawURL) == "" {
				return analysis.Errorf(analysis.CodeInvalidURL, "Invalid X post URL")
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := runPipeline(cmd, flags, "Analyzing post...", func(ctx context.Context) (*analysis.AnalyzeResult, error) {
				return a.engine.Analyze(ctx, rawURL)
			})
			if err != nil {
				return err
			}
			if _, err := a.store.SaveAnalysis(flags.userID, res); err != nil {
				logging.Warn("history save failed", "error", err)
			}

			if flags.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderAnalysis(res))
			return nil
		},
	}
	cmd.Flags().String("url", "", "X post URL")
	return cmd
}

func discoverCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [topic]",
		Short: "Find people, posts and articles for a topic",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			if topic == "" {
				topic = strings.Join(args, " ")
			}
			if strings.TrimSpace(topic) == "" {
				return analysis.Errorf(analysis.CodeInvalidTopic, "Missing topic")
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := runPipeline(cmd, flags, "Discovering "+topic+"...", func(ctx context.Context) (*analysis.DiscoveryResult, error) {
				return a.engine.Discover(ctx, topic)
			})
			if err != nil {
				return err
			}
			if _, err := a.store.SaveDiscovery(flags.userID, res); err != nil {
				logging.Warn("history save failed", "error", err)
			}

			if flags.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderDiscovery(res))
			return nil
		},
	}
	cmd.Flags().String("topic", "", "topic to discover")
	return cmd
}

func shareCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share [post-url]",
		Short: "Save an X post to history without analyzing it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL := urlArg(cmd, args)
			if strings.TrimSpace(rawURL) == "" {
				return analysis.Errorf(analysis.CodeInvalidURL, "Invalid X post URL")
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := runPipeline(cmd, flags, "Fetching post...", func(ctx context.Context) (*analysis.ShareResult, error) {
				return a.engine.Share(ctx, rawURL)
			})
			if err != nil {
				return err
			}
			rec, err := a.store.SaveShare(flags.userID, res)
			if err != nil {
				return fmt.Errorf("save share: %w", err)
			}

			if flags.jsonOut {
				return writeJSON(cmd.OutOrStdout(), struct {
					ID string `json:"id"`
					*analysis.ShareResult
				}{rec.ID, res})
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderShare(res))
			return nil
		},
	}
	cmd.Flags().String("url", "", "X post URL")
	return cmd
}

func historyCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [record-id]",
		Short: "List saved analyses, discoveries and shares, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			defer logging.Close()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				rec, err := st.GetRecord(args[0])
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(out, rec)
				}
				return renderRecord(cmd, rec)
			}

			limit, _ := cmd.Flags().GetInt("limit")
			records, err := st.ListRecords(flags.userID, limit)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				if records == nil {
					records = []store.Record{}
				}
				return writeJSON(out, records)
			}
			total, err := st.CountRecords(flags.userID)
			if err != nil {
				return err
			}
			fmt.Fprint(out, ui.RenderHistory(records, total, time.Now()))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of records to list")
	return cmd
}

// renderRecord formats a saved record from its payload.
func renderRecord(cmd *cobra.Command, rec *store.Record) error {
	out := cmd.OutOrStdout()
	switch rec.Kind {
	case store.KindAnalysis:
		var res analysis.AnalyzeResult
		if err := json.Unmarshal(rec.Payload, &res); err != nil {
			return fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		fmt.Fprint(out, ui.RenderAnalysis(&res))
	case store.KindDiscovery:
		var res analysis.DiscoveryResult
		if err := json.Unmarshal(rec.Payload, &res); err != nil {
			return fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		fmt.Fprint(out, ui.RenderDiscovery(&res))
	case store.KindShare:
		var res analysis.ShareResult
		if err := json.Unmarshal(rec.Payload, &res); err != nil {
			return fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		fmt.Fprint(out, ui.RenderShare(&res))
	default:
		return writeJSON(out, rec)
	}
	return nil
}

func serveCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if !flags.verbose {
				logging.SetOutput(cmd.ErrOrStderr(), log.InfoLevel)
			}

			addr := a.cfg.HTTPAddr
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				addr = v
			}
			rl := a.cfg.RateLimit
			srv := server.New(server.DefaultConfig(addr), a.engine,
				server.WithHistory(a.store),
				server.WithLimiter(ratelimit.New(rl.RequestsPerWindow, rl.Window)),
				server.WithMetrics(a.metrics),
			)
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	return cmd
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if path == "" {
				path = config.ConfigPath()
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")

	cmd.AddCommand(initCmd)
	return cmd
}
