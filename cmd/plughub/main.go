// ABOUTME: Entry point for the plughub plugin manager.
// ABOUTME: Wires config, registry, history store and admin server together behind cobra commands.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/plughub/internal/admin"
	"github.com/2389/plughub/internal/auth"
	"github.com/2389/plughub/internal/config"
	"github.com/2389/plughub/internal/logging"
	"github.com/2389/plughub/internal/seed"
	"github.com/2389/plughub/internal/store"
	"github.com/2389/plughub/internal/watch"
	"github.com/2389/plughub/plugins/assistant"
	"github.com/2389/plughub/plugins/core"
	_ "github.com/2389/plughub/plugins/greeter" // Register GreeterPlugin
)

// errHookFailed makes exec exit non-zero when the aggregate result is false.
var errHookFailed = errors.New("one or more plugins did not execute the hook successfully")

type options struct {
	configPath string
	dir        string
	dbPath     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "plughub",
		Short: "plughub - file-based plugin manager",
		Long: `plughub discovers plugins from a directory of YAML manifests and manages them.

A plugin named FooPlugin is enabled when FooPlugin.yaml exists and disabled
when the file is renamed to FooPlugin.disabled.yaml. Hooks are dispatched to
every enabled plugin and each dispatch is recorded in a SQLite history.

Quick Start:
  plughub init                       # Write manifests for built-in plugins
  plughub list                       # Show discovered plugins
  plughub enable GreeterPlugin       # Enable a plugin
  plughub exec onMessage harper      # Run a hook on every enabled plugin
  plughub serve --watch              # Admin API and UI on port 9000`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $PLUGHUB_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", "", "Plugin directory (default $PLUGHUB_DIR or ./plugins.d)")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Execution history database (default $PLUGHUB_DB_PATH or XDG data dir)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	enableCmd := &cobra.Command{
		Use:   "enable <plugin>",
		Short: "Enable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateChange(cmd, opts, args[0], "enable")
		},
	}

	disableCmd := &cobra.Command{
		Use:   "disable <plugin>",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateChange(cmd, opts, args[0], "disable")
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle <plugin>",
		Short: "Flip a plugin between enabled and disabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateChange(cmd, opts, args[0], "toggle")
		},
	}

	var noHistory bool
	execCmd := &cobra.Command{
		Use:   "exec <hook> [args...]",
		Short: "Run a hook on every enabled plugin",
		Long: `Run a hook on every enabled plugin in discovery order.

Arguments are parsed as YAML scalars, so 3 is a number, true is a boolean and
anything else is a string. The command exits with status 1 when any enabled
plugin lacks the hook or fails to execute it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts, args[0], args[1:], !noHistory)
		},
	}
	execCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this dispatch")

	var query store.ExecutionQuery
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded hook executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, &query)
		},
	}
	historyCmd.Flags().IntVarP(&query.Limit, "limit", "n", 20, "Maximum number of executions")
	historyCmd.Flags().StringVar(&query.Hook, "hook", "", "Only this hook")
	historyCmd.Flags().StringVar(&query.PluginID, "plugin", "", "Only this plugin")
	historyCmd.Flags().StringVar(&query.RunID, "run", "", "Only this dispatch")
	historyCmd.Flags().BoolVar(&query.FailedOnly, "failed", false, "Only failed executions")

	var port string
	var watchDir bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP server",
		Long: `Start the plughub admin server.

The server provides:
  • JSON API for plugins, hook dispatch and execution history
  • Admin UI at http://localhost:PORT/admin
  • Health check at http://localhost:PORT/healthz

With --watch the plugin directory is reloaded whenever plugin files change.

Environment Variables:
  PLUGHUB_PORT      Server port (default: 9000)
  PLUGHUB_DIR       Plugin directory
  OPENAI_API_KEY    Enable AI replies in AssistantPlugin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, port, watchDir)
		},
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default $PLUGHUB_PORT or 9000)")
	serveCmd.Flags().BoolVarP(&watchDir, "watch", "w", false, "Reload plugins when the directory changes")

	var enableNew bool
	initCmd := &cobra.Command{
		Use:   "init [plugin...]",
		Short: "Write starter manifests for built-in plugins",
		Long: `Write a manifest for each named plugin, or for every plugin compiled into
plughub when none are named. Manifests are created disabled unless --enable
is given. Existing plugin files are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts, args, enableNew)
		},
	}
	initCmd.Flags().BoolVar(&enableNew, "enable", false, "Create the manifests enabled")

	rootCmd.AddCommand(initCmd, listCmd, enableCmd, disableCmd, toggleCmd, execCmd, historyCmd, serveCmd)
	return rootCmd
}

// loadConfig resolves the configuration and applies command-line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dir != "" {
		cfg.Plugins.Dir = opts.dir
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	return cfg, nil
}

// app bundles what the commands operate on
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *core.Registry
}

// newApp opens the history store when withHistory is set and discovers
// every plugin below the configured directory.
func newApp(cfg *config.Config, withHistory bool) (*app, error) {
	a := &app{cfg: cfg}

	assistant.Configure(assistant.Settings{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model})

	regOpts := []core.Option{
		core.WithExtension(cfg.Plugins.Extension),
		core.WithSuffix(cfg.Plugins.Suffix),
	}

	if withHistory {
		dbPath, err := config.ValidateDBPath(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		s, err := store.New(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.store = s
		regOpts = append(regOpts, core.WithRecorder(s))
	}

	a.registry = core.NewRegistry(cfg.Plugins.Dir, regOpts...)
	if err := a.registry.Autoload("", cfg.Plugins.Nested); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func runInit(cmd *cobra.Command, opts *options, ids []string, enabled bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	written, err := seed.NewScaffolder(cfg.Plugins.Dir, cfg.Plugins.Extension, nil).Scaffold(ids, enabled)
	for _, path := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
	}
	return err
}

func runList(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLUGIN\tSTATE\tVERSION\tHOOKS\tLOCATION")
	for _, p := range a.registry.Plugins() {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n", p.ID(), stateName(p), p.Attribute("version"), strings.Join(p.HookNames(), ","), p.Location())
	}
	return tw.Flush()
}

func stateName(p core.Plugin) string {
	if p.IsEnabled() {
		return "enabled"
	}
	return "disabled"
}

func runStateChange(cmd *cobra.Command, opts *options, id, action string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	matches := a.registry.Find(id)
	if len(matches) == 0 {
		return fmt.Errorf("%s: %w", id, core.ErrPluginNotFound)
	}

	apply := a.registry.Enable
	switch action {
	case "disable":
		apply = a.registry.Disable
	case "toggle":
		// Move every copy to the same state so duplicates sharing a file agree.
		if a.registry.IsEnabled(matches[0]) {
			apply = a.registry.Disable
		}
	}

	for _, p := range matches {
		if err := apply(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", p.ID(), stateName(p), p.Location())
	}
	return nil
}

// parseArgs turns command-line words into hook arguments.
func parseArgs(words []string) []any {
	args := make([]any, 0, len(words))
	for _, w := range words {
		var v any
		if err := yaml.Unmarshal([]byte(w), &v); err != nil {
			v = w
		}
		switch v.(type) {
		case string, int, float64, bool:
		default:
			// Only scalars are reinterpreted; lists, maps and nulls stay text.
			v = w
		}
		args = append(args, v)
	}
	return args
}

func runExec(cmd *cobra.Command, opts *options, hook string, words []string, withHistory bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, withHistory)
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.registry.Dispatch(hook, parseArgs(words)...)

	out := cmd.OutOrStdout()
	for _, r := range results {
		switch {
		case r.Success:
			fmt.Fprintf(out, "ok    %s %s %s\n", r.Plugin.ID(), r.Elapsed.Round(time.Microsecond), formatReturn(r.Return))
		case r.Err != nil:
			fmt.Fprintf(out, "FAIL  %s %v\n", r.Plugin.ID(), r.Err)
		default:
			fmt.Fprintf(out, "FAIL  %s has no %s hook\n", r.Plugin.ID(), hook)
		}
	}

	if !core.Succeeded(results) {
		return errHookFailed
	}
	return nil
}

func formatReturn(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func runHistory(cmd *cobra.Command, opts *options, q *store.ExecutionQuery) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	dbPath, err := config.ValidateDBPath(cfg.DBPath)
	if err != nil {
		return err
	}
	s, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	executions, err := s.GetExecutions(q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tPLUGIN\tHOOK\tRESULT\tDURATION")
	for _, e := range executions {
		result := "ok"
		if !e.Success {
			result = "failed"
			if e.Error != "" {
				result += ": " + e.Error
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dµs\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), shortRunID(e.RunID), e.PluginID, e.Hook, result, e.DurationUs)
	}
	return tw.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runServe(cmd *cobra.Command, opts *options, port string, watchDir bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Server.Port = port
	}

	if _, err := os.Stat(cfg.Plugins.Dir); os.IsNotExist(err) {
		log.Printf("Plugin directory %s does not exist, creating", cfg.Plugins.Dir)
		if err := os.MkdirAll(cfg.Plugins.Dir, 0755); err != nil {
			return fmt.Errorf("create plugin dir: %w", err)
		}
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handlers := admin.NewHandlers(a.registry, a.store)

	if watchDir {
		w := watch.New(cfg.Plugins.Dir, cfg.Plugins.Extension, cfg.Server.WatchDebounce, func() {
			handlers.Reload()
		})
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: newServer(handlers, a.store),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("plughub listening on %s", srv.Addr)
		log.Printf("Plugins: %s (%d discovered)", cfg.Plugins.Dir, len(a.registry.Plugins()))
		log.Printf("Database: %s", cfg.DBPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Println("Shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newServer(handlers *admin.Handlers, s *store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s != nil {
		r.Use(logging.Middleware(s))
	}
	r.Use(auth.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusFound)
	})

	handlers.RegisterRoutes(r)
	return r
}
