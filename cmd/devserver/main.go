package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rathix/todo-devserver/internal/config"
	"github.com/rathix/todo-devserver/internal/health"
	"github.com/rathix/todo-devserver/internal/metrics"
	"github.com/rathix/todo-devserver/internal/server"
	"github.com/rathix/todo-devserver/internal/testprofile"
)

// Version is injected at build time using ldflags.
var Version = "(unknown)"

// options holds the process configuration. The frontend configuration
// itself comes from the env files and is resolved separately.
type options struct {
	Mode        string
	Root        string
	EnvDir      string
	LogFormat   string
	LogLevel    string
	PrintConfig bool
	ListTests   string
	NoWatch     bool
	// WatchPolling overrides the binding's usePolling when set.
	WatchPolling  *bool
	ProbeInterval time.Duration
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			fmt.Printf("devserver version %s\n", Version)
			return
		}
	}

	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Environ(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadOptions parses flags and environment variables with precedence: Flag > Env > Default.
func loadOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)

	opts := options{}
	fs.StringVar(&opts.Mode, "mode", getEnv("MODE", "development"), "mode selecting the .env.<mode> overlay")
	fs.StringVar(&opts.Root, "root", getEnv("DEVSERVER_ROOT", "build"), "directory with the built frontend")
	fs.StringVar(&opts.EnvDir, "env-dir", getEnv("DEVSERVER_ENV_DIR", "."), "directory containing .env files")
	fs.StringVar(&opts.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "log format (json or text)")
	fs.StringVar(&opts.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	fs.BoolVar(&opts.PrintConfig, "print-config", false, "print the resolved configuration as YAML and exit")
	fs.StringVar(&opts.ListTests, "list-tests", "", "list test files per test profile under `dir` and exit")
	fs.BoolVar(&opts.NoWatch, "no-watch", getEnvBool("DEVSERVER_NO_WATCH", false), "do not reload when .env files change")

	watchPollingStr := getEnv("DEVSERVER_WATCH_POLLING", "auto")
	fs.StringVar(&watchPollingStr, "watch-polling", watchPollingStr, "poll .env files instead of using fsnotify (auto, true, false)")

	probeIntervalStr := getEnv("PROBE_INTERVAL", "15s")
	fs.StringVar(&probeIntervalStr, "probe-interval", probeIntervalStr, "proxy target probe interval (0 disables)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	interval, err := time.ParseDuration(probeIntervalStr)
	if err != nil {
		return options{}, fmt.Errorf("invalid probe interval %q: %w", probeIntervalStr, err)
	}
	if interval < 0 {
		return options{}, fmt.Errorf("probe interval must not be negative, got %q", probeIntervalStr)
	}
	if interval > 0 && interval < time.Second {
		return options{}, fmt.Errorf("probe interval must be at least 1s, got %q", probeIntervalStr)
	}
	opts.ProbeInterval = interval

	if watchPollingStr != "auto" {
		polling, err := strconv.ParseBool(watchPollingStr)
		if err != nil {
			return options{}, fmt.Errorf("invalid watch polling %q: must be auto or a boolean", watchPollingStr)
		}
		opts.WatchPolling = &polling
	}

	if opts.LogFormat != "json" && opts.LogFormat != "text" {
		return options{}, fmt.Errorf("unsupported log format %q: must be \"json\" or \"text\"", opts.LogFormat)
	}
	if _, err := parseLevel(opts.LogLevel); err != nil {
		return options{}, err
	}

	return opts, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unsupported log level %q", s)
	}
	return level, nil
}

func setupLogger(format, level string) *slog.Logger {
	return setupLoggerWithWriter(format, level, os.Stderr)
}

func setupLoggerWithWriter(format, level string, writer io.Writer) *slog.Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}
	return slog.New(handler)
}

// run resolves the configuration and either prints it, lists the test
// partition, or serves until ctx is cancelled.
func run(ctx context.Context, opts options, environ []string, stdout io.Writer) error {
	logger := setupLogger(opts.LogFormat, opts.LogLevel)
	slog.SetDefault(logger)

	vars, err := config.LoadEnv(opts.EnvDir, opts.Mode, environ)
	if err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	cfg := config.Resolve(opts.Mode, vars)

	if opts.ListTests != "" {
		return listTests(stdout, opts.ListTests, cfg.TestProfiles)
	}
	if opts.PrintConfig {
		return config.Render(stdout, cfg)
	}

	slog.Info("Starting devserver", "version", Version, "mode", cfg.Mode)

	if _, err := os.Stat(opts.Root); err != nil {
		slog.Warn("Frontend build directory not found, only the API proxy will answer", "root", opts.Root)
	}
	srv := server.New(cfg, server.Options{
		Static: os.DirFS(opts.Root),
		Logger: logger,
	})

	// Bind before starting background work so a taken port fails fast.
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if !opts.NoWatch {
		watchOpts := []config.WatcherOption{}
		if interval := watchPollInterval(opts, cfg.Server); interval > 0 {
			watchOpts = append(watchOpts, config.WithPolling(interval))
			slog.Info("Watching env files", "dir", opts.EnvDir, "method", "polling", "interval", interval)
		} else {
			slog.Info("Watching env files", "dir", opts.EnvDir, "method", "fsnotify")
		}
		watcher := config.NewWatcher(opts.EnvDir, opts.Mode, environ, func(newCfg *config.ResolvedConfig, err error) {
			if err != nil {
				metrics.ConfigReloadsTotal.WithLabelValues("error").Inc()
				// Keep the last-known-good config active when reloading fails.
				slog.Error("Config reload failed", "error", err)
				return
			}
			metrics.ConfigReloadsTotal.WithLabelValues("ok").Inc()
			srv.Reload(*newCfg)
			slog.Info("Config reloaded", "mode", newCfg.Mode, "proxy", len(newCfg.ProxyRules) > 0)
		}, logger, watchOpts...)
		go func() {
			if err := watcher.Run(bgCtx); err != nil && bgCtx.Err() == nil {
				slog.Warn("config watcher stopped with error", "error", err)
			}
		}()
	}

	if opts.ProbeInterval > 0 {
		probeClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
			},
		}
		prober := health.NewProber(probeClient, opts.ProbeInterval, logger)
		go prober.Run(bgCtx, func() (string, bool) {
			rule, ok := srv.Config().Proxy()
			return rule.Target, ok
		})
	}

	return srv.Serve(ctx, ln)
}

// watchPollInterval returns the env file polling interval, or 0 to use
// filesystem notifications.
func watchPollInterval(opts options, binding config.ServerBinding) time.Duration {
	usePolling := binding.Watch.UsePolling
	if opts.WatchPolling != nil {
		usePolling = *opts.WatchPolling
	}
	if !usePolling {
		return 0
	}
	return time.Second
}

func listTests(w io.Writer, dir string, profiles []testprofile.Profile) error {
	partition, err := testprofile.Partition(os.DirFS(dir), profiles)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		files := partition[p.Name]
		fmt.Fprintf(w, "%s (%s): %d files\n", p.Name, p.Environment, len(files))
		if len(files) > 0 {
			fmt.Fprintf(w, "  %s\n", strings.Join(files, "\n  "))
		}
	}
	return nil
}
