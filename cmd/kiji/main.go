// Package main is the kiji CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kiji/internal/cli"
	"github.com/hyperjump/kiji/internal/config"
	"github.com/hyperjump/kiji/internal/models"
	"github.com/hyperjump/kiji/internal/server"
	"github.com/hyperjump/kiji/internal/watcher"
	"github.com/hyperjump/kiji/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kiji/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing default config falls back to built-in defaults.
// Returns the config and the path that was actually loaded (for saving and watching).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := config.Default()
			config.LoadEnv(cfg, "")
			return cfg, path, nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "latest":
		runLatest()
	case "feeds":
		runFeeds()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func mustLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func mustComponents(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := mustLogger(cfg.Debug)
	components, err := initializeComponents(context.Background(), cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watchConfig := fs.Bool("watch-config", true, "reload feed and similarity settings when the config file changes")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger := mustLogger(debugMode)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("ai_token_set", cfg.AI.Token != ""),
	)

	components, err := initializeComponents(context.Background(), cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if *watchConfig {
		configDir := filepath.Dir(resolvedConfigPath)
		watchSvc := watcher.NewWatcher(
			[]string{resolvedConfigPath, filepath.Join(configDir, ".env")},
			func(path string) {
				_ = reloadConfig(components.Live, resolvedConfigPath, logger)
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Warn("config watcher not started", zap.String("dir", configDir), zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Orchestrator,
		components.Analyzer,
		components.Library,
		components.Storage,
		components.Live,
		logger,
		resolvedConfigPath,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kiji search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Each word of the query is expanded with related terms; an article matches when every
word (or one of its related terms) appears in it. Saved analyses are searched first,
then the configured live feeds.

Examples:
  kiji search climate policy
  kiji search --output json "interest rates"
  kiji search --server "" election    # search without a running server
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search directly without a server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var response *models.GlobalSearchResponse
	if *serverURL != "" {
		response, err = newAPIClient(*serverURL, "").search(query)
	} else {
		components, logger := mustComponents(*configPath)
		defer logger.Sync()
		defer components.Close()
		response, err = components.Orchestrator.GlobalSearch(context.Background(), query)
	}
	if response != nil {
		if werr := cli.WriteSearchResults(os.Stdout, response, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
}

func runLatest() {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read feeds directly without a server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var response *models.GlobalSearchResponse
	if *serverURL != "" {
		response, err = newAPIClient(*serverURL, "").latest()
	} else {
		components, logger := mustComponents(*configPath)
		defer logger.Sync()
		defer components.Close()
		response, err = components.Orchestrator.Latest(context.Background())
	}
	if response != nil {
		if werr := cli.WriteSearchResults(os.Stdout, response, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing failed: %v\n", err)
		os.Exit(1)
	}
}

func printFeedsUsage() {
	fmt.Println("Usage: kiji feeds <list|add|remove> [flags]")
	fmt.Println("  kiji feeds list                                      List configured feeds")
	fmt.Println("  kiji feeds add --name NAME --category CAT <url>      Add a feed")
	fmt.Println("  kiji feeds remove <url>                              Remove a feed")
}

func runFeeds() {
	if len(os.Args) < 3 {
		printFeedsUsage()
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("feeds", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	role := fs.String("role", string(models.RoleAdmin), "caller role sent to the server")
	name := fs.String("name", "", "feed name (add)")
	category := fs.String("category", "", "feed category (add)")
	outputFormat := fs.String("output", "text", "output format: text or json (list)")
	_ = fs.Parse(searchArgsReorder(os.Args[3:]))

	client := newAPIClient(*serverURL, models.ParseRole(*role))
	switch sub {
	case "list":
		format, err := cli.ParseOutputFormat(*outputFormat)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		feeds, err := client.listFeeds()
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteFeeds(os.Stdout, feeds, format)
	case "add":
		if fs.NArg() < 1 {
			printFeedsUsage()
			os.Exit(1)
		}
		f := models.FeedSource{Name: *name, URL: fs.Arg(0), Category: *category}
		if err := f.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid feed: %v\n", err)
			os.Exit(1)
		}
		if err := client.addFeed(f); err != nil {
			fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s (%s)\n", f.Name, f.URL)
	case "remove":
		if fs.NArg() < 1 {
			printFeedsUsage()
			os.Exit(1)
		}
		if err := client.removeFeed(fs.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", fs.Arg(0))
	default:
		fmt.Printf("Unknown feeds subcommand: %s\n", sub)
		printFeedsUsage()
		os.Exit(1)
	}
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	SavedArticles  int64                  `json:"saved_articles"`
	Feeds          int                    `json:"feeds"`
	UptimeSeconds  int64                  `json:"uptime_seconds,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *statusResponse
	if *serverURL != "" {
		status, err = newAPIClient(*serverURL, "").status()
	} else {
		components, logger := mustComponents(*configPath)
		defer logger.Sync()
		defer components.Close()
		status, err = localStatus(context.Background(), components)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := writeStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kiji - News feed search with AI analysis and cross-article similarity

Usage:
  kiji server [flags]                 Start the HTTP server
  kiji search [flags] <query>         Search saved analyses and live feeds
  kiji latest [flags]                 List the newest live articles with saved analyses applied
  kiji feeds <list|add|remove>        Manage configured feeds
  kiji status [flags]                 Show storage and configuration status
  kiji version                        Show version
  kiji help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kiji/config.yaml)
  --debug            Enable debug logging
  --watch-config     Reload settings when the config file or .env changes (default: true)

Search Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to search without a server.
  --output string    Output format: text or json (default: text)

Latest Flags:
  Same as Search Flags.

Feeds Flags:
  --server string    Server URL (default: http://localhost:8080)
  --role string      Caller role: User, Admin or SuperAdmin (default: Admin)
  --name string      Feed name (add)
  --category string  Feed category (add)
  --output string    Output format for list: text or json

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read storage directly.
  --output string    Output format: text or json (default: text)

Environment:
  KIJI_AI_TOKEN      API token for the AI endpoint (falls back to OPENAI_API_KEY)
  KIJI_AI_HOST       Overrides ai.host

Examples:
  kiji server
  kiji search "climate policy"
  kiji search --output json inflation
  kiji feeds add --name "BBC News" --category World https://feeds.bbci.co.uk/news/rss.xml
  kiji feeds list
  kiji status --output json`)
}
