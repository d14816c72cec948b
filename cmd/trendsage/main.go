package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/trendsage/trendsage/internal/api"
	"github.com/trendsage/trendsage/internal/config"
	"github.com/trendsage/trendsage/internal/feeds"
	"github.com/trendsage/trendsage/internal/images"
	"github.com/trendsage/trendsage/internal/poller"
	"github.com/trendsage/trendsage/internal/reader"
	"github.com/trendsage/trendsage/internal/server"
	"github.com/trendsage/trendsage/internal/session"
	"github.com/trendsage/trendsage/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "trendsage",
	Short:   "Web front-end for TrendSage trend analysis",
	Long:    "TrendSage serves trending articles and headlines from the analysis backend, runs topic analyses, and chats about generated articles.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	// Running bare "trendsage" starts the server.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(imagesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("trendsage", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/trendsage/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point at your analysis backend and tune polling.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and job status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openStore()
		if err != nil {
			return err
		}
		defer cache.Close()

		stats, err := cache.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Backend: %s\n\n", cfg.BackendBaseURL())
		fmt.Println("Article cache:")
		fmt.Printf("  Cached articles: %d\n", stats.CachedArticles)
		fmt.Printf("  Resolved images: %d\n", stats.ResolvedImages)
		fmt.Println("\nAnalysis jobs:")
		fmt.Printf("  Total: %d\n", stats.TotalJobs)
		fmt.Printf("  Matched: %d\n", stats.MatchedJobs)
		fmt.Printf("  Exhausted: %d\n", stats.ExhaustedJobs)

		jobs, err := cache.RecentJobs(10)
		if err != nil {
			return fmt.Errorf("listing jobs: %w", err)
		}
		if len(jobs) > 0 {
			fmt.Println("\nRecent jobs:")
			for _, j := range jobs {
				fmt.Printf("  [%d] %-10s %s", j.ID, j.State, j.Topic)
				if j.Category != "" {
					fmt.Printf(" (%s)", j.Category)
				}
				fmt.Println()
			}
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openStore()
		if err != nil {
			return err
		}
		defer cache.Close()

		backend := api.New(cfg.BackendBaseURL(), cfg.BackendTimeout())
		syncCategories(backend)
		sessions := session.NewStore()

		var auth server.AuthProvider
		if cfg.Auth.Enabled {
			auth = session.NewProvider(cfg.Auth.ProviderURL, cfg.BackendTimeout())
		}

		srv, err := server.New(cfg, backend, cache, sessions, auth,
			feeds.New(cfg.FallbackFeeds), reader.New(cfg.BackendTimeout()))
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- analyze command ---

var analyzeCategory string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [topic]",
	Short: "Run one trend analysis and wait for the article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := args[0]
		backend := api.New(cfg.BackendBaseURL(), cfg.BackendTimeout())

		ctrl, err := poller.New(backend, topic, analyzeCategory, poller.Options{
			Interval: cfg.PollInterval(),
			Attempts: cfg.Polling.Attempts,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := ctrl.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("Analyzing %q (up to %d checks, %s apart)...\n",
			topic, cfg.Polling.Attempts, cfg.PollInterval())
		<-ctrl.Done()

		snap := ctrl.Snapshot()
		switch snap.State {
		case poller.StateMatched:
			fmt.Println("\nArticle ready:")
			fmt.Printf("  %s\n", snap.Matched.Title)
			fmt.Printf("  Category: %s  ID: %s\n", snap.Matched.Category, snap.Matched.ID)
		case poller.StateExhausted:
			fmt.Printf("\n%s\n", snap.Advisory)
			if len(snap.Articles) > 0 {
				fmt.Println("\nLatest articles:")
				for _, a := range snap.Articles {
					fmt.Printf("  %s (%s)\n", a.Title, a.Category)
				}
			}
		case poller.StateCancelled:
			fmt.Println("\nAnalysis cancelled.")
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "Category hint for the analysis")
}

// --- images command ---

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Manage resolved article images",
}

var imagesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-check cached article images and replace broken ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openStore()
		if err != nil {
			return err
		}
		defer cache.Close()

		articles, err := cache.CachedArticles("")
		if err != nil {
			return fmt.Errorf("reading cache: %w", err)
		}
		if len(articles) == 0 {
			fmt.Println("No cached articles.")
			return nil
		}

		checker := images.NewChecker(0)
		kept, refreshed := 0, 0
		for _, a := range articles {
			if a.ResolvedImage != "" && checker.Valid(a.ResolvedImage) {
				kept++
				continue
			}
			resolved := images.Resolve(a.Category, a.Title, a.Content, a.ImageURL)
			if err := cache.SetResolvedImage(a.ID, resolved); err != nil {
				return fmt.Errorf("updating image for %s: %w", a.ID, err)
			}
			if verbose {
				fmt.Printf("  %s -> %s\n", a.Title, resolved)
			}
			refreshed++
		}

		fmt.Printf("Checked %d articles: %d kept, %d refreshed.\n", len(articles), kept, refreshed)
		return nil
	},
}

func init() {
	imagesCmd.AddCommand(imagesRefreshCmd)
}

// syncCategories replaces the configured category list with the backend's
// when it is reachable. "All" stays first either way.
func syncCategories(backend *api.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout())
	defer cancel()

	cats, err := backend.ListCategories(ctx)
	if err != nil {
		log.Printf("Listing backend categories: %v (using configured list)", err)
		return
	}
	if len(cats) == 0 {
		return
	}
	if cats[0] != api.CategoryAll {
		cats = append([]string{api.CategoryAll}, cats...)
	}
	cfg.Categories = cats
}

func openStore() (*store.Store, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return store.Open(filepath.Join(dataDir, "trendsage.db"))
}
