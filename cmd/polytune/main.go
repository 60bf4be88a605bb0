// Package main provides the polytune CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"polytune/internal/core"
	"polytune/internal/flood"
	httpserver "polytune/internal/http"
	"polytune/pkg/aggregate"
	"polytune/pkg/provider"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "polytune",
	Short: "polytune - multi-provider music search and stream resolution",
	Long: `polytune aggregates music search across the primary video platform, its
privacy front-end mirrors, and audio-sharing services, deduplicates the
results and resolves playable stream URLs with automatic mirror rotation.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("max-results", 10, "maximum merged search results")
	rootCmd.PersistentFlags().Int("max-duration", 0, "drop tracks longer than this many seconds (0 = no limit)")
	rootCmd.PersistentFlags().Duration("request-timeout", 5*time.Second, "per-request provider timeout")
	rootCmd.PersistentFlags().Int("throttle-per-minute", 30, "outbound request limit per endpoint host")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "metrics server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "metrics server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(galleryCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("POLYTUNE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	if err := viper.UnmarshalKey("api_instances", &cfg.Providers.APIInstances); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid api_instances configuration: %v\n", err)
		os.Exit(1)
	}

	if timeout := viper.GetDuration("request-timeout"); timeout > 0 {
		cfg.Providers.RequestTimeout = timeout
	}
	if throttle := viper.GetInt("throttle-per-minute"); throttle > 0 {
		cfg.Providers.ThrottlePerMinute = throttle
	}

	if maxResults := viper.GetInt("max-results"); maxResults > 0 {
		cfg.Search.MaxResults = maxResults
	}
	cfg.Search.MaxDurationSeconds = viper.GetInt("max-duration")

	if host := viper.GetString("server-host"); host != "" {
		cfg.Server.Host = host
	}
	if port := viper.GetInt("server-port"); port > 0 {
		cfg.Server.Port = port
	}

	if level := viper.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

// mirrorProvider is implemented by providers with a rotating endpoint pool.
type mirrorProvider interface {
	Name() string
	Endpoints() []string
	ProbeURL(endpoint string) string
}

// engine bundles the constructed provider set and its entry points.
type engine struct {
	aggregator *aggregate.Aggregator
	resolver   *aggregate.Resolver
	gallery    *provider.Gallery
	similar    *provider.Similar
	mirrors    []mirrorProvider
	gate       *flood.Gate
}

func buildEngine(recorder aggregate.Recorder) *engine {
	gate := flood.NewGate(config.Providers.ThrottlePerMinute)
	client := provider.NewHTTPClient(config.Providers.RequestTimeout)

	base := provider.Options{
		Client:     client,
		Gate:       gate,
		MaxResults: config.Search.MaxResults,
	}

	youtube := provider.NewYouTube(base)
	piped := provider.NewPiped(withInstances(base, core.InstanceTypePiped))
	invidious := provider.NewInvidious(withInstances(base, core.InstanceTypeInvidious))
	audiomack := provider.NewAudiomack(base)
	soundcloud := provider.NewSoundCloud(base)

	// Composite providers delegate to the platform-family searchers whose
	// IDs the mirror chain can resolve.
	backends := []provider.Searcher{youtube, piped, invidious}
	gallery := provider.NewGallery(backends, nil)
	similar := provider.NewSimilar(backends)

	opts := aggregate.Options{
		MaxResults:         config.Search.MaxResults,
		MaxDurationSeconds: config.Search.MaxDurationSeconds,
		Logger:             logger.Named("aggregate"),
		Recorder:           recorder,
	}

	searchers := []provider.Searcher{youtube, piped, invidious, audiomack, soundcloud}
	resolvers := []provider.StreamResolver{piped, invidious, audiomack, soundcloud}

	return &engine{
		aggregator: aggregate.New(searchers, opts),
		resolver:   aggregate.NewResolver(resolvers, opts),
		gallery:    gallery,
		similar:    similar,
		mirrors:    []mirrorProvider{piped, invidious},
		gate:       gate,
	}
}

func withInstances(base provider.Options, instanceType string) provider.Options {
	opts := base
	opts.Instances = config.Providers.InstancesFor(instanceType)
	return opts
}

// monitorInterval is how often serve replays a curated query against the
// full provider set.
const monitorInterval = 10 * time.Minute

// monitor cycles through the gallery directions, one aggregated search per
// interval, so the search, duration, rotation and result-count metrics track
// live provider health while serve runs.
func (e *engine) monitor(ctx context.Context, server *httpserver.Server) error {
	directions := e.gallery.Directions()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		dir := directions[i%len(directions)]
		tracks, report := e.aggregator.Search(ctx, dir.Query)
		server.SetLastResultCount(len(tracks))
		if report.AllFailed() {
			logger.Warn("monitoring search failed on every provider",
				zap.String("direction", dir.ID))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search all providers and print merged results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		eng := buildEngine(nil)
		defer eng.gate.Stop()

		query := strings.Join(args, " ")
		tracks, report := eng.aggregator.Search(context.Background(), query)

		for name, status := range report {
			if status.Err != nil {
				logger.Warn("provider failed",
					zap.String("provider", name),
					zap.Error(status.Err))
			}
		}

		if len(tracks) == 0 && report.AllFailed() {
			return fmt.Errorf("all providers failed for %q", query)
		}

		return printTracks(tracks)
	},
}

var resolveSource string

var resolveCmd = &cobra.Command{
	Use:   "resolve <track-id>",
	Short: "Resolve a track ID to a playable stream URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		eng := buildEngine(nil)
		defer eng.gate.Stop()

		streamURL, err := eng.resolver.Resolve(context.Background(), args[0], resolveSource)
		if err != nil {
			return err
		}

		fmt.Println(streamURL)
		return nil
	},
}

var galleryCmd = &cobra.Command{
	Use:   "gallery [direction]",
	Short: "List curated directions or search one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		eng := buildEngine(nil)
		defer eng.gate.Stop()

		if len(args) == 0 {
			for _, dir := range eng.gallery.Directions() {
				fmt.Printf("%-12s %s\n", dir.ID, dir.Query)
			}
			return nil
		}

		tracks, err := eng.gallery.Search(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printTracks(tracks)
	},
}

var similarUploader string

var similarCmd = &cobra.Command{
	Use:   "similar <title>",
	Short: "Find tracks similar to a seed track",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		eng := buildEngine(nil)
		defer eng.gate.Stop()

		seed := provider.Track{
			Title:    strings.Join(args, " "),
			Uploader: similarUploader,
		}
		tracks, err := eng.similar.SearchTrack(context.Background(), seed)
		if err != nil {
			return err
		}
		return printTracks(tracks)
	},
}

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "Probe every configured mirror instance",
	RunE: func(_ *cobra.Command, _ []string) error {
		eng := buildEngine(nil)
		defer eng.gate.Stop()

		client := provider.NewHTTPClient(config.Providers.RequestTimeout)
		ctx := context.Background()

		for _, mirror := range eng.mirrors {
			endpoints := mirror.Endpoints()
			probeURLs := make([]string, len(endpoints))
			for i, endpoint := range endpoints {
				probeURLs[i] = mirror.ProbeURL(endpoint)
			}

			fmt.Printf("%s:\n", mirror.Name())
			for _, result := range provider.Probe(ctx, client, endpoints, probeURLs) {
				if result.Err != nil {
					fmt.Printf("  FAIL %-40s %v\n", result.Endpoint, result.Err)
					continue
				}
				fmt.Printf("  OK   %-40s %dms\n", result.Endpoint, result.Latency.Milliseconds())
			}
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the health and metrics server with periodic provider monitoring",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		server := httpserver.NewServer(&config.Server, logger.Named("http"))
		eng := buildEngine(server)
		defer eng.gate.Stop()

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.Start(gCtx)
		})
		g.Go(func() error {
			return eng.monitor(gCtx, server)
		})

		logger.Info("polytune started",
			zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

		if err := g.Wait(); err != nil {
			logger.Error("polytune stopped with error", zap.Error(err))
			return err
		}

		logger.Info("polytune stopped gracefully")
		return nil
	},
}

func printTracks(tracks []provider.Track) error {
	if searchJSON {
		encoded, err := json.MarshalIndent(tracks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	if len(tracks) == 0 {
		fmt.Println("no results")
		return nil
	}

	for i, track := range tracks {
		fmt.Printf("%2d. [%s] %s\n", i+1, track.Source, track.Title)
		fmt.Printf("    %s | %s | id=%s\n", track.Uploader, formatDuration(track.Duration), track.ID)
	}
	return nil
}

// formatDuration renders seconds as m:ss or h:mm:ss; 0 means unknown.
func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "--:--"
	}
	minutes, secs := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	galleryCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	similarCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	resolveCmd.Flags().StringVar(&resolveSource, "source", "", "advisory source hint (YT, PI, IV, AM, SC)")
	similarCmd.Flags().StringVar(&similarUploader, "uploader", "", "seed track uploader")
}
