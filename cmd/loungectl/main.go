package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/loungeremote/internal/config"
	"github.com/user/loungeremote/internal/state"
	"github.com/user/loungeremote/pkg/lounge"
)

var (
	cfgPath      string
	screenFlag   string
	debugLogging bool
)

var rootCmd = &cobra.Command{
	Use:           "loungectl",
	Short:         "Control YouTube TV screens over the lounge API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", filepath.Join(os.Getenv("HOME"), ".loungeremote", "config.json"), "config file path")
	rootCmd.PersistentFlags().StringVarP(&screenFlag, "screen", "s", "", "screen name or id (default: config default_screen, or the only paired screen)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "log at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and installs the logger. It exits on
// failure since nothing can run without it.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if debugLogging {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func screenStore(cfg *config.Config) *state.ScreenStore {
	return state.NewScreenStore(filepath.Join(cfg.DataDir, "screens.json"))
}

func routineStore(cfg *config.Config) *state.RoutineStore {
	return state.NewRoutineStore(filepath.Join(cfg.DataDir, "routines.json"))
}

func historyStore(cfg *config.Config) *state.HistoryStore {
	return state.NewHistoryStore(cfg.DataDir)
}

// clientOptions maps the config onto lounge options.
func clientOptions(cfg *config.Config, extra ...lounge.Option) []lounge.Option {
	opts := []lounge.Option{
		lounge.WithBaseURL(cfg.BaseURL),
		lounge.WithHTTPClient(&http.Client{Timeout: cfg.Timeouts.Request.Duration}),
		lounge.WithLongPollHTTPClient(&http.Client{Timeout: cfg.Timeouts.LongPoll.Duration}),
		lounge.WithBackoff(lounge.Backoff{
			InitialDelay: cfg.Backoff.Initial.Duration,
			Multiplier:   cfg.Backoff.Multiplier,
			MaxDelay:     cfg.Backoff.Max.Duration,
		}),
		lounge.WithStreamRestartDelay(cfg.Timeouts.StreamRestart.Duration),
		lounge.WithSettleDelay(cfg.Timeouts.Settle.Duration),
		lounge.WithEventBuffer(cfg.EventBuffer),
		lounge.WithDeviceID(cfg.DeviceID),
	}
	return append(opts, extra...)
}

// resolveScreen picks the screen named by --screen, the configured default,
// or the only paired screen.
func resolveScreen(cfg *config.Config, store *state.ScreenStore, args ...string) (*state.Screen, error) {
	ref := screenFlag
	if len(args) > 0 && args[0] != "" {
		ref = args[0]
	}
	if ref == "" {
		ref = cfg.DefaultScreen
	}
	return store.Resolve(ref)
}

// newClient builds a client for screen whose refreshed tokens are written
// back to store.
func newClient(cfg *config.Config, store *state.ScreenStore, screen *state.Screen, extra ...lounge.Option) *lounge.Client {
	opts := clientOptions(cfg, append(extra,
		lounge.WithTokenRefreshListener(store),
		lounge.WithLogger(slog.With("screen", screen.Name)),
	)...)
	return lounge.NewClient(screen.Lounge(), cfg.DeviceName, opts...)
}
