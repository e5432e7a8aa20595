package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/user/loungeremote/internal/delivery"
	"github.com/user/loungeremote/internal/gateway"
	"github.com/user/loungeremote/internal/scheduler"
	"github.com/user/loungeremote/internal/state"
	"github.com/user/loungeremote/internal/telegram"
	"github.com/user/loungeremote/internal/webhook"
	"github.com/user/loungeremote/pkg/lounge"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int64("max-concurrent", 2, "screens that may run commands at the same time")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep every paired screen connected and serve routines, HTTP and Telegram",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func pidPath(dataDir string) string {
	return filepath.Join(dataDir, "loungectl.pid")
}

func writePIDFile(dataDir string) (string, error) {
	path := pidPath(dataDir)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	maxConcurrent, _ := cmd.Flags().GetInt64("max-concurrent")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pid, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pid)

	// Stores
	screens := screenStore(cfg)
	routines := routineStore(cfg)
	history := historyStore(cfg)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := lounge.NewMetrics(lounge.MetricsConfig{Namespace: cfg.Metrics.Namespace, Registry: reg})

	// Gateway with one remote per paired screen
	paired, err := screens.List()
	if err != nil {
		return fmt.Errorf("list screens: %w", err)
	}
	if len(paired) == 0 {
		return fmt.Errorf("no paired screens; run: loungectl pair <code>")
	}

	gw := gateway.New(maxConcurrent)
	for _, sc := range paired {
		client := newClient(cfg, screens, sc,
			lounge.WithMetrics(metrics),
			lounge.WithTracerProvider(otel.GetTracerProvider()),
		)
		remote := gateway.NewRemote(client,
			gateway.WithHistory(history),
			gateway.WithRemoteLogger(slog.With("screen", sc.Name)),
		)
		if err := gw.Add(remote); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gw.Stop(shutdownCtx); err != nil {
			slog.Warn("gateway shutdown", "error", err)
		}
	}()

	slog.Info("loungectl serving",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"screens", len(paired),
		"max_concurrent", maxConcurrent,
		"http", cfg.HTTP.Enabled,
		"pid_file", pid,
	)

	notices := delivery.NewRegistry()

	// Scheduler
	sched := scheduler.New(routines, func(r *state.Routine) {
		job, err := gw.RunRoutine(r, "cron", gateway.WithOnComplete(func(err error) {
			if err != nil {
				slog.Error("scheduled routine failed", "routine", r.Name, "error", err)
			}
			notices.RoutineResult(r.Notify, r.Name, err)
		}))
		if err != nil {
			slog.Error("scheduled routine rejected", "routine", r.Name, "error", err)
			notices.RoutineResult(r.Notify, r.Name, err)
			return
		}
		slog.Debug("scheduled routine queued", "routine", r.Name, "job_id", job.ID)
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	g, gctx := errgroup.WithContext(ctx)

	// HTTP API
	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           webhook.NewServer(gw, routines, history, reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, cfg.Telegram.AllowedChats)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		notices.Register("telegram", adapter.SendTo)
		g.Go(func() error {
			adapter.Start(gctx)
			return nil
		})
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// SIGHUP reloads routines.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-hup:
				slog.Info("received SIGHUP, reloading routines")
				if err := sched.Reload(); err != nil {
					slog.Error("reload routines", "error", err)
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	err = g.Wait()
	slog.Info("shutting down")
	return err
}
