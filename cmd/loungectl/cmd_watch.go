package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/loungeremote/internal/gateway"
	"github.com/user/loungeremote/pkg/lounge"
)

func init() {
	rootCmd.AddCommand(watchCmd, historyCmd)
	watchCmd.Flags().Bool("json", false, "print one JSON object per event")
	historyCmd.Flags().IntP("limit", "n", 20, "number of events to show")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream screen events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := screenStore(cfg)
		screen, err := resolveScreen(cfg, store)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		remote := gateway.NewRemote(newClient(cfg, store, screen))
		sub := remote.Subscribe()
		defer sub.Close()

		if err := remote.Start(ctx); err != nil {
			return err
		}
		defer remote.Stop(context.Background())

		enc := json.NewEncoder(os.Stdout)
		for {
			ev, err := sub.Recv(ctx)
			var lagged *lounge.LaggedError
			switch {
			case err == nil:
			case errors.As(err, &lagged):
				fmt.Fprintf(os.Stderr, "(%d events dropped)\n", lagged.Missed)
				continue
			case ctx.Err() != nil, errors.Is(err, lounge.ErrSubscriptionClosed):
				return nil
			default:
				return err
			}

			if asJSON {
				enc.Encode(map[string]any{"type": ev.Type(), "at": time.Now(), "event": ev})
				continue
			}
			data, _ := json.Marshal(ev)
			fmt.Fprintf(os.Stdout, "%s %-24s %s\n", time.Now().Format(time.TimeOnly), ev.Type(), data)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded events for a screen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		screen, err := resolveScreen(cfg, screenStore(cfg))
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := historyStore(cfg).Tail(cmd.Context(), screen.ScreenID, limit)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No history recorded. Events are recorded while serve runs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIME\tTYPE\tPAYLOAD")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				r.Seq,
				r.At.Local().Format("2006-01-02 15:04:05"),
				r.Type,
				r.Payload,
			)
		}
		return w.Flush()
	},
}
