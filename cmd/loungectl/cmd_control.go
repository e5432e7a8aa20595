package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/loungeremote/internal/gateway"
	"github.com/user/loungeremote/pkg/lounge"
)

type control struct {
	use   string
	short string
	args  cobra.PositionalArgs
}

var controls = []control{
	{"play", "Resume playback", cobra.NoArgs},
	{"pause", "Pause playback", cobra.NoArgs},
	{"next", "Skip to the next video", cobra.NoArgs},
	{"previous", "Go back to the previous video", cobra.NoArgs},
	{"skip-ad", "Skip the current ad", cobra.NoArgs},
	{"mute", "Mute the screen", cobra.NoArgs},
	{"unmute", "Unmute the screen", cobra.NoArgs},
	{"seek <seconds|m:ss>", "Seek to a position", cobra.ExactArgs(1)},
	{"volume <0-100>", "Set the volume", cobra.ExactArgs(1)},
	{"autoplay <on|off>", "Turn autoplay on or off", cobra.ExactArgs(1)},
	{"queue <video>", "Add a video to the queue", cobra.ExactArgs(1)},
}

var castCmd = &cobra.Command{
	Use:   "cast <video> [list]",
	Short: "Play a video, optionally as part of a playlist",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := gateway.ParseCommand("cast", args)
		if err != nil {
			return err
		}
		pl := parsed.(lounge.SetPlaylist)

		if list, _ := cmd.Flags().GetString("list"); list != "" {
			pl.ListID = list
		}
		if cmd.Flags().Changed("index") {
			idx, _ := cmd.Flags().GetInt("index")
			pl.CurrentIndex = &idx
		}
		if cmd.Flags().Changed("time") {
			raw, _ := cmd.Flags().GetString("time")
			seek, err := gateway.ParseCommand("seek", []string{raw})
			if err != nil {
				return fmt.Errorf("--time: %w", err)
			}
			t := seek.(lounge.SeekTo).NewTime
			pl.CurrentTime = &t
		}
		if cmd.Flags().Changed("audio-only") {
			audio, _ := cmd.Flags().GetBool("audio-only")
			pl.AudioOnly = &audio
		}
		return sendOnce(cmd.Context(), pl)
	},
}

func init() {
	for _, c := range controls {
		rootCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  c.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				parsed, err := gateway.ParseCommand(cmd.Name(), args)
				if err != nil {
					return err
				}
				return sendOnce(cmd.Context(), parsed)
			},
		})
	}

	castCmd.Flags().String("list", "", "playlist id")
	castCmd.Flags().Int("index", 0, "index of the video within the playlist")
	castCmd.Flags().String("time", "", "start position (seconds or m:ss)")
	castCmd.Flags().Bool("audio-only", false, "request audio-only playback")
	rootCmd.AddCommand(castCmd)
}

// sendOnce connects to the selected screen, sends cmd and disconnects. Both
// the bind and the command refresh an expired token once.
func sendOnce(parent context.Context, cmd lounge.Command) error {
	cfg := loadConfig()
	store := screenStore(cfg)
	screen, err := resolveScreen(cfg, store)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*cfg.Timeouts.Request.Duration)
	defer cancel()

	client := newClient(cfg, store, screen)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", screen.Name, err)
	}
	defer client.Close(context.WithoutCancel(ctx))

	if err := client.SendCommand(ctx, cmd); err != nil {
		return fmt.Errorf("%s on %s: %w", cmd.Name(), screen.Name, err)
	}
	fmt.Fprintf(os.Stdout, "Sent %s to %s.\n", cmd.Name(), screen.Name)
	return nil
}
