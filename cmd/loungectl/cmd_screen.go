package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/loungeremote/internal/state"
	"github.com/user/loungeremote/pkg/lounge"
)

func init() {
	rootCmd.AddCommand(pairCmd, screenCmd)
	screenCmd.AddCommand(screenListCmd, screenRemoveCmd, screenRefreshCmd, screenStatusCmd)

	pairCmd.Flags().String("name", "", "name to store the screen under (default: the name the screen reports)")
}

var pairCmd = &cobra.Command{
	Use:   "pair <code>",
	Short: "Pair with a screen using the code shown under Settings > Link with TV code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		name, _ := cmd.Flags().GetString("name")

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Request.Duration)
		defer cancel()

		// Codes are often typed with spaces, as the TV shows them.
		code := strings.ReplaceAll(args[0], " ", "")
		screen, err := lounge.PairWithCode(ctx, code, clientOptions(cfg)...)
		if err != nil {
			return fmt.Errorf("pair: %w", err)
		}

		if name == "" {
			name = screen.Name
		}
		if name == "" {
			name = screen.ScreenID
		}
		if err := screenStore(cfg).Put(&state.Screen{
			Name:        name,
			ScreenID:    screen.ScreenID,
			LoungeToken: screen.LoungeToken,
			PairedAt:    time.Now(),
		}); err != nil {
			return fmt.Errorf("save screen: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Paired with %q (%s).\n", name, screen.ScreenID)
		return nil
	},
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Manage paired screens",
}

var screenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List paired screens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		screens, err := screenStore(cfg).List()
		if err != nil {
			return fmt.Errorf("list screens: %w", err)
		}
		if len(screens) == 0 {
			fmt.Println("No paired screens. Run: loungectl pair <code>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCREEN ID\tPAIRED\tTOKEN REFRESHED")
		for _, s := range screens {
			refreshed := "-"
			if !s.RefreshedAt.IsZero() {
				refreshed = s.RefreshedAt.Format("2006-01-02 15:04:05")
			}
			def := ""
			if s.Name == cfg.DefaultScreen || s.ScreenID == cfg.DefaultScreen {
				def = " *"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n",
				s.Name,
				def,
				s.ScreenID,
				s.PairedAt.Format("2006-01-02 15:04:05"),
				refreshed,
			)
		}
		return w.Flush()
	},
}

var screenRemoveCmd = &cobra.Command{
	Use:   "remove <screen>",
	Short: "Forget a paired screen",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := screenStore(cfg).Remove(args[0]); err != nil {
			return fmt.Errorf("remove screen: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Screen %q removed.\n", args[0])
		return nil
	},
}

var screenRefreshCmd = &cobra.Command{
	Use:   "refresh [screen]",
	Short: "Fetch a fresh lounge token",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := screenStore(cfg)
		screen, err := resolveScreen(cfg, store, args...)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Request.Duration)
		defer cancel()

		refreshed, err := lounge.RefreshLoungeToken(ctx, screen.ScreenID, clientOptions(cfg)...)
		if err != nil {
			return fmt.Errorf("refresh token: %w", err)
		}
		if err := store.UpdateToken(screen.ScreenID, refreshed.LoungeToken); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Token for %q refreshed.\n", screen.Name)
		return nil
	},
}

var screenStatusCmd = &cobra.Command{
	Use:   "status [screen]",
	Short: "Check whether a screen is online",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := screenStore(cfg)
		screen, err := resolveScreen(cfg, store, args...)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeouts.Request.Duration)
		defer cancel()

		client := newClient(cfg, store, screen)
		online, err := client.CheckAvailability(ctx)
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		status := "offline"
		if online {
			status = "online"
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", screen.Name, status)
		return nil
	},
}
