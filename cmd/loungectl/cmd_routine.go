package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/loungeremote/internal/gateway"
	"github.com/user/loungeremote/internal/scheduler"
	"github.com/user/loungeremote/internal/state"
)

func init() {
	rootCmd.AddCommand(routineCmd)
	routineCmd.AddCommand(routineAddCmd, routineListCmd, routineRemoveCmd, routineEnableCmd, routineDisableCmd)

	routineAddCmd.Flags().String("schedule", "", "cron schedule (5 or 6 fields, or @daily etc.); empty for webhook-only")
	routineAddCmd.Flags().Bool("disabled", false, "add the routine disabled")
	routineAddCmd.Flags().String("notify", "", "report scheduled runs to a target, e.g. telegram:<chat id>")
}

var routineCmd = &cobra.Command{
	Use:   "routine",
	Short: "Manage scheduled and webhook routines",
}

var routineAddCmd = &cobra.Command{
	Use:   "add <name> <command> [args...]",
	Short: "Add a routine",
	Example: `  loungectl routine add bedtime pause --schedule "0 23 * * *"
  loungectl routine add lofi cast jfKfPfyJRdk --screen kitchen`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule, _ := cmd.Flags().GetString("schedule")
		disabled, _ := cmd.Flags().GetBool("disabled")
		notify, _ := cmd.Flags().GetString("notify")

		name, command, cmdArgs := args[0], args[1], args[2:]
		if _, err := gateway.ParseCommand(command, cmdArgs); err != nil {
			return err
		}
		if schedule != "" {
			if err := scheduler.ValidateSchedule(schedule); err != nil {
				return err
			}
		}

		cfg := loadConfig()
		routine := &state.Routine{
			Name:     name,
			Schedule: schedule,
			Screen:   screenFlag,
			Command:  command,
			Args:     cmdArgs,
			Enabled:  !disabled,
			Notify:   notify,
		}
		if err := routineStore(cfg).Add(routine); err != nil {
			return fmt.Errorf("add routine: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Routine %q added.\n", name)
		return nil
	},
}

var routineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		routines, err := routineStore(cfg).List()
		if err != nil {
			return fmt.Errorf("list routines: %w", err)
		}
		if len(routines) == 0 {
			fmt.Println("No routines configured.")
			return nil
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tSCREEN\tCOMMAND\tENABLED\tNEXT RUN")
		for _, r := range routines {
			next := "-"
			if r.Enabled && r.Schedule != "" {
				if t, err := scheduler.NextRun(r.Schedule, now); err == nil {
					next = t.Format("2006-01-02 15:04:05")
				} else {
					next = "invalid schedule"
				}
			}
			screen := r.Screen
			if screen == "" {
				screen = "(default)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
				r.Name,
				r.Schedule,
				screen,
				strings.TrimSpace(r.Command+" "+strings.Join(r.Args, " ")),
				r.Enabled,
				next,
			)
		}
		return w.Flush()
	},
}

var routineRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a routine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := routineStore(cfg).Remove(args[0]); err != nil {
			return fmt.Errorf("remove routine: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Routine %q removed.\n", args[0])
		return nil
	},
}

var routineEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a routine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRoutineEnabled(args[0], true)
	},
}

var routineDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a routine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRoutineEnabled(args[0], false)
	},
}

func setRoutineEnabled(name string, enabled bool) error {
	cfg := loadConfig()
	if err := routineStore(cfg).SetEnabled(name, enabled); err != nil {
		return fmt.Errorf("update routine: %w", err)
	}
	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	fmt.Fprintf(os.Stdout, "Routine %q %s. Running daemons pick this up on reload.\n", name, verb)
	return nil
}
