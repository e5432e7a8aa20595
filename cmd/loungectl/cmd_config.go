package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/loungeremote/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd, setupCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
	configListCmd.Flags().Bool("show-secrets", false, "print secrets unmasked")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		show, _ := cmd.Flags().GetBool("show-secrets")
		cfg := loadConfig()
		values, err := config.ListValues(cfg, !show)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "%s = %v\n", k, values[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Example: `  loungectl config set default_screen "Living Room"
  loungectl config set backoff.max 5m
  loungectl config set http.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		previous, err := os.ReadFile(cfgPath)
		if err != nil {
			return err
		}
		if err := config.SetValue(cfgPath, args[0], args[1]); err != nil {
			return err
		}
		// Reject values the typed config cannot read back.
		if _, err := config.Load(cfgPath); err != nil {
			if rerr := os.WriteFile(cfgPath, previous, 0600); rerr != nil {
				return fmt.Errorf("restore config: %w", rerr)
			}
			return fmt.Errorf("invalid value for %s: %w", args[0], err)
		}
		display := args[1]
		if config.IsSecretKey(args[0]) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], display)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cfgPath)
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("loungectl setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.DeviceName = prompt(scanner, "Name shown on the TV", cfg.DeviceName)
		cfg.DefaultScreen = prompt(scanner, "Default screen (optional)", cfg.DefaultScreen)

		enabled := prompt(scanner, "Enable HTTP API (yes/no)", strconv.FormatBool(cfg.HTTP.Enabled))
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.HTTP.Enabled = b
		} else {
			cfg.HTTP.Enabled = strings.HasPrefix(strings.ToLower(enabled), "y")
		}
		if cfg.HTTP.Enabled {
			cfg.HTTP.Listen = prompt(scanner, "HTTP listen address", cfg.HTTP.Listen)
		}

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		fmt.Println("Next: loungectl pair <code from the TV>")
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
