package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/csvdeck/csvdeck/internal/config"
)

const defaultConfigFile = "csvdeck.yaml"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage csvdeck configuration",
		Long:  "Initialize a default configuration file, check one, or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default csvdeck.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVarP(&path, "output", "o", defaultConfigFile, "Path of the file to create")

	return cmd
}

func runConfigInit(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Point store.driver and store.dsn at your database, or keep the SQLite default, then run 'csvdeck serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	if f := viper.ConfigFileUsed(); f != "" {
		fmt.Fprintf(out, "# Config file: %s\n", f)
	} else {
		fmt.Fprintln(out, "# Config file: (none found, using defaults)")
	}
	fmt.Fprintf(out, "# Data dir:    %s\n\n", resolveDataDir())

	settings := viper.AllSettings()
	if store, ok := settings["store"].(map[string]any); ok {
		if dsn, _ := store["dsn"].(string); dsn != "" {
			store["dsn"] = "********"
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}

// ---------- config validate ----------

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a configuration file parses and names a known store driver",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			} else if f := viper.ConfigFileUsed(); f != "" {
				path = f
			}
			return runConfigValidate(cmd, path)
		},
	}
}

func runConfigValidate(cmd *cobra.Command, path string) error {
	cfg, err := config.LoadYAMLConfig(path)
	if err != nil {
		return err
	}
	known := false
	for _, d := range newRegistry().Drivers() {
		if d == cfg.Store.Driver {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%s: unknown store driver %q (available: %v)", path, cfg.Store.Driver, newRegistry().Drivers())
	}
	if cfg.Store.Driver != "sqlite" && cfg.Store.DSN == "" {
		return fmt.Errorf("%s: store.dsn is required for driver %q", path, cfg.Store.Driver)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (store: %s, port %d)\n", path, cfg.Store.Driver, cfg.Server.Port)
	return nil
}
