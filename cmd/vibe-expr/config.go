package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// annotationWritesConfig marks commands that may run before the config file exists.
const annotationWritesConfig = "vibe-expr/writes-config"

func newConfigCmd() *cobra.Command {
	var stored bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-expr configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/` + configFileName + `
or the file given with --config.

Without --stored, the effective settings are shown: defaults, the config file,
VIBE_EXPR_* environment variables and flags combined.`,
		Example: `  vibe-expr config                                # effective settings
  vibe-expr config --stored                       # only what the file holds
  vibe-expr config set thresholds.fold_change 2
  vibe-expr config set enrichment.total_genes 20000
  vibe-expr config get thresholds.p_value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := viper.AllSettings()
			if stored {
				path, err := configPath()
				if err != nil {
					return err
				}
				v, err := readConfigFile(path)
				if err != nil {
					return err
				}
				settings = v.AllSettings()
			}
			return writeYAML(cmd.OutOrStdout(), settings)
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "Show only the values stored in the config file")

	cmd.AddCommand(&cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Store a configuration value",
		Args:        exactArgs(2),
		Annotations: map[string]string{annotationWritesConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if err := setConfigValue(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], args[1], path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a configuration key",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val := viper.Get(args[0])
			if val == nil {
				return fmt.Errorf("key %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	})

	return cmd
}

// configPath is the file named by --config, else ~/.vibe-expr.yaml.
func configPath() (string, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configFileName), nil
}

// readConfigFile loads the settings stored in path alone, without defaults,
// bound flags or environment overrides. A missing file is an empty config.
func readConfigFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return v, nil
}

// setConfigValue rewrites path with key changed and every other stored key kept.
func setConfigValue(path, key, value string) error {
	v, err := readConfigFile(path)
	if err != nil {
		return err
	}
	v.Set(key, parseConfigValue(value))

	out, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// parseConfigValue stores booleans and numbers with their YAML types.
func parseConfigValue(value string) any {
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func writeYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(out)
	return err
}
