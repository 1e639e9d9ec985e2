package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ndx-io/NDX/config"
	"github.com/ndx-io/NDX/display"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// ConfigCmd manages NDX configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: sym.Config + " Manage NDX configuration",
	Long: sym.Config + ` config - Layered configuration

Display and validate NDX configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (NDX_* prefix)
2. Project config (ndx.toml, searching up from cwd)
3. Credentials (~/.ndx/credentials.toml)
4. User config (~/.ndx/config.toml)
5. System config (/etc/ndx/config.toml)
6. Default values

Examples:
  ndx config show                  # Effective configuration
  ndx config show --format yaml    # As YAML instead of TOML
  ndx config get server.port       # One value, for scripting
  ndx config validate              # Check the merged configuration
  ndx config where                 # Which file set which value`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get one configuration value by dotted key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the merged configuration",
	RunE:  runConfigValidate,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which layer each value came from",
	RunE:  runConfigWhere,
}

var configFormatFlag string

func init() {
	configShowCmd.Flags().StringVar(&configFormatFlag, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

// effectiveSettings returns the merged configuration tree with the cloud
// token elided. 'config get cloud.token' still prints it.
func effectiveSettings() map[string]interface{} {
	settings := config.GetViper().AllSettings()
	cloudRaw, ok := settings["cloud"].(map[string]interface{})
	if !ok {
		return settings
	}
	masked := make(map[string]interface{}, len(cloudRaw))
	for k, v := range cloudRaw {
		masked[k] = v
	}
	if tok, _ := masked["token"].(string); tok != "" {
		masked["token"] = "[set]"
	}
	settings["cloud"] = masked
	return settings
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(); err != nil {
		return err
	}
	settings := effectiveSettings()

	switch configFormatFlag {
	case "json":
		data, err := display.MarshalJSON(settings)
		if err != nil {
			return errors.Wrap(err, "marshal config to JSON")
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "marshal config to YAML")
		}
		fmt.Printf("# NDX configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "marshal config to TOML")
		}
		fmt.Printf("# NDX configuration\n%s", string(data))

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", configFormatFlag)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if _, err := config.Load(); err != nil {
		return err
	}
	if !config.GetViper().IsSet(key) {
		return errors.Wrapf(errors.ErrNotFound, "configuration key %q", key)
	}
	fmt.Println(config.Get(key))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration invalid")
	}
	fmt.Println("✓ Configuration is valid")
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(); err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	fmt.Println("Configuration cascade (later overrides earlier):")
	fmt.Println("  1. [DEFAULT]      Built-in defaults")
	fmt.Printf("  2. [SYSTEM]       /etc/ndx/config.toml%s\n", existsMarker("/etc/ndx/config.toml"))
	fmt.Printf("  3. [USER]         %s%s\n", filepath.Join(home, ".ndx", "config.toml"), existsMarker(filepath.Join(home, ".ndx", "config.toml")))
	fmt.Printf("  4. [CREDENTIALS]  %s%s\n", config.CredentialsPath(), existsMarker(config.CredentialsPath()))
	fmt.Println("  5. [PROJECT]      ndx.toml (searches up from cwd)")
	fmt.Println("  6. [ENV]          NDX_* environment variables")
	fmt.Println()

	bySource := make(map[config.SettingSource][]config.SettingInfo)
	for _, setting := range config.Introspect() {
		bySource[setting.Source] = append(bySource[setting.Source], setting)
	}

	order := []config.SettingSource{
		config.SourceDefault,
		config.SourceSystem,
		config.SourceUser,
		config.SourceCredentials,
		config.SourceProject,
	}
	fmt.Println("Active configuration:")
	for _, source := range order {
		settings := bySource[source]
		if len(settings) == 0 {
			continue
		}
		sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
		label := string(source)
		if settings[0].SourcePath != "" {
			label = fmt.Sprintf("%s: %s", source, settings[0].SourcePath)
		}
		fmt.Printf("\n  [%s]\n", label)
		for _, setting := range settings {
			value := setting.Value
			if setting.Key == "cloud.token" {
				value = "[set]"
			}
			fmt.Printf("    %-28s = %v\n", setting.Key, value)
		}
	}
	return nil
}

func existsMarker(path string) string {
	if _, err := os.Stat(path); err == nil {
		return "  (found)"
	}
	return "  (not found)"
}
