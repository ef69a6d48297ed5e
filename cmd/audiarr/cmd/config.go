package cmd

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for inspecting and bootstrapping audiarr configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active configuration",
	Long: `Show the fully resolved configuration in YAML format, after the config
file, environment variables and defaults have been merged.

Secrets (webhook secret, TMDB API key) are redacted.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a starter configuration file",
	Long: `Write a configuration file with all default values to PATH
(default: config.yaml). Fails if the file already exists.

Edit the result and point the daemon at it:

  audiarr config init /etc/audiarr/config.yaml
  audiarr serve --config /etc/audiarr/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

const initHeader = `# audiarr configuration file
# ==========================
#
# All values shown below are defaults.
# Duration format: 30s, 5m, 1h
#
# Every key can be overridden with an environment variable using the
# AUDIARR_ prefix and underscores for nesting:
#   api.port      -> AUDIARR_API_PORT
#   database.dsn  -> AUDIARR_DATABASE_DSN
#   tmdb.api_key  -> AUDIARR_TMDB_API_KEY
#   logging.level -> AUDIARR_LOGGING_LEVEL
#

`

// toMap converts a config struct to a map for YAML rendering, formatting
// durations for readability and redacting fields tagged as secrets.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		if fieldType.Tag.Get("masq") == "secret" {
			if s, ok := field.Interface().(string); ok && s != "" {
				result[key] = "[REDACTED]"
				continue
			}
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(fv)
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	data, err := yaml.Marshal(toMap(config.Default()))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := renameio.WriteFile(path, append([]byte(initHeader), data...), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}
