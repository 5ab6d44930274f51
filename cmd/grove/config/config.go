// Package configcmder provides the config command for managing persistent
// grove configuration stored in the .grove/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/config"
)

const configLongDesc string = `Manage persistent grove configuration.

Configuration is stored as config.toml in the .grove/ directory and provides
default values for command flags. CLI flags and GROVE_ environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  storage.redis_addr, storage.firestore_project, storage.firestore_collection,
  sync.debounce_ms,
  ai.provider, ai.api_key, ai.fast_model, ai.reason_model,
  api.listen,
  event_stream.provider, event_stream.brokers, event_stream.topic,
  identity.user

Use subcommands to get, set, or list configuration values:
  grove config set <key> <value>    Set a configuration value
  grove config get <key>            Get a configuration value
  grove config list                 List all configuration values

Examples:
  grove config set storage.provider postgres
  grove config set identity.user alice
  grove config get sync.debounce_ms
  grove config list`

const configShortDesc string = "Manage persistent grove configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
