package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/config"
)

const listLongDesc string = `List all configuration values.

Prints each known key next to its value in config.toml, padded into
columns. Unset keys show <not set> and secrets are masked.

Examples:
  grove config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	printTarget(w, cfger)

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		rendered := cliui.DimStyle.Render("<not set>")
		if value != "" {
			rendered = cliui.ValueStyle.Render(config.Masked(key, value))
		}
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key)), rendered)
	}
	fmt.Fprintln(w)

	return nil
}
