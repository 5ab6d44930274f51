// Package grovecmder is the root grove command.
package grovecmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/grove/cmd/grove/chat"
	configcmder "github.com/papercomputeco/grove/cmd/grove/config"
	servecmder "github.com/papercomputeco/grove/cmd/grove/serve"
	versioncmder "github.com/papercomputeco/grove/cmd/version"
)

const groveLongDesc string = `Grove keeps AI conversations as branching trees.

Every turn is a node; asking again from an earlier node forks a new branch.
Trees are saved per identity to the configured store.

Commands:
  grove chat      Talk to the tree in your terminal
  grove serve     Run the HTTP API
  grove config    Manage persistent configuration`

const groveShortDesc string = "Grove - branching AI conversations"

func NewGroveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "grove",
		Short:         groveShortDesc,
		Long:          groveLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the grove directory holding config.toml")

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
