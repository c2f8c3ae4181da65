// Package bridgecmder
package bridgecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/bridge/cmd/bridge/config"
	logscmder "github.com/papercomputeco/bridge/cmd/bridge/logs"
	servecmder "github.com/papercomputeco/bridge/cmd/bridge/serve"
	versioncmder "github.com/papercomputeco/bridge/cmd/version"
)

const bridgeLongDesc string = `Bridge answers Anthropic Messages API calls from another model provider.

Point a client at the bridge and its /v1/messages calls are translated to
the configured target (OpenAI, Ollama) and answered in the vendor's own
wire format. Every exchange is logged as JSONL.

  bridge serve          Run the bridge server
  bridge logs           Print logged traffic records
  bridge config         Manage .bridge/config.toml`

const bridgeShortDesc string = "Bridge - Messages API translation proxy"

func NewBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bridge",
		Short:        bridgeShortDesc,
		Long:         bridgeLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .bridge/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(logscmder.NewLogsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
