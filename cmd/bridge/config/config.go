// Package configcmder provides the config command for managing persistent
// bridge configuration stored in the .bridge/ directory.
package configcmder

import (
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/bridge/pkg/config"
	"github.com/papercomputeco/bridge/pkg/normalize"
)

const configLongDesc string = `Manage persistent bridge configuration.

Configuration is stored as config.toml in the .bridge/ directory and provides
default values for "bridge serve". CLI flags and BRIDGE_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  target.provider, target.model, target.api_key, target.base_url, target.timeout,
  proxy.listen, proxy.upstream,
  log.dir, log.sink, log.dsn, log.trace,
  events.kafka_brokers, events.kafka_topic,
  transform.excluded_markers, stream.chunk_size

Use subcommands to get, set, or list configuration values:
  bridge config set <key> <value>    Set a configuration value
  bridge config get <key>            Get a configuration value
  bridge config list                 List all configuration values

Examples:
  bridge config set target.provider ollama
  bridge config set transform.excluded_markers haiku,mini
  bridge config get target.model
  bridge config list`

const configShortDesc string = "Manage persistent bridge configuration"

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

// styles renders keys and values for a terminal, degrading to plain text
// when w is not one.
type styles struct {
	out *termenv.Output
}

func newStyles(w io.Writer) styles {
	return styles{out: termenv.NewOutput(w)}
}

func (s styles) key(v string) string {
	return s.out.String(v).Bold().String()
}

func (s styles) value(v string) string {
	return s.out.String(v).Foreground(s.out.Color("6")).String()
}

func (s styles) dim(v string) string {
	return s.out.String(v).Faint().String()
}

// display returns the printable form of a key's value. Secrets are masked.
func display(key, value string) string {
	if value != "" && config.IsSecretKey(key) {
		return normalize.RedactValue(value)
	}
	return value
}
