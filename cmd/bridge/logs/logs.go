// Package logscmder provides the logs command for reading back traffic
// records from the configured log sink.
package logscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/bridge/pkg/config"
	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/storage/sink"
)

const logsLongDesc string = `Print logged traffic records, oldest first, one JSON object per line.

Records are read from the sink configured by log.sink (jsonl, sqlite or
postgres). Use --kind to choose the record family:
  raw           request/response pairs as seen on the wire
  transformed   translated requests end to end
  orphan        requests still pending at shutdown

Examples:
  bridge logs
  bridge logs --kind transformed --request-id req_1718000000000_1a2b3c4d
  bridge logs --kind orphan --log-sink sqlite`

const logsShortDesc string = "Print logged traffic records"

type logsCommander struct {
	kind      string
	requestID string
	limit     int
	sink      string
	dir       string
	dsn       string
	configDir string
}

func NewLogsCmd() *cobra.Command {
	cmder := &logsCommander{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: logsShortDesc,
		Long:  logsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, []string{
				config.FlagLogSink,
				config.FlagLogDir,
				config.FlagLogDSN,
			})

			cfg := config.FromViper(v)
			cmder.sink = cfg.Log.Sink
			cmder.dir = cfg.Log.Dir
			cmder.dsn = cfg.Log.DSN
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.kind, "kind", "k", string(storage.KindRaw), "Record kind (raw, transformed, orphan)")
	cmd.Flags().StringVar(&cmder.requestID, "request-id", "", "Only print records for this request id")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 0, "Print at most the last n records (0 prints all)")

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLogSink, &cmder.sink)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLogDir, &cmder.dir)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagLogDSN, &cmder.dsn)

	return cmd
}

func (c *logsCommander) run(ctx context.Context, w io.Writer) error {
	kind, err := storage.ParseKind(c.kind)
	if err != nil {
		return err
	}
	if c.sink == sink.InMemory {
		return fmt.Errorf("the %s sink keeps no records between runs", sink.InMemory)
	}

	driver, _, err := sink.Open(ctx, sink.Options{
		Name:      c.sink,
		Dir:       c.dir,
		DSN:       c.dsn,
		ConfigDir: c.configDir,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	lister, ok := driver.(storage.Lister)
	if !ok {
		return fmt.Errorf("log sink %q cannot be read back", c.sink)
	}

	records, err := lister.List(ctx, kind)
	if err != nil {
		return fmt.Errorf("listing %s records: %w", kind, err)
	}

	return c.print(w, records)
}

func (c *logsCommander) print(w io.Writer, records []json.RawMessage) error {
	if c.requestID != "" {
		matched := records[:0]
		for _, r := range records {
			if gjson.GetBytes(r, "request_id").String() == c.requestID {
				matched = append(matched, r)
			}
		}
		records = matched
	}
	if c.limit > 0 && len(records) > c.limit {
		records = records[len(records)-c.limit:]
	}

	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\n", r); err != nil {
			return err
		}
	}
	return nil
}
